// Command feedbackctl runs feedback maintenance jobs outside the HTTP server.
package main

import (
	"os"

	"github.com/ShaharSGA/Project/pkg/logger"
)

func main() {
	if err := RootCommand(&cliContext{}).Execute(); err != nil {
		logger.Error().Err(err).Msg("feedbackctl failed")
		os.Exit(1)
	}
}
