package main

import (
	"fmt"
	"os"

	"github.com/ShaharSGA/Project/internal/config"
	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/internal/services"
	"github.com/ShaharSGA/Project/internal/store"
	"github.com/ShaharSGA/Project/pkg/logger"
	"github.com/spf13/cobra"
)

// cliContext carries flag values and the lazily opened store across commands.
type cliContext struct {
	configPath string
	memory     bool

	cfg     *config.Config
	store   store.FeedbackStore
	closeDB func()
}

// RootCommand creates the root command with every maintenance subcommand.
func RootCommand(ctx *cliContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "feedbackctl",
		Short:         "Feedback pipeline maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&ctx.memory, "memory", false, "use an empty in-memory store instead of the database")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return ctx.open()
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		ctx.close()
	}

	rootCmd.AddCommand(
		ageCommand(ctx),
		aggregateCommand(ctx),
		statsCommand(ctx),
		queueCommand(ctx),
	)
	return rootCmd
}

func (c *cliContext) open() error {
	if c.cfg == nil {
		cfg, err := config.Load(c.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		c.cfg = cfg
	}
	logger.Init(logger.Options{Level: c.cfg.Log.Level, Format: c.cfg.Log.Format, Service: "feedbackctl", Output: os.Stderr})

	if c.store != nil {
		return nil
	}
	if c.memory {
		c.store = store.NewMemoryStore()
		return nil
	}

	db, err := models.InitDB(&c.cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	c.store = store.NewGormStore(db)
	c.closeDB = func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return nil
}

func (c *cliContext) close() {
	if c.closeDB != nil {
		c.closeDB()
	}
}

func (c *cliContext) lab() *services.LabService {
	return services.NewLabService(c.store, &c.cfg.Feedback, nil)
}

func (c *cliContext) learning() *services.LearningService {
	return services.NewLearningService(c.store, &c.cfg.Learning, nil)
}
