package logger

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

// RequestIDKey is the gin context key holding the per-request correlation id.
const RequestIDKey = "request_id"

// Options configures the process-wide logger.
type Options struct {
	Level string // debug, info, warn, error
	// Format is "console" or "json"; empty means console at debug level and json otherwise.
	Format  string
	Service string
	Output  io.Writer
}

// Init replaces the global logger. Unknown levels fall back to info.
func Init(opts Options) {
	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	format := opts.Format
	if format == "" {
		format = "json"
		if lvl == zerolog.DebugLevel {
			format = "console"
		}
	}
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: opts.Output != nil}
	}

	ctx := zerolog.New(out).Level(lvl).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	if lvl == zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	log = ctx.Logger()
}

func init() {
	Init(Options{Level: "info", Format: "json"})
}

func Debug() *zerolog.Event { return log.Debug() }
func Info() *zerolog.Event  { return log.Info() }
func Warn() *zerolog.Event  { return log.Warn() }
func Error() *zerolog.Event { return log.Error() }
func Fatal() *zerolog.Event { return log.Fatal() }

func Infof(format string, v ...interface{}) {
	log.Info().Msgf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	log.Warn().Msgf(format, v...)
}

// Fatalf logs at fatal level and exits.
func Fatalf(format string, v ...interface{}) {
	log.Fatal().Msgf(format, v...)
}

// ForRequest returns a child logger tagged with the request id and route of c.
func ForRequest(c *gin.Context) *zerolog.Logger {
	ctx := log.With()
	if id := c.GetString(RequestIDKey); id != "" {
		ctx = ctx.Str(RequestIDKey, id)
	}
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	l := ctx.Str("route", route).Logger()
	return &l
}

// GinLogger logs one line per request. Requests to quietPaths that succeed
// are logged at debug so health and scrape traffic stays out of info logs.
func GinLogger(quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		l := ForRequest(c)
		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = l.Error()
		case status >= http.StatusBadRequest:
			event = l.Warn()
		default:
			event = l.Info()
			if _, ok := quiet[c.Request.URL.Path]; ok {
				event = l.Debug()
			}
		}

		event.
			Int("status", status).
			Str("method", c.Request.Method).
			Str("query", c.Request.URL.RawQuery).
			Str("ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Int("size", c.Writer.Size()).
			Msg("request")
	}
}

// GinRecovery logs panics and answers with the standard error envelope.
func GinRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		ForRequest(c).Error().
			Interface("panic", recovered).
			Str("method", c.Request.Method).
			Str("ip", c.ClientIP()).
			Msg("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "internal error",
		})
	})
}
