/*
Package logger - Structured logging for the reconciliation engine

DESCRIPTION:
    Configures structured logging using logrus. Log level is selected from
    the running environment (production -> Info, else Debug) and every log
    line is JSON so it can be parsed by log aggregation tooling. Also
    provides Gin middleware for the thin admin HTTP surface in cmd/server.

LOG LEVELS:
    - Error: pipeline/matcher failures that surfaced to the caller
    - Warn: validation / needsReview flags, retried transient errors
    - Info: scan lifecycle, stage transitions, match decisions
    - Debug: per-candidate scoring detail
*/
package logger

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Setup initializes the logger for the given environment ("production",
// "development", "testing").
func Setup(env string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	if env == "production" {
		log.SetLevel(logrus.InfoLevel)
	} else {
		log.SetLevel(logrus.DebugLevel)
	}

	return log
}

// GinLogger returns a gin.HandlerFunc for logging HTTP requests on the
// admin surface.
func GinLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		entry := log.WithFields(logrus.Fields{
			"latency":    time.Since(start),
			"method":     c.Request.Method,
			"status":     c.Writer.Status(),
			"ip":         c.ClientIP(),
			"uri":        path,
			"user_agent": c.Request.UserAgent(),
			"errors":     c.Errors.ByType(gin.ErrorTypePrivate).String(),
		})

		if c.Writer.Status() >= 500 {
			entry.Error()
		} else if c.Writer.Status() >= 400 {
			entry.Warn()
		} else {
			entry.Info()
		}
	}
}

// WithStage returns a logger entry pre-populated with fileId and stage
// fields. The pipeline stages do not call it; they do not log.
func WithStage(log *logrus.Logger, fileId, stage string) *logrus.Entry {
	return log.WithFields(logrus.Fields{"fileId": fileId, "stage": stage})
}
