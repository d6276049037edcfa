// Package logger provides structured logging configuration for the gateway
// service with support for different log levels, formats, and output
// destinations, plus request correlation-ID helpers.
package logger

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// New creates a new configured logrus logger instance with the specified
// log level, format, and output destination.
func New(level, format, output string) *logrus.Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	switch strings.ToLower(format) {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	default:
		// JSON is the default for structured log aggregation.
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	switch strings.ToLower(output) {
	case "", "stdout":
		log.SetOutput(os.Stdout)
	case "stderr":
		log.SetOutput(os.Stderr)
	default:
		// Validate and clean the file path to prevent directory traversal.
		cleanPath := filepath.Clean(output)
		if strings.Contains(cleanPath, "..") {
			log.SetOutput(os.Stdout)
			log.Warn("Invalid log file path containing '..' detected, using stdout")
			return log
		}

		// #nosec G304 -- Path is validated and cleaned above to prevent traversal attacks
		file, fileErr := os.OpenFile(cleanPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if fileErr != nil {
			log.SetOutput(os.Stdout)
			log.WithError(fileErr).Warn("Failed to open log file, using stdout")
		} else {
			log.SetOutput(file)
		}
	}

	return log
}
