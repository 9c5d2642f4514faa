// Package logging builds the zap logger and error fields shared by every component.
package logging

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
)

const service = "pm-internship-scraper"

// New builds the process logger. Development mode writes colored console output;
// otherwise JSON tagged with the service name.
func New(development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		// Stage errors carry their own stack; zap's would point at the log call.
		cfg.DisableStacktrace = true
		cfg.InitialFields = map[string]any{"service": service}
	}
	cfg.EncoderConfig.TimeKey = "ts"

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger (development=%t): %w", development, err)
	}
	return logger, nil
}

// ErrorFields describes err, adding the stage and origin stack of pipeline errors.
func ErrorFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}
	var stageErr *internship.Error
	if errors.As(err, &stageErr) {
		fields = append(fields, zap.String("stage", string(stageErr.Stage)))
		if stack := stageErr.StackTrace(); len(stack) > 0 {
			fields = append(fields, zap.ByteString("stack", stack))
		}
	}
	return fields
}
