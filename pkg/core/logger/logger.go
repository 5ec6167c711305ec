// Package logger builds the zap logger shared by the outer layers
// (pipeline, ingest, store, api and cmd).
package logger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// EnvVar selects development (console) or production (JSON) output.
const EnvVar = "VALUATION_ENV"

type ctxKey struct{}

// New returns a sugared logger configured from VALUATION_ENV.
func New() *zap.SugaredLogger {
	var (
		logger *zap.Logger
		err    error
	)
	opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}

	env := strings.ToLower(os.Getenv(EnvVar))
	if env == "dev" {
		logger, err = zap.NewDevelopment(opts...)
	} else {
		opts = append(opts, zap.Fields(zap.String(EnvVar, env)))
		logger, err = zap.NewProduction(opts...)
	}
	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}
	return logger.Sugar()
}

// WithContext stores l on ctx.
func WithContext(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger on ctx, or the global logger when none is set.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.SugaredLogger); ok && l != nil {
			return l
		}
	}
	return zap.S()
}
