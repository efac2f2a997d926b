// Package commands implements the statcube subcommands.
package commands

import (
	"context"

	"github.com/leapstack-labs/statcube/internal/config"
)

type configKey struct{}

// WithConfig stores the loaded configuration in a command context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// configFromContext retrieves the configuration stored by the root command.
func configFromContext(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(configKey{}).(*config.Config)
	return cfg
}
