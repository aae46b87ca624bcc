// Package market parses market service flags and launches the service.
package market

import (
	"context"
	"flag"

	entrypoint "github.com/granarylabs/granary/internal/platform/cmd"
	server "github.com/granarylabs/granary/internal/services/market/app"
)

// Config holds market command configuration.
type Config struct {
	Port int `env:"GRANARY_MARKET_PORT" envDefault:"8080"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The market HTTP server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the market HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMarket, func(context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
