// Package main starts the market HTTP service process lifecycle.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	marketcmd "github.com/granarylabs/granary/internal/cmd/market"
	"github.com/granarylabs/granary/internal/platform/config"
	"github.com/granarylabs/granary/internal/platform/logging"
)

func main() {
	logging.Setup()

	cfg, err := marketcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := marketcmd.Run(ctx, cfg); err != nil {
		config.Exitf("failed to serve: %v", err)
	}
}
