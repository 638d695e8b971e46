package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/noah-isme/edupoint-api/internal/app"
	"github.com/noah-isme/edupoint-api/pkg/config"
	"github.com/noah-isme/edupoint-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	container, err := app.New(cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to build application", "error", err)
	}

	cli := commandLine{
		balances: container.Services.Balances,
		accounts: container.Services.Auth,
		out:      os.Stdout,
	}
	runErr := cli.run(context.Background(), os.Args)
	_ = container.Close()
	if runErr != nil {
		if !errors.Is(runErr, errHelp) {
			logr.Sugar().Errorw("command failed", "error", runErr)
		}
		os.Exit(1)
	}
}
