// Package main runs the calculator HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app/runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("calcd: %v", err)
	}
}

func run(ctx context.Context) error {
	migrate := flag.Bool("migrate", true, "apply schema migrations on startup")
	configFile := flag.String("config", "", "path to a YAML config overlay")
	flag.Parse()

	if *configFile != "" {
		os.Setenv("CONFIG_FILE", *configFile)
	}

	cfg, err := runtime.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	app, err := runtime.NewApplication(cfg, *migrate && cfg.Database.Migrate)
	if err != nil {
		return fmt.Errorf("assemble application: %w", err)
	}

	if err := app.Run(ctx); err != nil {
		return err
	}
	return app.Shutdown(context.Background())
}

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetPrefix("[calcd] ")
}
