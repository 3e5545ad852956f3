package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/NasaVasa/priceghost/internal/app"
	"github.com/NasaVasa/priceghost/internal/config"
	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "failed to read .env:", err)
		os.Exit(1)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize app:", err)
		os.Exit(1)
	}
	os.Exit(serve(ctx, application))
}

type service interface {
	Run(ctx context.Context) error
	Shutdown()
}

// serve runs the service and always shuts it down before reporting the exit code.
func serve(ctx context.Context, svc service) int {
	defer svc.Shutdown()

	if err := svc.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "application error:", err)
		return 1
	}
	return 0
}
