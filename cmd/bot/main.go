package main

import (
	"context"
	"os"
	_ "time/tzdata" // IANA zones for minimal container images

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/suxofrukt/WeatherTRPP/internal/app"
	"github.com/suxofrukt/WeatherTRPP/internal/config"
	"github.com/suxofrukt/WeatherTRPP/internal/logger"
)

func main() {
	// .env is optional; real environment variables win.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// No logger yet; exit immediately.
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	// Ensure logger flush; ignore sync error (common on some platforms).
	defer func() { _ = log.Sync() }()

	if envErr != nil && !os.IsNotExist(envErr) {
		log.Warn("could not read .env", zap.Error(envErr))
	}

	application, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("app init failed", zap.Error(err))
	}

	if err := application.Run(context.Background()); err != nil {
		log.Fatal("app run failed", zap.Error(err))
	}
}
