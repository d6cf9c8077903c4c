package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tidefall/docstore/internal/app"
	"github.com/tidefall/docstore/internal/logger"
	"github.com/tidefall/docstore/internal/version"
)

func main() {
	vlog := log.New(log.Writer(), "", 0)
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.PrintVersionInfo(true, vlog)
		os.Exit(0)
	} else {
		version.PrintVersionInfo(false, vlog)
	}

	lcfg := buildLoggerConfig()
	logInstance, cleanup, err := logger.New(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	slog.SetDefault(logInstance)

	logInstance.Info("Initialising", "version", version.Version, "pid", os.Getpid())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logInstance.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	application, err := app.New(ctx, logInstance)
	if err != nil {
		logger.FatalWithLogger(logInstance, "Failed to create application", "error", err)
	}

	if err := application.Start(ctx); err != nil {
		logger.FatalWithLogger(logInstance, "Failed to start application", "error", err)
	}

	<-ctx.Done()

	if err := application.Stop(context.Background()); err != nil {
		logInstance.Error("Error during shutdown", "error", err)
	}

	logInstance.Info("Docstore has shutdown")
}

// buildLoggerConfig creates logger config from environment variables with defaults
func buildLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:      getEnvOrDefault("DOCSTORE_LOG_LEVEL", "info"),
		FileOutput: getEnvBoolOrDefault("DOCSTORE_FILE_OUTPUT", true),
		LogDir:     getEnvOrDefault("DOCSTORE_LOG_DIR", "./logs"),
		MaxSize:    getEnvIntOrDefault("DOCSTORE_MAX_SIZE", 100),
		MaxBackups: getEnvIntOrDefault("DOCSTORE_MAX_BACKUPS", 5),
		MaxAge:     getEnvIntOrDefault("DOCSTORE_MAX_AGE", 30),
	}
}

func getEnvOrDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBoolOrDefault(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
