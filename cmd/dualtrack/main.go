// Command dualtrack is the entry point of the dual-currency note tracker. It
// loads and validates configuration, sets up logging and signal handling,
// and runs the application in the configured mode.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alanyoungcy/dualtrack/internal/app"
	"github.com/alanyoungcy/dualtrack/internal/config"
	"github.com/alanyoungcy/dualtrack/internal/crypto"
)

const defaultConfigPath = "config.toml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	mode := flag.String("mode", "", "override mode: server, settle or archive")
	sealPath := flag.String("seal", "", "read an API key from stdin, seal it with $DUALTRACK_ORACLE_KEY_PASSWORD into this file, and exit")
	flag.Parse()

	var err error
	if *sealPath != "" {
		err = sealKey(*sealPath, os.Getenv(config.EnvPrefix+"ORACLE_KEY_PASSWORD"))
	} else {
		err = run(*configPath, *mode)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, mode string) error {
	// The default file is optional; an explicit -config must exist.
	if configPath == defaultConfigPath {
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			configPath = ""
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if mode != "" {
		cfg.Mode = mode
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return err
	}

	logger.Info("dualtrack starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", configPath),
		slog.Any("settings", config.RedactedConfig(cfg)),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
			return nil
		}
		logger.Error("application exited with error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("dualtrack stopped")
	return nil
}

// sealKey writes the first line of stdin to path as a sealed secret for
// oracle.encrypted_api_key_path.
func sealKey(path, password string) error {
	if password == "" {
		return fmt.Errorf("seal: %sORACLE_KEY_PASSWORD is not set", config.EnvPrefix)
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("seal: read key from stdin: %w", err)
	}
	secret := strings.TrimSpace(line)
	if secret == "" {
		return errors.New("seal: empty key")
	}
	sealed, err := crypto.Seal(secret, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		return fmt.Errorf("seal: write %s: %w", path, err)
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
