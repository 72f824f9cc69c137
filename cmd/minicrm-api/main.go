package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minicrm/internal/app"
	"github.com/vladislavdragonenkov/minicrm/internal/version"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(parsed)
	return nil
}

// applyFlags накладывает флаги командной строки поверх конфигурации из окружения.
func applyFlags(cfg app.Config, args []string) (app.Config, string, error) {
	fs := flag.NewFlagSet("minicrm-api", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	fs.StringVar(&cfg.APIAddr, "addr", cfg.APIAddr, "API listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "metrics and health listen address")
	fs.StringVar(&cfg.StorageDriver, "storage", cfg.StorageDriver, "storage driver: memory|postgres")
	fs.StringVar(&cfg.PostgresDSN, "dsn", cfg.PostgresDSN, "PostgreSQL DSN")
	fs.DurationVar(&cfg.APIDelay, "delay", cfg.APIDelay, "artificial delay before every response")
	if err := fs.Parse(args); err != nil {
		return cfg, "", err
	}
	return cfg, *logLevel, nil
}

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("некорректная конфигурация")
	}
	cfg, level, err := applyFlags(cfg, os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("некорректные флаги")
	}
	if err := setupLogger(level); err != nil {
		log.WithError(err).Fatal("некорректный уровень логирования")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"api_addr":     cfg.APIAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"version":      version.String(),
	}).Info("запускаем mini-crm API")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("mini-crm API остановлен")
}
