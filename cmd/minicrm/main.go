package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minicrm/internal/app"
	"github.com/vladislavdragonenkov/minicrm/internal/shell"
)

// setupLogger уводит логи в файл: stdout занят интерфейсом.
// Без MINICRM_LOG_FILE логи одноразовых команд идут в stderr, а логи TUI отбрасываются.
func setupLogger(path string, interactive bool) (func(), error) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
	log.SetLevel(log.InfoLevel)

	if path == "" {
		if interactive {
			log.SetOutput(io.Discard)
		} else {
			log.SetOutput(os.Stderr)
			log.SetLevel(log.WarnLevel)
		}
		return func() {}, nil
	}

	// #nosec G304 -- log path is explicit user configuration.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(file)
	return func() { _ = file.Close() }, nil
}

func main() {
	cfg, err := app.LoadClientConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	args := os.Args[1:]
	closeLog, err := setupLogger(cfg.LogFile, len(args) == 0)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := app.NewClient(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to start client: %v\n", err)
		os.Exit(1)
	}

	if len(args) == 0 {
		err = runShell(ctx, client)
	} else {
		err = runCommand(ctx, client, args, os.Stdout)
	}
	if closeErr := client.Close(); closeErr != nil {
		log.WithError(closeErr).Warn("client close failed")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintf(os.Stderr, "minicrm: %v\n", err)
		os.Exit(1)
	}
}

func runShell(ctx context.Context, client *app.Client) error {
	states, unsubscribe := client.Store.Subscribe()
	defer unsubscribe()

	model := shell.New(ctx, client.Store, client.Auth, client.Router, states)
	_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
