package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"

	"kpiboard/internal/cli"
	"kpiboard/internal/ctl"
	applog "kpiboard/internal/log"
)

func main() {
	cli.LoadEnvFile()

	level := slog.LevelWarn
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level = applog.ParseLevel(v)
	}
	applog.SetDefault(applog.New(applog.Config{
		Level:     level,
		Component: applog.ComponentAutosave,
		Output:    os.Stderr,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := ctl.NewApp(os.Stdin, os.Stdout)
	if err := app.Execute(ctx, os.Args[1:]); err != nil {
		pterm.Error.Println(err)
		stop()
		os.Exit(1)
	}
}
