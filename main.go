package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ninanor/villrein-go/cmd"
	"github.com/ninanor/villrein-go/internal/conf"
	"github.com/ninanor/villrein-go/internal/logging"
)

func main() {
	settings := conf.Setting()
	if settings == nil {
		fmt.Fprintln(os.Stderr, "error loading configuration")
		os.Exit(1)
	}

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.Init(level)

	if settings.Main.Log.Enabled {
		fileLogger, closeLog, err := logging.NewFileLogger(settings.Main.Log.Path, settings.Main.Name, level)
		if err != nil {
			logging.Warn("file log disabled", "path", settings.Main.Log.Path, "error", err)
		} else {
			slog.SetDefault(fileLogger)
			defer closeLog()
		}
	}

	// A termination signal cancels in-flight stages through the command
	// context; checkpoints already written stay valid for the next run.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error("command failed", "error", err)
		os.Exit(1)
	}
}
