// Command scheduler polls the server's automation jobs once a minute and
// triggers the dispatch of every job that is due.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"mccenter/internal/adapters/dispatchclient"
	"mccenter/internal/application/orchestrators"
	"mccenter/internal/config"
)

// tickSpec fires at the start of every minute.
const tickSpec = "* * * * *"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "error", err.Error())
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))
	if cfg.DispatchKey == "" {
		slog.Error("config_invalid", "error", "MCCENTER_DISPATCH_KEY is required")
		os.Exit(1)
	}

	client := dispatchclient.New(cfg.ServerURL, cfg.DispatchKey, 2*time.Minute)
	deps := orchestrators.RunDueJobsDeps{Jobs: client, Trigger: client, Now: time.Now}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(tickSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		fired, err := orchestrators.ExecuteRunDueJobs(ctx, deps)
		if err != nil {
			slog.Error("automation_event", "event", "poll_failed", "error", err.Error())
			return
		}
		if fired > 0 {
			slog.Info("automation_event", "event", "tick", "fired", fired)
		}
	}); err != nil {
		slog.Error("cron_schedule_invalid", "spec", tickSpec, "error", err.Error())
		os.Exit(1)
	}

	c.Start()
	slog.Info("scheduler_started", "server", cfg.ServerURL)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	<-c.Stop().Done()
	slog.Info("scheduler_stopped")
}

func logLevel(s string) slog.Level {
	switch s {
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
