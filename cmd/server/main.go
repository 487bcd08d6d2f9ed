package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	emailPkg "mccenter/internal/adapters/email"
	web "mccenter/internal/adapters/http"
	"mccenter/internal/adapters/http/middleware"
	rosterAdapter "mccenter/internal/adapters/roster"
	"mccenter/internal/adapters/storage"
	automationStore "mccenter/internal/adapters/storage/automation"
	courseStore "mccenter/internal/adapters/storage/course"
	outboxStorePkg "mccenter/internal/adapters/storage/outbox"
	scheduleStore "mccenter/internal/adapters/storage/schedule"
	studentStore "mccenter/internal/adapters/storage/student"
	"mccenter/internal/application/orchestrators"
	"mccenter/internal/application/projections"
	"mccenter/internal/config"
	"mccenter/internal/domain/automation"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "error", err.Error())
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))

	db, err := sql.Open("sqlite", cfg.DSN())
	if err != nil {
		fatal("failed to open database", err)
	}
	defer db.Close()

	// Connection pool settings for WAL mode
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		fatal("database unreachable", err)
	}
	if err := storage.MigrateDB(db); err != nil {
		fatal("failed to migrate database", err)
	}
	timedDB := storage.NewTimedDB(db, cfg.SlowQuery)

	ctx := context.Background()
	schedules, closeSchedules := openScheduleStore(ctx, cfg, timedDB)
	defer closeSchedules()

	students := studentStore.NewSQLiteStore(timedDB)
	outbox := outboxStorePkg.NewSQLiteStore(timedDB)
	jobs := automationStore.NewSQLiteStore(timedDB)
	if err := jobs.SeedDefaults(ctx, automation.DefaultJobs(cfg.Timezone)); err != nil {
		fatal("failed to seed automation jobs", err)
	}

	stores := web.Stores{
		ScheduleStore:   schedules,
		CourseStore:     courseStore.NewSQLiteStore(timedDB),
		AutomationStore: jobs,
		OutboxStore:     outbox,
	}

	// The roster is the local student table unless a remote service is configured.
	var liveRoster projections.RosterSource = students
	if cfg.RosterURL != "" {
		liveRoster = rosterAdapter.NewHTTPClient(cfg.RosterURL, cfg.RosterKey)
		slog.Info("roster_source", "kind", "remote", "url", cfg.RosterURL)
	} else {
		stores.LocalRoster = students
		slog.Info("roster_source", "kind", "local")
	}
	calendarRoster := liveRoster
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis_unavailable", "addr", cfg.RedisAddr, "error", err.Error())
		}
		calendarRoster = rosterAdapter.NewCachedSource(liveRoster, rdb, cfg.RosterCacheTTL)
	}

	var sender emailPkg.Sender
	if cfg.ResendKey != "" {
		sender = emailPkg.NewResendSender(cfg.ResendKey, cfg.ResendFrom, cfg.ReplyTo)
		slog.Info("email_sender", "kind", "resend")
	} else {
		sender = emailPkg.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("email_sender", "kind", "noop", "hint", "MCCENTER_RESEND_KEY is not set; email delivery is disabled")
		} else {
			slog.Info("email_sender", "kind", "noop")
		}
	}

	redeliveryStop := make(chan struct{})
	orchestrators.StartRedeliveryWorker(orchestrators.NewRedeliveryProcessor(outbox, sender, time.Now), cfg.RedeliveryInterval, redeliveryStop)
	defer close(redeliveryStop)

	csrfKey, err := web.DecodeCSRFKey(cfg.CSRFKey)
	if err != nil {
		fatal("invalid CSRF key", err)
	}

	handler, err := web.NewMux(&web.App{
		Stores:         stores,
		CalendarRoster: calendarRoster,
		DispatchRoster: liveRoster,
		Dispatch: web.DispatchSettings{
			Sender:      sender,
			AdminEmails: cfg.AdminEmails,
			Concurrency: cfg.DispatchConcurrency,
			SendTimeout: cfg.SendTimeout,
			MaxAttempts: cfg.SendMaxAttempts,
			BackoffBase: cfg.SendBackoffBase,
			BackoffMax:  cfg.SendBackoffMax,
		},
		Location: cfg.Location,
		Keys: middleware.KeyRing{
			middleware.RoleAdmin:    cfg.AdminKeyHash,
			middleware.RoleDispatch: cfg.DispatchKeyHash,
		},
		CSRFKey:     csrfKey,
		Production:  cfg.IsProduction(),
		SlowRequest: cfg.SlowRequest,
	})
	if err != nil {
		fatal("failed to build handler", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown_failed", "error", err.Error())
		}
	}()

	slog.Info("server_starting", "version", version, "addr", cfg.Addr, "env", cfg.Env,
		"schema", storage.LatestSchemaVersion(), "timezone", cfg.Timezone, "schedule_backend", cfg.ScheduleBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal("server failed", err)
	}
	slog.Info("server_stopped")
}

// openScheduleStore returns the configured schedule backend and its cleanup.
func openScheduleStore(ctx context.Context, cfg config.Config, db storage.SQLDB) (scheduleStore.Store, func()) {
	if cfg.ScheduleBackend != config.BackendMongo {
		return scheduleStore.NewSQLiteStore(db), func() {}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		fatal("mongo connect failed", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		fatal("mongo unreachable", err)
	}
	store := scheduleStore.NewMongoStore(client.Database(cfg.MongoDB))
	if err := store.EnsureIndexes(connectCtx); err != nil {
		fatal("mongo indexes failed", err)
	}
	return store, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	}
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

func fatal(msg string, err error) {
	slog.Error(msg, "error", err.Error())
	os.Exit(1)
}
