// Package config loads service settings from the environment. A .env file
// in the working directory is read first when present; real environment
// variables always win over it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mccenter/internal/domain/apperr"
)

// EnvPrefix is prepended to every key: "db_path" is read from MCCENTER_DB_PATH.
const EnvPrefix = "MCCENTER"

// Schedule store backends.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// ErrUnknownBackend is returned for a SCHEDULE_BACKEND other than sqlite or mongo.
var ErrUnknownBackend = errors.New("schedule backend must be sqlite or mongo")

// Config holds every setting of the server and scheduler binaries.
type Config struct {
	Addr     string
	Env      string
	DBPath   string
	Timezone string
	Location *time.Location

	AdminEmails []string
	ResendKey   string
	ResendFrom  string
	ReplyTo     string

	AdminKeyHash    string // bcrypt
	DispatchKeyHash string // bcrypt
	CSRFKey         string // hex, 32 bytes

	RosterURL      string // empty reads the local student table
	RosterKey      string
	RedisAddr      string // empty disables the roster cache
	RosterCacheTTL time.Duration

	ScheduleBackend string
	MongoURI        string
	MongoDB         string

	DispatchConcurrency int
	SendTimeout         time.Duration
	SendMaxAttempts     int
	SendBackoffBase     time.Duration
	SendBackoffMax      time.Duration
	RedeliveryInterval  time.Duration

	SlowQuery   time.Duration
	SlowRequest time.Duration
	LogLevel    string

	ServerURL   string // scheduler: where the server listens
	DispatchKey string // scheduler: plaintext dispatch key
}

func defaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("env", "development")
	v.SetDefault("db_path", "mccenter.db")
	v.SetDefault("timezone", "Asia/Ho_Chi_Minh")
	v.SetDefault("resend_from", "MC Center <noreply@mccenter.vn>")
	v.SetDefault("reply_to", "")
	v.SetDefault("roster_cache_ttl", "2m")
	v.SetDefault("schedule_backend", BackendSQLite)
	v.SetDefault("mongo_db", "mccenter")
	v.SetDefault("dispatch_concurrency", 5)
	v.SetDefault("send_timeout", "10s")
	v.SetDefault("send_max_attempts", 3)
	v.SetDefault("send_backoff_base", "500ms")
	v.SetDefault("send_backoff_max", "5s")
	v.SetDefault("redelivery_interval", "1m")
	v.SetDefault("slow_query_ms", 50)
	v.SetDefault("slow_request_ms", 200)
	v.SetDefault("log_level", "info")
	v.SetDefault("server_url", "http://localhost:8080")
}

// Load reads .env (if present) and the environment.
// PRE: none
// POST: Returns a Config with defaults applied, or a ValidationError for
// an unknown timezone or backend
func Load() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	defaults(v)
	return v
}

// DefaultRedeliveryInterval replaces a non-positive redelivery interval.
const DefaultRedeliveryInterval = time.Minute

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Addr:                v.GetString("addr"),
		Env:                 v.GetString("env"),
		DBPath:              v.GetString("db_path"),
		Timezone:            v.GetString("timezone"),
		AdminEmails:         splitList(v.GetString("admin_emails")),
		ResendKey:           v.GetString("resend_key"),
		ResendFrom:          v.GetString("resend_from"),
		ReplyTo:             v.GetString("reply_to"),
		AdminKeyHash:        v.GetString("admin_key_hash"),
		DispatchKeyHash:     v.GetString("dispatch_key_hash"),
		CSRFKey:             v.GetString("csrf_key"),
		RosterURL:           v.GetString("roster_url"),
		RosterKey:           v.GetString("roster_key"),
		RedisAddr:           v.GetString("redis_addr"),
		RosterCacheTTL:      v.GetDuration("roster_cache_ttl"),
		ScheduleBackend:     strings.ToLower(v.GetString("schedule_backend")),
		MongoURI:            v.GetString("mongo_uri"),
		MongoDB:             v.GetString("mongo_db"),
		DispatchConcurrency: v.GetInt("dispatch_concurrency"),
		SendTimeout:         v.GetDuration("send_timeout"),
		SendMaxAttempts:     v.GetInt("send_max_attempts"),
		SendBackoffBase:     v.GetDuration("send_backoff_base"),
		SendBackoffMax:      v.GetDuration("send_backoff_max"),
		RedeliveryInterval:  v.GetDuration("redelivery_interval"),
		SlowQuery:           time.Duration(v.GetInt("slow_query_ms")) * time.Millisecond,
		SlowRequest:         time.Duration(v.GetInt("slow_request_ms")) * time.Millisecond,
		LogLevel:            strings.ToLower(v.GetString("log_level")),
		ServerURL:           strings.TrimRight(v.GetString("server_url"), "/"),
		DispatchKey:         v.GetString("dispatch_key"),
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil || cfg.Timezone == "" {
		return Config{}, apperr.Invalid("timezone", fmt.Errorf("unknown timezone %q", cfg.Timezone))
	}
	cfg.Location = loc

	if cfg.ScheduleBackend != BackendSQLite && cfg.ScheduleBackend != BackendMongo {
		return Config{}, apperr.Invalid("schedule_backend", ErrUnknownBackend)
	}
	if cfg.ScheduleBackend == BackendMongo && cfg.MongoURI == "" {
		return Config{}, apperr.Invalid("mongo_uri", errors.New("required when schedule backend is mongo"))
	}
	if cfg.DispatchConcurrency < 1 {
		cfg.DispatchConcurrency = 1
	}
	if cfg.SendMaxAttempts < 1 {
		cfg.SendMaxAttempts = 1
	}
	if cfg.RedeliveryInterval <= 0 {
		cfg.RedeliveryInterval = DefaultRedeliveryInterval
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// DSN returns the SQLite connection string with WAL mode, foreign keys and
// a busy timeout.
func (c Config) DSN() string {
	return c.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
