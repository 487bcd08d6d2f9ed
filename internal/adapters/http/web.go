package web

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"mccenter/internal/adapters/email"
	"mccenter/internal/adapters/http/middleware"
	automationStore "mccenter/internal/adapters/storage/automation"
	courseStore "mccenter/internal/adapters/storage/course"
	scheduleStore "mccenter/internal/adapters/storage/schedule"
	"mccenter/internal/application/orchestrators"
	"mccenter/internal/application/projections"
)

// Stores holds all storage dependencies.
type Stores struct {
	ScheduleStore   scheduleStore.Store
	CourseStore     courseStore.Store
	AutomationStore automationStore.Store
	OutboxStore     orchestrators.OutboxWriter
	// LocalRoster is the student table served on GET /roster; nil disables the endpoint.
	LocalRoster projections.RosterSource
}

// DispatchSettings bounds the send side of a dispatch run.
type DispatchSettings struct {
	Sender      email.Sender
	AdminEmails []string
	Concurrency int
	SendTimeout time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// App is everything the handlers need.
type App struct {
	Stores Stores
	// CalendarRoster feeds calendar statistics and may be cached;
	// DispatchRoster must read live.
	CalendarRoster projections.RosterSource
	DispatchRoster projections.RosterSource
	Dispatch       DispatchSettings
	Location       *time.Location // business timezone

	Keys           middleware.KeyRing
	CSRFKey        []byte // 32 bytes; nil generates one per process
	Production     bool
	TrustedOrigins []string
	SlowRequest    time.Duration

	Now        func() time.Time
	GenerateID func() string
}

// Global app instance (set by NewMux)
var app *App

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 20

// ErrMissingCSRFKey is returned by NewMux in production without a CSRF key.
var ErrMissingCSRFKey = errors.New("CSRF key is required in production")

// NewMux wires HTTP handlers for the service.
// PRE: a has its stores, rosters and sender set
// POST: Returns the handler wrapped in the middleware chain
func NewMux(a *App) (http.Handler, error) {
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.GenerateID == nil {
		a.GenerateID = generateID
	}
	if a.Location == nil {
		a.Location = time.UTC
	}
	csrfKey, err := resolveCSRFKey(a.CSRFKey, a.Production)
	if err != nil {
		return nil, err
	}
	app = a

	mux := http.NewServeMux()
	registerRoutes(mux, a.Keys)

	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	// Timing -> RateLimit -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey, a.Production, a.TrustedOrigins),
		middleware.RateLimit(limiter),
		middleware.Timing(a.SlowRequest),
	), nil
}

func registerRoutes(mux *http.ServeMux, keys middleware.KeyRing) {
	admin := middleware.RequireRole(keys, middleware.RoleAdmin)
	dispatcher := middleware.RequireRole(keys, middleware.RoleDispatch)
	either := middleware.RequireRole(keys, middleware.RoleAdmin, middleware.RoleDispatch)

	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/calendar", handleCalendar)
	mux.HandleFunc("/sessions", handleSessions)
	mux.Handle("/dispatch", dispatcher(http.HandlerFunc(handleDispatch)))
	mux.Handle("/roster", admin(http.HandlerFunc(handleRoster)))
	mux.Handle("/api/schedules", admin(http.HandlerFunc(handleSchedules)))
	mux.Handle("/api/schedules/sessions", admin(http.HandlerFunc(handleSessionStatus)))
	mux.Handle("/api/automation", either(http.HandlerFunc(handleAutomation)))
}

// resolveCSRFKey returns key, or a random one outside production.
func resolveCSRFKey(key []byte, production bool) ([]byte, error) {
	if len(key) == 32 {
		return key, nil
	}
	if production {
		return nil, ErrMissingCSRFKey
	}
	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	slog.Warn("csrf_key_generated", "hint", "set MCCENTER_CSRF_KEY to keep form tokens valid across restarts")
	return key, nil
}

// DecodeCSRFKey parses a hex-encoded 32 byte key. An empty string yields nil.
func DecodeCSRFKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != 32 {
		return nil, errors.New("CSRF key must be 64 hex characters (32 bytes)")
	}
	return key, nil
}

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
