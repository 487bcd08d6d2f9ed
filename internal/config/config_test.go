package config

import (
	"testing"
	"time"

	"mccenter/internal/domain/apperr"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.ScheduleBackend != BackendSQLite {
		t.Errorf("addr=%q backend=%q", cfg.Addr, cfg.ScheduleBackend)
	}
	if cfg.Location == nil || cfg.Location.String() != "Asia/Ho_Chi_Minh" {
		t.Errorf("location = %v", cfg.Location)
	}
	if cfg.DispatchConcurrency != 5 || cfg.SendMaxAttempts != 3 {
		t.Errorf("concurrency=%d attempts=%d", cfg.DispatchConcurrency, cfg.SendMaxAttempts)
	}
	if cfg.SendTimeout != 10*time.Second || cfg.SendBackoffBase != 500*time.Millisecond || cfg.SendBackoffMax != 5*time.Second {
		t.Errorf("send timings = %v %v %v", cfg.SendTimeout, cfg.SendBackoffBase, cfg.SendBackoffMax)
	}
	if cfg.SlowQuery != 50*time.Millisecond || cfg.RosterCacheTTL != 2*time.Minute {
		t.Errorf("slowQuery=%v ttl=%v", cfg.SlowQuery, cfg.RosterCacheTTL)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("MCCENTER_ADDR", ":9090")
	t.Setenv("MCCENTER_TIMEZONE", "Pacific/Auckland")
	t.Setenv("MCCENTER_ADMIN_EMAILS", "a@x.com, b@x.com,,")
	t.Setenv("MCCENTER_DISPATCH_CONCURRENCY", "12")
	t.Setenv("MCCENTER_SEND_TIMEOUT", "3s")
	t.Setenv("MCCENTER_SCHEDULE_BACKEND", "MONGO")
	t.Setenv("MCCENTER_MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("MCCENTER_SERVER_URL", "http://mc:8080/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.Location.String() != "Pacific/Auckland" {
		t.Errorf("addr=%q location=%v", cfg.Addr, cfg.Location)
	}
	if len(cfg.AdminEmails) != 2 || cfg.AdminEmails[1] != "b@x.com" {
		t.Errorf("admin emails = %v", cfg.AdminEmails)
	}
	if cfg.DispatchConcurrency != 12 || cfg.SendTimeout != 3*time.Second {
		t.Errorf("concurrency=%d timeout=%v", cfg.DispatchConcurrency, cfg.SendTimeout)
	}
	if cfg.ScheduleBackend != BackendMongo || cfg.ServerURL != "http://mc:8080" {
		t.Errorf("backend=%q serverURL=%q", cfg.ScheduleBackend, cfg.ServerURL)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown timezone", map[string]string{"MCCENTER_TIMEZONE": "Mars/Olympus"}},
		{"unknown backend", map[string]string{"MCCENTER_SCHEDULE_BACKEND": "postgres"}},
		{"mongo without uri", map[string]string{"MCCENTER_SCHEDULE_BACKEND": "mongo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); !apperr.IsValidation(err) {
				t.Errorf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestLoad_ClampsConcurrency(t *testing.T) {
	t.Setenv("MCCENTER_DISPATCH_CONCURRENCY", "0")
	t.Setenv("MCCENTER_SEND_MAX_ATTEMPTS", "-2")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DispatchConcurrency != 1 || cfg.SendMaxAttempts != 1 {
		t.Errorf("concurrency=%d attempts=%d", cfg.DispatchConcurrency, cfg.SendMaxAttempts)
	}
}

func TestLoad_ClampsRedeliveryInterval(t *testing.T) {
	for _, in := range []string{"0s", "-5s"} {
		t.Run(in, func(t *testing.T) {
			t.Setenv("MCCENTER_REDELIVERY_INTERVAL", in)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.RedeliveryInterval != DefaultRedeliveryInterval {
				t.Errorf("interval = %v, want %v", cfg.RedeliveryInterval, DefaultRedeliveryInterval)
			}
		})
	}
}
