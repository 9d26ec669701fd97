package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QUICKSET_API_KEY", "key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Polling.Interval != 2*time.Second {
		t.Fatalf("poll interval = %s, want 2s", cfg.Polling.Interval)
	}
	if !cfg.Digest.Enabled || cfg.Digest.Interval != time.Minute || cfg.Digest.Window != 200 {
		t.Fatalf("unexpected digest config: %+v", cfg.Digest)
	}
	if len(cfg.Security.AllowedOrigins) != 2 {
		t.Fatalf("allowed origins = %v", cfg.Security.AllowedOrigins)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero poll interval", key: "POLL_INTERVAL", value: "0s"},
		{name: "garbage poll interval", key: "POLL_INTERVAL", value: "soon"},
		{name: "digest interval too short", key: "DIGEST_INTERVAL", value: "1s"},
		{name: "negative digest window", key: "DIGEST_WINDOW", value: "-1"},
		{name: "auth without token", key: "AUTH_ENABLED", value: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			t.Setenv("AUTH_BEARER_TOKEN", "")

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestParseDimensions(t *testing.T) {
	got := parseDimensions("env=prod, team = qa,broken,=empty")
	if len(got) != 2 || got["env"] != "prod" || got["team"] != "qa" {
		t.Fatalf("parseDimensions() = %v", got)
	}
}
