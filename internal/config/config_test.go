package config

import (
	"testing"
)

func TestLoadRequiresDatabaseAndRedis(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	if _, err := Load(); err == nil {
		t.Error("expected error without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/ops")
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil {
		t.Error("expected error without REDIS_URL")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ops")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port default: got %q", cfg.Port)
	}
	if cfg.WhatsAppAPIVersion != "v19.0" {
		t.Errorf("api version default: got %q", cfg.WhatsAppAPIVersion)
	}
	if cfg.BreakerFailureThreshold != 5 || cfg.BreakerCooldown.Seconds() != 60 {
		t.Errorf("breaker defaults: %d / %v", cfg.BreakerFailureThreshold, cfg.BreakerCooldown)
	}
	if cfg.PoolDownRatio != 0.90 {
		t.Errorf("pool down ratio default: got %v", cfg.PoolDownRatio)
	}
}

func TestParseThresholds(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]float64
	}{
		{"empty", "", nil},
		{"single", "whatsapp=1200", map[string]float64{"whatsapp": 1200}},
		{"pairs with spaces", "ai:auto_reply=2500, whatsapp=1200", map[string]float64{"ai:auto_reply": 2500, "whatsapp": 1200}},
		{"malformed pairs dropped", "bogus,ai=abc,whatsapp=800", map[string]float64{"whatsapp": 800}},
		{"all malformed", "bogus,=,x=", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseThresholds(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("key %q: got %v, want %v", k, got[k], v)
				}
			}
		})
	}
}
