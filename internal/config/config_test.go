package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PLAYERS_SOURCE", "data/players.json")
	t.Setenv("TEAMS_SOURCE", "data/teams.json")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TurnDuration != time.Minute || cfg.TurnLimit != 30 || cfg.MatchMaxTicks != 60 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.ListenAddr != ":8080" || cfg.AllowedOrigins != nil {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TURN_SECONDS", "45")
	t.Setenv("TURN_LIMIT", "-3")
	t.Setenv("MATCH_TICK_MS", "250")
	t.Setenv("ALLOWED_ORIGINS", " ballknower.app, *.ballknower.app ,")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TurnDuration != 45*time.Second || cfg.MatchTick != 250*time.Millisecond {
		t.Fatalf("durations = %v %v", cfg.TurnDuration, cfg.MatchTick)
	}
	if cfg.TurnLimit != 30 {
		t.Fatalf("negative limit should keep default, got %d", cfg.TurnLimit)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "*.ballknower.app" {
		t.Fatalf("origins = %q", cfg.AllowedOrigins)
	}
}

func TestLoadRequiresSources(t *testing.T) {
	setRequired(t)
	t.Setenv("PLAYERS_SOURCE", "")
	if _, err := Load(); err == nil {
		t.Fatalf("missing PLAYERS_SOURCE should fail")
	}
}
