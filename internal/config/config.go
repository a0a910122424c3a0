package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	PlayersSource        string
	TeamsSource          string
	CollegeAliasesSource string

	TurnDuration time.Duration
	TurnLimit    int

	MatchWindow   time.Duration
	MatchTick     time.Duration
	MatchMaxTicks int

	DailyHorizonDays int
	SweepInterval    time.Duration
	DocTTL           time.Duration

	MessagesDir string
	// AllowedOrigins are host patterns allowed to open game websockets.
	AllowedOrigins []string
}

// Load reads the process environment. A .env file in the working directory is
// applied first when present; variables already set win.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		ListenAddr:       ":8080",
		TurnDuration:     60 * time.Second,
		TurnLimit:        30,
		MatchWindow:      60 * time.Second,
		MatchTick:        time.Second,
		MatchMaxTicks:    60,
		DailyHorizonDays: 100,
		SweepInterval:    5 * time.Second,
		DocTTL:           24 * time.Hour,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.PlayersSource = strings.TrimSpace(os.Getenv("PLAYERS_SOURCE"))
	cfg.TeamsSource = strings.TrimSpace(os.Getenv("TEAMS_SOURCE"))
	cfg.CollegeAliasesSource = strings.TrimSpace(os.Getenv("COLLEGE_ALIASES_SOURCE"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	if n, ok := positiveInt("TURN_SECONDS"); ok {
		cfg.TurnDuration = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("TURN_LIMIT"); ok {
		cfg.TurnLimit = n
	}
	if n, ok := positiveInt("MATCH_WINDOW_SECONDS"); ok {
		cfg.MatchWindow = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("MATCH_TICK_MS"); ok {
		cfg.MatchTick = time.Duration(n) * time.Millisecond
	}
	if n, ok := positiveInt("MATCH_MAX_TICKS"); ok {
		cfg.MatchMaxTicks = n
	}
	if n, ok := positiveInt("DAILY_HORIZON_DAYS"); ok {
		cfg.DailyHorizonDays = n
	}
	if n, ok := positiveInt("SWEEP_INTERVAL_SECONDS"); ok {
		cfg.SweepInterval = time.Duration(n) * time.Second
	}
	if n, ok := positiveInt("DOC_TTL_HOURS"); ok {
		cfg.DocTTL = time.Duration(n) * time.Hour
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.PlayersSource == "" {
		return nil, errors.New("PLAYERS_SOURCE is required")
	}
	if cfg.TeamsSource == "" {
		return nil, errors.New("TEAMS_SOURCE is required")
	}

	return cfg, nil
}

func positiveInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
