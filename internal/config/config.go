package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	Port                 int
	AllowedOrigins       []string
	MinPlayers           int
	MaxPlayers           int
	DefaultRoundMinutes  int
	TimerTickMillis      int
	RoomStaleMinutes     int
	SweepIntervalMinutes int
	ScenariosFile        string
	IntentRatePerSecond  float64
	IntentBurst          int
	LogLevel             string
	LogPretty            bool
	DatabaseURL          string
	AutoMigrate          bool
	GinMode              string
}

func Default() Config {
	return Config{
		Port: 3001,
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:3000",
		},
		MinPlayers:           3,
		MaxPlayers:           0,
		DefaultRoundMinutes:  6,
		TimerTickMillis:      1000,
		RoomStaleMinutes:     120,
		SweepIntervalMinutes: 30,
		IntentRatePerSecond:  5,
		IntentBurst:          10,
		LogLevel:             "info",
		GinMode:              "release",
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("PORT"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.Port = value
		}
	}
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		cfg.AllowedOrigins = splitList(raw)
	}
	if raw := strings.TrimSpace(os.Getenv("CLIENT_URL")); raw != "" {
		cfg.AllowedOrigins = append(cfg.AllowedOrigins, raw)
	}
	if raw := os.Getenv("MIN_PLAYERS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.MinPlayers = value
		}
	}
	if raw := os.Getenv("MAX_PLAYERS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.MaxPlayers = value
		}
	}
	if raw := os.Getenv("DEFAULT_ROUND_MINUTES"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 && value <= 60 {
			cfg.DefaultRoundMinutes = value
		}
	}
	if raw := os.Getenv("TIMER_TICK_MS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.TimerTickMillis = value
		}
	}
	if raw := os.Getenv("ROOM_STALE_MINUTES"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.RoomStaleMinutes = value
		}
	}
	if raw := os.Getenv("SWEEP_INTERVAL_MINUTES"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.SweepIntervalMinutes = value
		}
	}
	if raw := os.Getenv("SCENARIOS_FILE"); raw != "" {
		cfg.ScenariosFile = raw
	}
	if raw := os.Getenv("INTENT_RATE_PER_SECOND"); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil && value > 0 {
			cfg.IntentRatePerSecond = value
		}
	}
	if raw := os.Getenv("INTENT_BURST"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.IntentBurst = value
		}
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw))
	}
	if raw := os.Getenv("LOG_PRETTY"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.LogPretty = value
		}
	}
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		cfg.DatabaseURL = raw
	}
	if raw := os.Getenv("AUTO_MIGRATE"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.AutoMigrate = value
		}
	}
	if raw := os.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}
	return cfg
}

func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func (c Config) TimerTick() time.Duration {
	return time.Duration(c.TimerTickMillis) * time.Millisecond
}

func (c Config) RoomStaleAfter() time.Duration {
	return time.Duration(c.RoomStaleMinutes) * time.Minute
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// FitPlayers lowers MinPlayers to the largest room the scenario catalog can
// deal for, so that a full room can always start. It reports whether
// MinPlayers changed.
func (c Config) FitPlayers(capacity int) (Config, bool) {
	limit := capacity
	if c.MaxPlayers > 0 && c.MaxPlayers < limit {
		limit = c.MaxPlayers
	}
	if limit <= 0 || c.MinPlayers <= limit {
		return c, false
	}
	c.MinPlayers = limit
	return c, true
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	list := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, part)
		}
	}
	return list
}
