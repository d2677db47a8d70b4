package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
)

const (
	defaultBaseURL   = "https://app.2dworkflow.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	MinMileThreshold = 0
	MaxMileThreshold = 5000
	MinIntervalMins  = 1
	MaxIntervalMins  = 500
)

type Settings struct {
	BaseURL    string `json:"base_url"`
	UserAgent  string `json:"user_agent"`
	ListenAddr string `json:"listen_addr"`

	// Outbound sinks; both optional.
	WebhookURL string `json:"webhook_url"`
	RedisURL   string `json:"redis_url"`
	EventTopic string `json:"event_topic"`

	MileThreshold   int               `json:"mile_threshold"`
	IntervalMinutes int               `json:"interval_minutes"`
	Cadence         model.CadenceMode `json:"cadence"`

	LogCapacity     int           `json:"log_capacity"`
	HistoryCapacity int           `json:"history_capacity"`
	PollDelay       time.Duration `json:"poll_delay"`
	MaxPolls        int           `json:"max_polls"`
}

func Default() Settings {
	return Settings{
		BaseURL:         defaultBaseURL,
		UserAgent:       defaultUserAgent,
		ListenAddr:      ":8088",
		EventTopic:      "shipbot.events",
		MileThreshold:   300,
		IntervalMinutes: 30,
		Cadence:         model.CadenceInterval,
		LogCapacity:     50,
		HistoryCapacity: 50,
		PollDelay:       5 * time.Second,
		MaxPolls:        60,
	}
}

// Load reads settings from the environment, with an optional .env file.
// Credentials are deliberately not part of Settings: they arrive per tenant
// from the UI collaborator and live only in process memory.
func Load() (Settings, error) {
	_ = godotenv.Load()

	cfg := Default()
	cfg.BaseURL = getenv("SHIPBOT_BASE_URL", cfg.BaseURL)
	cfg.ListenAddr = getenv("SHIPBOT_ADDR", cfg.ListenAddr)
	cfg.WebhookURL = getenv("SHIPBOT_WEBHOOK_URL", cfg.WebhookURL)
	cfg.RedisURL = getenv("SHIPBOT_REDIS_URL", cfg.RedisURL)
	cfg.EventTopic = getenv("SHIPBOT_EVENT_TOPIC", cfg.EventTopic)
	cfg.Cadence = model.CadenceMode(getenv("SHIPBOT_CADENCE", string(cfg.Cadence)))

	var err error
	if cfg.MileThreshold, err = getenvInt("SHIPBOT_MILE_THRESHOLD", cfg.MileThreshold); err != nil {
		return cfg, err
	}
	if cfg.IntervalMinutes, err = getenvInt("SHIPBOT_INTERVAL_MINUTES", cfg.IntervalMinutes); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.BaseURL) == "" {
		return fmt.Errorf("base url is required")
	}
	if s.MileThreshold < MinMileThreshold || s.MileThreshold > MaxMileThreshold {
		return fmt.Errorf("mile threshold %d out of range [%d, %d]", s.MileThreshold, MinMileThreshold, MaxMileThreshold)
	}
	if s.IntervalMinutes < MinIntervalMins || s.IntervalMinutes > MaxIntervalMins {
		return fmt.Errorf("interval minutes %d out of range [%d, %d]", s.IntervalMinutes, MinIntervalMins, MaxIntervalMins)
	}
	switch s.Cadence {
	case model.CadenceInterval, model.CadenceHalfHourly, model.CadenceQuarterly:
	default:
		return fmt.Errorf("unknown cadence %q", s.Cadence)
	}
	return nil
}

func getenv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}
