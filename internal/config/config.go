package config

import (
	"os"
	"time"

	"mente-maestra/internal/domain"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		TTL string `yaml:"ttl"`
	} `yaml:"questions"`
	Game struct {
		MaxPlayers    int    `yaml:"maxPlayers"`
		Questions     int    `yaml:"questions"`
		Countdown     string `yaml:"countdown"`
		TimeLimit     string `yaml:"timeLimit"`
		FeedbackDwell string `yaml:"feedbackDwell"`
		PodiumDwell   string `yaml:"podiumDwell"`
		PollInterval  string `yaml:"pollInterval"`
		ActivityCode  string `yaml:"activityCode"`
	} `yaml:"game"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GameSettings maps the game section onto the domain settings, falling back to
// the defaults for anything unset.
func (c Config) GameSettings() domain.GameSettings {
	settings := domain.DefaultSettings()
	if c.Game.MaxPlayers > 0 {
		settings.MaxPlayers = c.Game.MaxPlayers
	}
	if c.Game.Questions > 0 {
		settings.Questions = c.Game.Questions
	}
	settings.Countdown = TTLDuration(c.Game.Countdown, settings.Countdown)
	settings.TimeLimit = TTLDuration(c.Game.TimeLimit, settings.TimeLimit)
	settings.FeedbackDwell = TTLDuration(c.Game.FeedbackDwell, settings.FeedbackDwell)
	settings.PodiumDwell = TTLDuration(c.Game.PodiumDwell, settings.PodiumDwell)
	settings.PollInterval = TTLDuration(c.Game.PollInterval, settings.PollInterval)
	if c.Game.ActivityCode != "" {
		code := c.Game.ActivityCode
		settings.ActivityCode = &code
	}
	return settings
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
