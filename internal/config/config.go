package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Services struct {
		QuizDataURL string `yaml:"quizDataUrl"`
		SubmitURL   string `yaml:"submitUrl"`
		GenerateURL string `yaml:"generateUrl"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"services"`
	Throttle struct {
		Store    string `yaml:"store"` // memory, file, redis, or sqlite
		Limit    int    `yaml:"limit"`
		Cooldown string `yaml:"cooldown"`
		Path     string `yaml:"path"` // file/sqlite location
		Redis    struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			TTL      string `yaml:"ttl"`
		} `yaml:"redis"`
	} `yaml:"throttle"`
	Session struct {
		RestartDelay     string `yaml:"restartDelay"`
		NormalizeAnswers bool   `yaml:"normalizeAnswers"`
	} `yaml:"session"`
	Topics struct {
		TTL string `yaml:"ttl"`
	} `yaml:"topics"`
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

// DurationOr parses a duration string or returns the fallback if empty or malformed.
func DurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
