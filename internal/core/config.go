package core

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/skinscan/internal/common"
	"github.com/jo-hoe/skinscan/internal/history"
	"github.com/jo-hoe/skinscan/internal/prediction"
	"github.com/jo-hoe/skinscan/internal/report"
	"github.com/jo-hoe/skinscan/internal/session"
)

type PredictionConfig struct {
	Endpoint string        `yaml:"endpoint" validate:"required,url"`
	Timeout  time.Duration `yaml:"timeout" validate:"min=0"`
}

type HistoryConfig struct {
	Endpoint string        `yaml:"endpoint" validate:"required,url"`
	Timeout  time.Duration `yaml:"timeout" validate:"min=0"`
	// RefreshDelay is the wait between a successful submission and the
	// history refresh.
	RefreshDelay time.Duration `yaml:"refreshDelay" validate:"min=0"`
}

type ProgressConfig struct {
	Step     int           `yaml:"step" validate:"min=1,max=99"`
	Interval time.Duration `yaml:"interval" validate:"min=1"`
	Cap      int           `yaml:"cap" validate:"min=1,max=99"`
}

type SessionConfig struct {
	Type     string        `yaml:"type" validate:"oneof=memory file redis"`
	Path     string        `yaml:"path"`
	RedisURL string        `yaml:"redisURL"`
	Key      string        `yaml:"key" validate:"required"`
	TTL      time.Duration `yaml:"ttl" validate:"min=0"`

	// DisplayName is stored on first start when the session has none.
	DisplayName string `yaml:"displayName"`
}

type ReportConfig struct {
	ImageCacheSize int    `yaml:"imageCacheSize" validate:"min=1"`
	OutputDir      string `yaml:"outputDir"`
}

type ServiceConfig struct {
	Prediction PredictionConfig `yaml:"prediction"`
	History    HistoryConfig    `yaml:"history"`
	Progress   ProgressConfig   `yaml:"progress"`
	Session    SessionConfig    `yaml:"session"`
	Report     ReportConfig     `yaml:"report"`
}

// DefaultConfig targets a backend on localhost:8080.
func DefaultConfig() ServiceConfig {
	progress := prediction.DefaultProgressConfig()
	return ServiceConfig{
		Prediction: PredictionConfig{
			Endpoint: "http://localhost:8080/predict",
			Timeout:  60 * time.Second,
		},
		History: HistoryConfig{
			Endpoint:     "http://localhost:8080/history",
			Timeout:      history.DefaultRefreshTimeout,
			RefreshDelay: history.DefaultRefreshDelay,
		},
		Progress: ProgressConfig{
			Step:     progress.Step,
			Interval: progress.Interval,
			Cap:      progress.Cap,
		},
		Session: SessionConfig{
			Type: "file",
			Path: session.DefaultFilePath(),
			Key:  "skinscan:session",
		},
		Report: ReportConfig{
			ImageCacheSize: report.DefaultImageCacheSize,
			OutputDir:      ".",
		},
	}
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return config, nil
}

// ParseConfig parses YAML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (*ServiceConfig, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := common.ValidateStruct(config); err != nil {
		return nil, err
	}
	if err := validateSession(config.Session); err != nil {
		return nil, fmt.Errorf("invalid session configuration: %w", err)
	}
	return &config, nil
}

func validateSession(s SessionConfig) error {
	switch {
	case s.Type == "redis" && s.RedisURL == "":
		return errors.New("redisURL is required for the redis session store")
	case s.Type == "file" && s.Path == "":
		return errors.New("path is required for the file session store")
	}
	return nil
}

func (p ProgressConfig) toPrediction() prediction.ProgressConfig {
	return prediction.ProgressConfig{Step: p.Step, Interval: p.Interval, Cap: p.Cap}
}
