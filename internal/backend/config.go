package backend

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/skinscan/internal/common"
)

const (
	defaultMaxImages      = 3
	defaultHistoryLimit   = 10
	defaultMaxUploadBytes = 10 << 20
)

type Database struct {
	Type             string `yaml:"type" validate:"required,oneof=sqlite"`
	ConnectionString string `yaml:"connectionString" validate:"required"`
}

type BackendConfig struct {
	Port     int      `yaml:"port" validate:"min=1,max=65535"`
	Database Database `yaml:"database"`
	// MaxImages caps the image parts of one prediction request.
	MaxImages int `yaml:"maxImages" validate:"min=1,max=10"`
	// HistoryLimit is the number of records returned by the history endpoint.
	HistoryLimit   int   `yaml:"historyLimit" validate:"min=1"`
	MaxUploadBytes int64 `yaml:"maxUploadBytes" validate:"min=1"`
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*BackendConfig, error) {
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

// ParseConfig parses YAML, applies defaults and validates the result.
func ParseConfig(data []byte) (*BackendConfig, error) {
	config := BackendConfig{
		Port:           8080,
		MaxImages:      defaultMaxImages,
		HistoryLimit:   defaultHistoryLimit,
		MaxUploadBytes: defaultMaxUploadBytes,
		Database: Database{
			Type:             "sqlite",
			ConnectionString: "skin_ai.db",
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := common.ValidateStruct(config); err != nil {
		return nil, err
	}
	return &config, nil
}
