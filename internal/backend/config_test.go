package backend

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `port: 9090
database:
  type: sqlite
  connectionString: ":memory:"
historyLimit: 5`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Port != 9090 {
		t.Errorf("Expected port to be 9090, got %d", config.Port)
	}
	if config.Database.ConnectionString != ":memory:" {
		t.Errorf("Expected connectionString to be ':memory:', got '%s'", config.Database.ConnectionString)
	}
	if config.HistoryLimit != 5 {
		t.Errorf("Expected historyLimit 5, got %d", config.HistoryLimit)
	}
	if config.MaxImages != defaultMaxImages {
		t.Errorf("Expected default maxImages %d, got %d", defaultMaxImages, config.MaxImages)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	config, err := LoadConfig("/path/that/does/not/exist/config.yaml")
	if err == nil {
		t.Fatal("Expected error for non-existent file, got nil")
	}
	if config != nil {
		t.Error("Expected config to be nil when file doesn't exist")
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unsupported database", "database:\n  type: postgres\n  connectionString: x"},
		{"port out of range", "port: 70000"},
		{"zero history limit", "historyLimit: 0"},
		{"malformed yaml", "port: [8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
