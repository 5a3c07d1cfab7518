package config

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Data struct {
		File   string `mapstructure:"file"`
		Indent bool   `mapstructure:"indent"`
	} `mapstructure:"data"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func TestLoadFromEnvAndFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "BJTEST_DATA_FILE=from-file.json\nBJTEST_LOG_LEVEL=INFO\nOTHER_VALUE=ignored\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BJTEST_LOG_LEVEL", "DEBUG")
	t.Setenv("BJTEST_DATA_INDENT", "true")

	var cfg testConfig
	if err := LoadFrom("BJTEST_", envFile, &cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.Data.File != "from-file.json" {
		t.Errorf("Expected data.file from .env, got %q", cfg.Data.File)
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("Expected environment to override .env, got %q", cfg.Log.Level)
	}
	if !cfg.Data.Indent {
		t.Error("Expected data.indent=true from environment")
	}
}

func TestLoadFromMissingFileKeepsDefaults(t *testing.T) {
	cfg := testConfig{}
	cfg.Data.File = "default.json"

	if err := LoadFrom("BJTEST_UNSET_", filepath.Join(t.TempDir(), "none.env"), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Data.File != "default.json" {
		t.Errorf("Expected default to survive, got %q", cfg.Data.File)
	}
}
