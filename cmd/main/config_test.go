package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.PromptsDir != "./prompts" || config.JSONPrefix != "tweet_output" {
		t.Errorf("LoadConfig() defaults = %+v", config)
	}

	// A default config file must have been materialized.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default config file not written: %v", err)
	}
	var onDisk Config
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("default config file is not valid JSON: %v", err)
	}
	if onDisk.TextTemplate != config.TextTemplate {
		t.Errorf("on-disk config = %+v, want %+v", onDisk, config)
	}
}

func TestLoadConfigReadsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"output_dir": "/tmp/out", "log_level": "debug"}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.OutputDir != "/tmp/out" {
		t.Errorf("OutputDir = %q, want /tmp/out", config.OutputDir)
	}
	if config.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", config.LogLevel)
	}
	// Fields absent from the file keep their defaults.
	if config.TextTemplate != "gen-text-tweet.json" {
		t.Errorf("TextTemplate = %q, want default", config.TextTemplate)
	}
}

func TestLoadConfigRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"output_dir": `), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() accepted malformed JSON")
	}
}

func TestEnsureEnv(t *testing.T) {
	t.Setenv("TWEETFORGE_TEST_PRIMARY", "")
	t.Setenv("TWEETFORGE_TEST_FALLBACK", "from-fallback")

	got, err := ensureEnv("TWEETFORGE_TEST_PRIMARY", "TWEETFORGE_TEST_FALLBACK")
	if err != nil {
		t.Fatalf("ensureEnv() error = %v", err)
	}
	if got != "from-fallback" {
		t.Errorf("ensureEnv() = %q, want from-fallback", got)
	}

	t.Setenv("TWEETFORGE_TEST_FALLBACK", "")
	if _, err := ensureEnv("TWEETFORGE_TEST_PRIMARY", "TWEETFORGE_TEST_FALLBACK"); err == nil {
		t.Fatal("ensureEnv() succeeded with both variables empty")
	}
}
