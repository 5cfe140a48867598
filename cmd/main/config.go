package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// Config holds the settings for the generation pipeline.
type Config struct {
	// OutputDir receives the generated summary JSON, image assets, and
	// the tweets.txt index.
	OutputDir string `json:"output_dir"`

	// PromptsDir contains the prompt template files.
	PromptsDir string `json:"prompts_dir"`

	// MadlibDir overrides the madlib word-list directory. When empty,
	// the "madlib" directory next to each template is used.
	MadlibDir string `json:"madlib_dir"`

	// DatabasePath is the SQLite data source for the run archive.
	DatabasePath string `json:"database_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`

	// Template filenames within PromptsDir for the three pipeline stages.
	TextTemplate        string `json:"text_template"`
	ImagePromptTemplate string `json:"image_prompt_template"`
	ImageTemplate       string `json:"image_template"`

	// Filename prefixes for generated assets.
	ImagePrefix string `json:"image_prefix"`
	JSONPrefix  string `json:"json_prefix"`

	// ChoiceCacheSize bounds the madlib file cache; 0 uses the default.
	ChoiceCacheSize int `json:"choice_cache_size"`
}

// DefaultConfig creates a pipeline configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:           "./replicate_tweet_outputs",
		PromptsDir:          "./prompts",
		MadlibDir:           "",
		DatabasePath:        "./tweetforge.db?_journal_mode=WAL&_busy_timeout=5000",
		LogLevel:            "info",
		TextTemplate:        "gen-text-tweet.json",
		ImagePromptTemplate: "gen-text-imageprompt.json",
		ImageTemplate:       "gen-image-tweet.json",
		ImagePrefix:         "tweet_image",
		JSONPrefix:          "tweet_output",
		ChoiceCacheSize:     0,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// The pipeline can still run with defaults.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}
