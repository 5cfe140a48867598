package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/CL8Y/tweetforge/pkg/archive"
	"github.com/CL8Y/tweetforge/pkg/prompting"
	"github.com/CL8Y/tweetforge/pkg/replicate"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// ensureEnv returns the first non-empty value among name and fallbacks.
func ensureEnv(name string, fallbacks ...string) (string, error) {
	for _, candidate := range append([]string{name}, fallbacks...) {
		if value := os.Getenv(candidate); value != "" {
			return value, nil
		}
	}
	if len(fallbacks) > 0 {
		return "", fmt.Errorf("missing required environment variable: %s (also checked %s)",
			name, strings.Join(fallbacks, ", "))
	}
	return "", fmt.Errorf("missing required environment variable: %s", name)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func main() {
	configPath := flag.String("config", "./config.json", "path to the pipeline config file")
	outputDir := flag.String("output-dir", "", "override the configured output directory")
	seed := flag.Uint64("seed", 0, "deterministic seed for madlib sampling")
	imagePrefix := flag.String("image-prefix", "", "override the image filename prefix")
	jsonPrefix := flag.String("json-prefix", "", "override the summary filename prefix")
	flag.Parse()

	seedSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			seedSet = true
		}
	})

	baseLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(*configPath, *outputDir, *imagePrefix, *jsonPrefix, seedSet, *seed, baseLogger); err != nil {
		baseLogger.Error("Generation failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, outputDir, imagePrefix, jsonPrefix string, seedSet bool, seed uint64, baseLogger *slog.Logger) error {
	config, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if outputDir != "" {
		config.OutputDir = outputDir
	}
	if imagePrefix != "" {
		config.ImagePrefix = imagePrefix
	}
	if jsonPrefix != "" {
		config.JSONPrefix = jsonPrefix
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout,
		&slog.HandlerOptions{Level: parseLogLevel(config.LogLevel)}))
	logger.Info("Starting generation run", "version", Version)

	apiToken, err := ensureEnv("REPLICATE_API_TOKEN", "REPLICATE_API_KEY")
	if err != nil {
		return err
	}
	textModel, err := ensureEnv("TEXT_MODEL")
	if err != nil {
		return err
	}
	imageModel, err := ensureEnv("IMAGE_MODEL")
	if err != nil {
		return err
	}

	db, err := initDB(config.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err = archive.SetupSchema(db); err != nil {
		return fmt.Errorf("failed to setup archive schema: %w", err)
	}
	store, err := archive.NewStore(db, logger)
	if err != nil {
		return fmt.Errorf("failed to create archive store: %w", err)
	}
	defer store.Close()

	var rng *rand.Rand
	if seedSet {
		rng = rand.New(rand.NewPCG(seed, seed))
		logger.Info("Using deterministic madlib sampling", "seed", seed)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline := &Pipeline{
		config:     config,
		renderer:   prompting.NewRenderer(prompting.NewChoiceStore(config.ChoiceCacheSize)),
		client:     replicate.NewClient(apiToken, logger),
		store:      store,
		logger:     logger,
		rng:        rng,
		textModel:  textModel,
		imageModel: imageModel,
	}
	return pipeline.Run(ctx)
}
