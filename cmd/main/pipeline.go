package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/CL8Y/tweetforge/pkg/archive"
	"github.com/CL8Y/tweetforge/pkg/prompting"
	"github.com/CL8Y/tweetforge/pkg/replicate"
	"github.com/natefinch/atomic"
)

// Pipeline runs one full generation cycle: tweet text, companion image
// prompt, image, then persistence of all artifacts.
type Pipeline struct {
	config     *Config
	renderer   *prompting.Renderer
	client     *replicate.Client
	store      *archive.Store
	logger     *slog.Logger
	rng        *rand.Rand
	httpClient *http.Client
	textModel  string
	imageModel string
}

// Run executes the pipeline. All three template renders share one random
// source and one selection log, so a seeded run is fully reproducible
// given identical model outputs.
func (p *Pipeline) Run(ctx context.Context) error {
	httpClient := p.httpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	selections := make(prompting.SelectionLog)

	tweetPayload, err := p.render(p.config.TextTemplate, nil, selections)
	if err != nil {
		return err
	}
	tweetText, err := p.runTextModel(ctx, tweetPayload)
	if err != nil {
		return err
	}
	if tweetText == "" {
		return fmt.Errorf("text model returned empty tweet content")
	}
	p.logger.Info("Tweet text generated", "chars", len(tweetText))

	imagePromptPayload, err := p.render(p.config.ImagePromptTemplate,
		prompting.Variables{"tweet": prompting.StringVar(tweetText)}, selections)
	if err != nil {
		return err
	}
	imagePrompt, err := p.runTextModel(ctx, imagePromptPayload)
	if err != nil {
		return err
	}
	if imagePrompt == "" {
		return fmt.Errorf("image prompt generation returned empty prompt")
	}
	p.logger.Info("Image prompt generated", "chars", len(imagePrompt))

	imagePayload, err := p.render(p.config.ImageTemplate,
		prompting.Variables{"imageprompt": prompting.StringVar(imagePrompt)}, selections)
	if err != nil {
		return err
	}
	imageOutput, err := p.client.Run(ctx, p.imageModel, payloadInput(imagePayload))
	if err != nil {
		return fmt.Errorf("image model invocation failed: %w", err)
	}
	imagePath, err := persistImageOutput(ctx, httpClient, imageOutput,
		p.config.OutputDir, p.config.ImagePrefix, ".jpg")
	if err != nil {
		return fmt.Errorf("no image content found in response: %w", err)
	}
	p.logger.Info("Image saved", "path", imagePath)

	now := time.Now()
	summaryPath, err := p.writeSummary(tweetText, imagePrompt, imagePath, selections, now)
	if err != nil {
		return err
	}

	if err = appendTweetIndex(p.config.OutputDir, tweetText,
		filepath.Base(summaryPath), filepath.Base(imagePath), now); err != nil {
		return err
	}

	runID, err := p.store.InsertRun(ctx, archive.Run{
		CreatedAt:   now,
		Tweet:       tweetText,
		ImagePrompt: imagePrompt,
		SummaryFile: filepath.Base(summaryPath),
		ImageFile:   filepath.Base(imagePath),
		Selections:  selections,
	})
	if err != nil {
		return fmt.Errorf("failed to archive run: %w", err)
	}

	p.logger.Info("Tweet saved", "summary", summaryPath, "image", imagePath, "run_id", runID)
	return nil
}

func (p *Pipeline) render(name string, vars prompting.Variables, selections prompting.SelectionLog) (prompting.Object, error) {
	opts := []prompting.RenderOption{prompting.WithSelectionLog(selections)}
	if vars != nil {
		opts = append(opts, prompting.WithVariables(vars))
	}
	if p.config.MadlibDir != "" {
		opts = append(opts, prompting.WithMadlibDir(p.config.MadlibDir))
	}
	if p.rng != nil {
		opts = append(opts, prompting.WithRand(p.rng))
	}
	return p.renderer.Render(filepath.Join(p.config.PromptsDir, name), opts...)
}

func (p *Pipeline) runTextModel(ctx context.Context, payload prompting.Object) (string, error) {
	output, err := p.client.Run(ctx, p.textModel, payloadInput(payload))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(coerceText(output)), nil
}

// payloadInput strips the type discriminator and converts the resolved
// document into the model input mapping.
func payloadInput(payload prompting.Object) map[string]any {
	input := make(map[string]any, len(payload))
	for key, value := range payload {
		if key == "type" {
			continue
		}
		input[key] = prompting.ToGo(value)
	}
	return input
}

func (p *Pipeline) writeSummary(tweet, imagePrompt, imagePath string, selections prompting.SelectionLog, now time.Time) (string, error) {
	summary := map[string]any{
		"tweet":        tweet,
		"image":        filepath.Base(imagePath),
		"image_prompt": imagePrompt,
		"madlib":       selections,
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run summary: %w", err)
	}

	summaryPath, err := nextOutputPath(p.config.OutputDir, p.config.JSONPrefix, ".json", now)
	if err != nil {
		return "", err
	}
	if err = atomic.WriteFile(summaryPath, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to write run summary: %w", err)
	}
	return summaryPath, nil
}
