package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
)

// maxOutputHistory bounds the filename sequence counter per timestamp.
const maxOutputHistory = 1_000_000

// coerceText flattens a model output value into plain text. Replicate
// text models stream their output as a list of string chunks; some
// return a bare string or wrap the text in an "output" field.
func coerceText(output any) string {
	switch t := output.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		var b strings.Builder
		for _, item := range t {
			switch part := item.(type) {
			case string:
				b.WriteString(part)
			case []byte:
				b.Write(part)
			}
		}
		return b.String()
	case map[string]any:
		switch inner := t["output"].(type) {
		case string:
			return inner
		case []any:
			var b strings.Builder
			for _, item := range inner {
				fmt.Fprint(&b, item)
			}
			return b.String()
		}
	}
	return fmt.Sprint(output)
}

// persistImageOutput walks a model output value looking for something it
// can save as an image file: lists and maps are searched recursively,
// URL strings are downloaded. The saved file's path is returned.
func persistImageOutput(ctx context.Context, client *http.Client, output any, outputDir, prefix, defaultSuffix string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	switch t := output.(type) {
	case []any:
		for idx, item := range t {
			saved, err := persistImageOutput(ctx, client, item, outputDir,
				fmt.Sprintf("%s_%d", prefix, idx+1), defaultSuffix)
			if err == nil {
				return saved, nil
			}
		}
		return "", fmt.Errorf("unable to persist image output from list response")
	case map[string]any:
		for _, value := range t {
			saved, err := persistImageOutput(ctx, client, value, outputDir, prefix, defaultSuffix)
			if err == nil {
				return saved, nil
			}
		}
		return "", fmt.Errorf("unable to persist image output from map response")
	case string:
		if looksLikeURL(t) {
			return downloadImage(ctx, client, t, outputDir, prefix, defaultSuffix)
		}
		return "", fmt.Errorf("image model returned a string that is not a URL; cannot persist")
	}
	return "", fmt.Errorf("unsupported image output type %T", output)
}

func looksLikeURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func downloadImage(ctx context.Context, client *http.Client, imageURL, outputDir, prefix, defaultSuffix string) (string, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("invalid image url %q: %w", imageURL, err)
	}
	suffix := path.Ext(parsed.Path)
	if suffix == "" {
		suffix = defaultSuffix
	}

	outPath, err := nextOutputPath(outputDir, prefix, suffix, time.Now())
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build image download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("image download returned %s", resp.Status)
	}

	if err = atomic.WriteFile(outPath, resp.Body); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return outPath, nil
}

// nextOutputPath returns the first unused sequenced filename of the form
// prefix_YYYYMMDDTHHMMSS_NNNN.suffix inside dir.
func nextOutputPath(dir, prefix, suffix string, now time.Time) (string, error) {
	timestamp := now.UTC().Format("20060102T150405")
	for counter := 0; counter < maxOutputHistory; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%s_%04d%s", prefix, timestamp, counter, suffix))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("unable to determine unique filename after %d attempts", maxOutputHistory)
}

// appendTweetIndex appends a human-readable record of a generated tweet
// to the tweets.txt index in the output directory.
func appendTweetIndex(outputDir, tweet, summaryName, imageName string, now time.Time) error {
	indexPath := filepath.Join(outputDir, "tweets.txt")
	entry := fmt.Sprintf("[%s]\n%s\nJSON: %s\nImage: %s\n",
		now.UTC().Format("2006-01-02T15:04:05"),
		strings.TrimSpace(tweet), summaryName, imageName)

	f, err := os.OpenFile(indexPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open tweet index: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	if _, err = f.WriteString(entry); err != nil {
		return fmt.Errorf("failed to append tweet index: %w", err)
	}
	return nil
}
