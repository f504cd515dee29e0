package model

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/example/bg-removal/internal/config"
)

// ensureArtifact returns the local path of the ONNX model artifact,
// downloading it from the configured URL on first use. The cached file is
// treated as opaque; its layout belongs to the model publisher.
func ensureArtifact(ctx context.Context, cfg config.ModelConfig, logger *zap.Logger) (string, error) {
	path := filepath.Join(cfg.Dir, artifactFileName(cfg.Name))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}

	logger.Info("downloading model artifact",
		zap.String("model", cfg.Name),
		zap.String("url", cfg.ArtifactURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.ArtifactURL, nil)
	if err != nil {
		return "", fmt.Errorf("build artifact request: %w", err)
	}
	if cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.AuthToken)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download model artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download model artifact: unexpected status %s", resp.Status)
	}

	// Write to a temp file first so a partial download never masquerades
	// as a cached artifact.
	tmp, err := os.CreateTemp(cfg.Dir, "artifact-*.onnx.partial")
	if err != nil {
		return "", fmt.Errorf("create temp artifact file: %w", err)
	}
	written, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write model artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize model artifact: %w", err)
	}

	logger.Info("model artifact cached",
		zap.String("path", path),
		zap.Int64("bytes", written))
	return path, nil
}

func artifactFileName(modelName string) string {
	name := strings.ReplaceAll(modelName, "/", "_")
	if name == "" {
		name = "model"
	}
	return name + ".onnx"
}
