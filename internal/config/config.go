package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// MaxUploadSize caps image uploads at 10 MiB.
	MaxUploadSize int64 = 10 << 20
	// DownloadTimeout bounds fetches of remote image URLs.
	DownloadTimeout = 30 * time.Second
)

// Config holds the process configuration, populated from environment
// variables with sensible defaults.
type Config struct {
	Server ServerConfig
	Model  ModelConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string
	Port int
	// Workers mirrors the conventional WORKERS variable of ASGI-style
	// runners. Go's http.Server already serves concurrently, so the value
	// is logged for parity but does not change serving behavior.
	Workers int
	// Reload enables debug mode (verbose router + development logging).
	Reload bool
}

// ModelConfig describes the segmentation model artifact and its I/O names.
type ModelConfig struct {
	Name        string
	ArtifactURL string
	Dir         string
	SharedLib   string
	InputName   string
	OutputNames []string
	AuthToken   string
}

// Load reads configuration from the environment. Missing variables fall
// back to defaults; Load never fails.
func Load() *Config {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return &Config{
		Server: ServerConfig{
			Host:    v.GetString("HOST"),
			Port:    v.GetInt("PORT"),
			Workers: v.GetInt("WORKERS"),
			Reload:  v.GetBool("RELOAD"),
		},
		Model: ModelConfig{
			Name:        v.GetString("MODEL_NAME"),
			ArtifactURL: v.GetString("MODEL_URL"),
			Dir:         v.GetString("MODEL_DIR"),
			SharedLib:   v.GetString("ONNX_SHARED_LIB"),
			InputName:   v.GetString("MODEL_INPUT_NAME"),
			OutputNames: splitList(v.GetString("MODEL_OUTPUT_NAMES")),
			AuthToken:   firstNonEmpty(v.GetString("HUGGINGFACE_TOKEN"), v.GetString("HF_TOKEN")),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8000)
	v.SetDefault("WORKERS", 1)
	v.SetDefault("RELOAD", false)

	v.SetDefault("MODEL_NAME", "briaai/RMBG-2.0")
	v.SetDefault("MODEL_URL", "https://huggingface.co/briaai/RMBG-2.0/resolve/main/onnx/model.onnx")
	v.SetDefault("MODEL_DIR", "./models")
	v.SetDefault("ONNX_SHARED_LIB", "")
	v.SetDefault("MODEL_INPUT_NAME", "input_image")
	v.SetDefault("MODEL_OUTPUT_NAMES", "output_image")
	v.SetDefault("HUGGINGFACE_TOKEN", "")
	v.SetDefault("HF_TOKEN", "")
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
