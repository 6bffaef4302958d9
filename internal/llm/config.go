package llm

import (
	"net/http"
	"os"
	"time"
)

// Config describes an endpoint. The API key is read from the environment variable APIKeyEnv.
type Config struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	// TimeoutS bounds a whole request including body; per-call deadlines still apply.
	TimeoutS int `yaml:"timeout_seconds"`
}

// Enabled reports whether a key is available, which is all an endpoint needs to be tried.
func (c Config) Enabled() bool {
	return c.APIKeyEnv != "" && os.Getenv(c.APIKeyEnv) != ""
}

// NewClient builds a client from cfg.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := 60 * time.Second
	if cfg.TimeoutS > 0 {
		timeout = time.Duration(cfg.TimeoutS) * time.Second
	}
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	return &Client{
		BaseURL:    base,
		APIKey:     key,
		Model:      cfg.Model,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}
