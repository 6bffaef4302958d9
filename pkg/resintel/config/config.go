// Package config reads the resintel configuration, the field taxonomy and the stoplist.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/resintel/internal/llm"
	"github.com/cognicore/resintel/pkg/resintel/embed"
	"github.com/cognicore/resintel/pkg/resintel/grouping"
	"github.com/cognicore/resintel/pkg/resintel/internalerr"
	"github.com/cognicore/resintel/pkg/resintel/labeler"
	"github.com/cognicore/resintel/pkg/resintel/logger"
	"github.com/cognicore/resintel/pkg/resintel/match"
	"github.com/cognicore/resintel/pkg/resintel/metrics"
	"github.com/cognicore/resintel/pkg/resintel/search"
	"github.com/cognicore/resintel/pkg/resintel/store/postgres"
	"github.com/cognicore/resintel/pkg/resintel/topicmodel"
	"github.com/cognicore/resintel/pkg/resintel/tracer"
)

// Config is the whole resintel configuration file.
type Config struct {
	Service string         `yaml:"service"`
	Log     logger.Config  `yaml:"log"`
	Metrics metrics.Config `yaml:"metrics"`
	Tracing tracer.Config  `yaml:"tracing"`

	Embedder  embed.Config    `yaml:"embedder"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Search    search.Config   `yaml:"search"`
	Match     match.Config    `yaml:"match"`

	LLM      llm.Config      `yaml:"llm"`
	Labeler  labeler.Config  `yaml:"labeler"`
	Grouping grouping.Config `yaml:"grouping"`

	Store StoreConfig `yaml:"store"`

	TaxonomyPath string `yaml:"taxonomy"`
	StoplistPath string `yaml:"stoplist"`
}

// ArtifactsConfig locates the fitted topic model stages, on disk or in a bucket.
type ArtifactsConfig struct {
	Dir   string                  `yaml:"dir"`
	Name  string                  `yaml:"name"`
	Minio *topicmodel.MinioConfig `yaml:"minio"`
}

// StoreConfig selects the run history backend: "memory", "sqlite" or "postgres".
type StoreConfig struct {
	Driver   string          `yaml:"driver"`
	Path     string          `yaml:"path"`
	Postgres postgres.Config `yaml:"postgres"`
}

// Default returns a configuration that runs fully offline.
func Default() *Config {
	return &Config{
		Service: "resintel",
		Log:     logger.Config{Level: logger.Info, Service: "resintel"},
		Metrics: metrics.Config{Address: metrics.DefaultAddress, Namespace: "resintel", ServiceName: "resintel"},
		Tracing: tracer.Config{ServiceName: "resintel"},
		Embedder: embed.Config{
			Provider:  "hashing",
			Dimension: 256,
		},
		Artifacts: ArtifactsConfig{Dir: "artifacts", Name: topicmodel.DefaultArtifactName},
		Search:    search.Config{Workers: 1},
		Match:     match.Config{Threshold: match.Threshold(match.DefaultThreshold), Workers: 4},
		LLM: llm.Config{
			BaseURL:   llm.DefaultBaseURL,
			APIKeyEnv: "GROQ_API_KEY",
		},
		Labeler:  labeler.DefaultConfig(),
		Grouping: grouping.Config{Model: grouping.DefaultModel, Temperature: llm.Temperature(grouping.DefaultTemperature)},
		Store:    StoreConfig{Driver: "memory"},
	}
}

// Load reads path over the defaults. Variables from envFiles (or ./.env when
// none are given and it exists) are loaded first; existing variables win.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, eris.Wrapf(err, "parse config %s", path)
		}
	}
	cfg.resolveSecrets()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return eris.Wrap(err, "load env files")
	}
	return nil
}

func (c *Config) resolveSecrets() {
	if c.Embedder.APIKey == "" && c.Embedder.APIKeyEnv != "" {
		c.Embedder.APIKey = os.Getenv(c.Embedder.APIKeyEnv)
	}
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "", "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("%w: sqlite store needs a path", internalerr.ErrInvalidConfig)
		}
	case "postgres":
		if c.Store.Postgres.DSN == "" && c.Store.Postgres.DSNEnv == "" {
			return fmt.Errorf("%w: postgres store needs a dsn or dsn_env", internalerr.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", internalerr.ErrInvalidConfig, c.Store.Driver)
	}
	if c.Search.Workers < 0 || c.Match.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", internalerr.ErrInvalidConfig)
	}
	if th := c.Match.Threshold; th != nil && (*th < 0 || *th > 100) {
		return fmt.Errorf("%w: match threshold %v outside 0..100", internalerr.ErrInvalidConfig, *th)
	}
	if c.Artifacts.Minio == nil && c.Artifacts.Dir == "" {
		return fmt.Errorf("%w: artifacts need a dir or a minio bucket", internalerr.ErrInvalidConfig)
	}
	return nil
}

// ArtifactSource returns where artifacts are read from.
func (c *Config) ArtifactSource() (topicmodel.Source, error) {
	if c.Artifacts.Minio != nil {
		return topicmodel.NewMinioSource(*c.Artifacts.Minio)
	}
	return topicmodel.FileSource{Dir: c.Artifacts.Dir}, nil
}

// ArtifactName is the artifact object name, defaulted.
func (c *Config) ArtifactName() string {
	if c.Artifacts.Name == "" {
		return topicmodel.DefaultArtifactName
	}
	return c.Artifacts.Name
}
