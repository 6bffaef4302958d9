package config

import (
	"fmt"

	"github.com/cognicore/resintel/pkg/resintel/ingest"
	"github.com/cognicore/resintel/pkg/resintel/match"
)

// Loader loads all configuration files and constructs components
type Loader struct {
	ConfigPath   string
	EnvFiles     []string
	StoplistPath string
	TaxonomyPath string
}

// Components holds all loaded configuration components
type Components struct {
	Config    *Config
	Tokenizer *ingest.Tokenizer
	Taxonomy  []match.Entry
}

// Load reads all configuration files and returns initialized components.
// Paths set on the Loader override those in the config file.
func (l *Loader) Load() (*Components, error) {
	cfg, err := Load(l.ConfigPath, l.EnvFiles...)
	if err != nil {
		return nil, err
	}
	comp := &Components{Config: cfg}

	stoplistPath := firstNonEmpty(l.StoplistPath, cfg.StoplistPath)
	if stoplistPath != "" {
		stoplist, err := LoadStoplist(stoplistPath)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		comp.Tokenizer = ingest.NewTokenizer(stoplist.Terms)
	} else {
		comp.Tokenizer = ingest.NewTokenizer(nil)
	}

	taxonomyPath := firstNonEmpty(l.TaxonomyPath, cfg.TaxonomyPath)
	if taxonomyPath != "" {
		comp.Taxonomy, err = LoadTaxonomy(taxonomyPath)
		if err != nil {
			return nil, fmt.Errorf("load taxonomy: %w", err)
		}
	}

	return comp, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
