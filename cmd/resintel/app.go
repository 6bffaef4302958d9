package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cognicore/resintel/internal/llm"
	"github.com/cognicore/resintel/pkg/resintel"
	"github.com/cognicore/resintel/pkg/resintel/config"
	"github.com/cognicore/resintel/pkg/resintel/embed"
	"github.com/cognicore/resintel/pkg/resintel/grouping"
	"github.com/cognicore/resintel/pkg/resintel/internalerr"
	"github.com/cognicore/resintel/pkg/resintel/labeler"
	"github.com/cognicore/resintel/pkg/resintel/logger"
	"github.com/cognicore/resintel/pkg/resintel/match"
	"github.com/cognicore/resintel/pkg/resintel/metrics"
	"github.com/cognicore/resintel/pkg/resintel/store"
	"github.com/cognicore/resintel/pkg/resintel/store/memstore"
	"github.com/cognicore/resintel/pkg/resintel/store/postgres"
	"github.com/cognicore/resintel/pkg/resintel/store/sqlite"
	"github.com/cognicore/resintel/pkg/resintel/topicmodel"
	"github.com/cognicore/resintel/pkg/resintel/tracer"
)

// app is everything a command needs, built once from the config files.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	engine   *resintel.Engine
	embedder embed.Embedder
	cleanup  []func()
}

func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

// buildApp wires the engine. When requireArtifacts is false a missing artifact
// source is logged and discovery stays unavailable.
func buildApp(ctx context.Context, opts *rootOptions, requireArtifacts bool) (*app, error) {
	loader := config.Loader{
		ConfigPath:   opts.configPath,
		EnvFiles:     opts.envFiles,
		StoplistPath: opts.stoplistPath,
		TaxonomyPath: opts.taxonomyPath,
	}
	comp, err := loader.Load()
	if err != nil {
		return nil, err
	}
	cfg := comp.Config

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}
	a.cleanup = append(a.cleanup, func() { _ = log.Sync() })

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
		serveCtx, cancel := context.WithCancel(context.Background())
		go func() {
			if err := m.Serve(serveCtx); err != nil {
				log.Error("metrics endpoint stopped", err)
			}
		}()
		a.cleanup = append(a.cleanup, cancel)
	}

	tp, err := tracer.Setup(ctx, cfg.Tracing)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.cleanup = append(a.cleanup, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	})

	a.embedder, err = embed.New(cfg.Embedder)
	if err != nil {
		a.Close()
		return nil, err
	}

	artifacts, err := loadArtifacts(ctx, cfg)
	if err != nil {
		if requireArtifacts {
			a.Close()
			return nil, err
		}
		log.Debug("topic model artifacts unavailable", err)
	}

	// A nil *llm.Client must not end up inside the Completer interfaces.
	var labelCompleter labeler.Completer
	var groupCompleter grouping.Completer
	if cfg.LLM.Enabled() {
		client := llm.NewClient(cfg.LLM)
		labelCompleter, groupCompleter = client, client
	} else {
		log.Info("no LLM key configured, topics keep placeholder labels and grouping uses the fallback", nil,
			map[string]interface{}{"api_key_env": cfg.LLM.APIKeyEnv})
	}

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine, err = resintel.New(resintel.Options{
		Embedder:  a.embedder,
		Artifacts: artifacts,
		Tokenizer: comp.Tokenizer,
		Search:    cfg.Search,
		Labeler:   labeler.New(cfg.Labeler, labelCompleter, log, m),
		Matcher:   match.New(cfg.Match, comp.Taxonomy, log, m),
		Grouper:   grouping.New(cfg.Grouping, groupCompleter, log, m),
		Store:     st,
		Logger:    log,
		Metrics:   m,
	})
	if err != nil {
		_ = st.Close()
		a.Close()
		return nil, err
	}
	a.cleanup = append(a.cleanup, func() { _ = a.engine.Close() })
	return a, nil
}

func loadArtifacts(ctx context.Context, cfg *config.Config) (*topicmodel.Artifacts, error) {
	src, err := cfg.ArtifactSource()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrModelUnavailable, err)
	}
	return topicmodel.LoadArtifacts(ctx, src, cfg.ArtifactName())
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return memstore.New(), nil
	case "sqlite":
		return sqlite.OpenSQLite(ctx, cfg.Path)
	case "postgres":
		st, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", internalerr.ErrInvalidConfig, cfg.Driver)
	}
}
