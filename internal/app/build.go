package app

import (
	"context"
	"fmt"
	"os"

	"github.com/mberti/formflow/internal/catalog"
	"github.com/mberti/formflow/internal/config"
	"github.com/mberti/formflow/internal/engine"
	"github.com/mberti/formflow/internal/httpapi"
	"github.com/mberti/formflow/internal/normalize"
	"github.com/mberti/formflow/internal/observability"
	"github.com/mberti/formflow/internal/session"
	"github.com/mberti/formflow/internal/sink"
)

// BuildResult wires every component of the service together.
type BuildResult struct {
	Config  config.Config
	API     *httpapi.Server
	Engine  *engine.Engine
	Metrics *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	if err := os.MkdirAll(cfg.TemplateDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure template dir: %w", err)
	}
	cat, err := catalog.NewDirCatalog(cfg.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("template catalog init failed: %w", err)
	}

	submissions, err := sink.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("submission store init failed: %w", err)
	}

	renderer := sink.NewRenderer(cat, cfg.OutputDir)
	sessions := session.NewStore()
	eng := engine.New(sessions, cat, renderer, submissions, normalize.New(nil))
	eng.SetExpireHook(func(string) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(eng.ActiveSessions()))
	})

	api := httpapi.New(cfg, eng, cat, submissions, metrics)

	return &BuildResult{
		Config:  cfg,
		API:     api,
		Engine:  eng,
		Metrics: metrics,
		Cleanup: submissions.Close,
	}, nil
}
