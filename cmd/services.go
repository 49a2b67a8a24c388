package main

import (
	"go.uber.org/zap"

	"github.com/geonorge/dokanalyse/internal/adapter"
	"github.com/geonorge/dokanalyse/internal/analysis"
	"github.com/geonorge/dokanalyse/internal/cache"
	"github.com/geonorge/dokanalyse/internal/config"
	"github.com/geonorge/dokanalyse/internal/orchestrator"
	"github.com/geonorge/dokanalyse/internal/quality"
	"github.com/geonorge/dokanalyse/internal/registry"
)

// services wires the full analysis stack from configuration.
type services struct {
	datasets     []*config.DatasetConfig
	orchestrator *orchestrator.Orchestrator
}

func initServices(c *config.Config, notifier orchestrator.Notifier) (*services, error) {
	datasets, err := config.LoadDatasets(c.Datasets.Dir)
	if err != nil {
		return nil, err
	}
	zap.L().Info("datasets loaded",
		zap.Int("count", len(datasets)),
		zap.String("dir", c.Datasets.Dir))

	client := adapter.NewClient(c.HTTP.Timeout())
	reg := registry.NewService(c.Registry, client, cache.New(c.Cache.Dir), c.Cache.TTLDays, c.Datasets.LocalGeolettDir)
	qual := quality.NewService(reg, adapter.NewWFS(client))
	runner := analysis.NewRunner(reg, qual, client)

	return &services{
		datasets:     datasets,
		orchestrator: orchestrator.New(datasets, reg, runner, notifier, c.Analysis.MaxConcurrent),
	}, nil
}
