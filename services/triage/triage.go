// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package triage assembles the incident triage service from its parts:
// embedded catalogs, classification engine, tagging, routing, the
// persistence layer, and the HTTP surface.
package triage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianTriage/pkg/logging"
	"github.com/AleutianAI/AleutianTriage/services/triage/classify"
	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
	"github.com/AleutianAI/AleutianTriage/services/triage/directory"
	dircatalog "github.com/AleutianAI/AleutianTriage/services/triage/directory/catalog"
	"github.com/AleutianAI/AleutianTriage/services/triage/events"
	"github.com/AleutianAI/AleutianTriage/services/triage/observability"
	"github.com/AleutianAI/AleutianTriage/services/triage/pipeline"
	"github.com/AleutianAI/AleutianTriage/services/triage/routes"
	"github.com/AleutianAI/AleutianTriage/services/triage/routing"
	routecatalog "github.com/AleutianAI/AleutianTriage/services/triage/routing/catalog"
	"github.com/AleutianAI/AleutianTriage/services/triage/storage/badgerstore"
	"github.com/AleutianAI/AleutianTriage/services/triage/tagging"
	"github.com/AleutianAI/AleutianTriage/services/triage/taxonomy"
	taxcatalog "github.com/AleutianAI/AleutianTriage/services/triage/taxonomy/catalog"
)

// Config assembles a Service. Zero values select embedded catalogs, an
// in-memory store, and no learned model.
type Config struct {
	// Addr is the listen address, e.g. ":12310".
	Addr string

	// DataDir is the BadgerDB directory. Empty selects in-memory
	// storage (state is lost on restart).
	DataDir string

	// ModelPath points at the learned-model artifact; empty disables
	// the learned method. The file is hot-reloaded on change.
	ModelPath string

	// TaxonomyCatalog and TeamCatalog override the embedded YAML
	// catalogs when non-nil.
	TaxonomyCatalog []byte
	TeamCatalog     []byte
	RoutingRules    []byte

	// IngestRatePerSecond caps incident creation; 0 disables limiting.
	IngestRatePerSecond float64

	// BusinessHoursLocation names the calendar's time zone; empty is
	// UTC.
	BusinessHoursLocation string

	Log *logging.Logger
}

// Service is a fully wired triage daemon.
type Service struct {
	cfg      Config
	log      *logging.Logger
	pipeline *pipeline.Pipeline
	registry *taxonomy.Registry
	dir      *directory.Directory
	engine   *classify.Engine
	store    *badgerstore.Store
	hub      *events.Hub
	model    *classify.ModelStore
	watcher  *classify.ModelWatcher
	server   *http.Server
}

// New builds the service. Call Run to serve and Shutdown to stop.
func New(cfg Config) (*Service, error) {
	log := cfg.Log
	if log == nil {
		log = logging.Default()
	}

	storeCfg := badgerstore.InMemoryConfig()
	if cfg.DataDir != "" {
		storeCfg = badgerstore.DefaultConfig(cfg.DataDir)
		storeCfg.Logger = log.Slog()
	}
	store, err := badgerstore.Open(storeCfg)
	if err != nil {
		return nil, err
	}
	assembled := false
	defer func() {
		if !assembled {
			_ = store.Close()
		}
	}()

	taxRaw := cfg.TaxonomyCatalog
	if taxRaw == nil {
		if snap, serr := store.LoadCatalog("taxonomy"); serr == nil {
			log.Info("loaded taxonomy catalog snapshot from the store")
			taxRaw = snap
		} else {
			taxRaw = taxcatalog.TaxonomyCatalog
		}
	}
	taxCat, err := taxonomy.ParseCatalog(taxRaw)
	if err != nil {
		return nil, err
	}
	registry, err := taxonomy.NewRegistry(taxCat, log.Slog())
	if err != nil {
		return nil, err
	}

	teamRaw := cfg.TeamCatalog
	if teamRaw == nil {
		teamRaw = dircatalog.TeamCatalog
	}
	dirCat, err := directory.ParseCatalog(teamRaw)
	if err != nil {
		return nil, err
	}
	dir, err := directory.NewDirectory(dirCat, log.Slog())
	if err != nil {
		return nil, err
	}

	rulesRaw := cfg.RoutingRules
	if rulesRaw == nil {
		rulesRaw = routecatalog.RoutingRules
	}
	rules, err := routing.ParseRules(rulesRaw)
	if err != nil {
		return nil, err
	}

	var loc *time.Location
	if cfg.BusinessHoursLocation != "" {
		loc, err = time.LoadLocation(cfg.BusinessHoursLocation)
		if err != nil {
			return nil, fmt.Errorf("business hours location: %w", err)
		}
	}
	calendar := tagging.NewCalendar(loc)

	var model *classify.ModelStore
	var watcher *classify.ModelWatcher
	var predictor classify.Predictor
	if cfg.ModelPath != "" {
		model = classify.NewModelStore()
		watcher, err = classify.NewModelWatcher(cfg.ModelPath, model, log)
		if err != nil {
			return nil, err
		}
		predictor = model
	}

	scorers, err := classify.DefaultScorers(predictor, log)
	if err != nil {
		return nil, err
	}
	priority := func(category string) datatypes.Priority {
		node, err := registry.Get(category)
		if err != nil {
			return datatypes.Priority("")
		}
		return node.Priority
	}
	engine := classify.NewEngine(classify.EngineConfig{}, scorers, priority, log)

	ancestors := func(category string) []string {
		path, err := registry.AncestorPath(category)
		if err != nil {
			return nil
		}
		var ids []string
		for _, node := range path {
			if node.ID != category {
				ids = append(ids, node.ID)
			}
		}
		return ids
	}
	deriver := tagging.NewDeriver(tagging.Config{}, calendar, ancestors)
	router := routing.NewRouter(rules, registry, dir, calendar, log)

	hub := events.NewHub(log)
	dispatcher := events.Multi{events.NewLogSink(log), hub}
	metrics := observability.NewTriageMetrics()

	p := pipeline.New(pipeline.Deps{
		Engine:    engine,
		Deriver:   deriver,
		Router:    router,
		Registry:  registry,
		Directory: dir,
		Store:     store,
		Events:    dispatcher,
		Metrics:   metrics,
		Log:       log,
	})

	assembled = true
	return &Service{
		cfg:      cfg,
		log:      log,
		pipeline: p,
		registry: registry,
		dir:      dir,
		engine:   engine,
		store:    store,
		hub:      hub,
		model:    model,
		watcher:  watcher,
	}, nil
}

// Pipeline exposes the orchestrator, used by the CLI's in-process mode.
func (s *Service) Pipeline() *pipeline.Pipeline { return s.pipeline }

// Engine exposes the classification engine.
func (s *Service) Engine() *classify.Engine { return s.engine }

// Registry exposes the live taxonomy.
func (s *Service) Registry() *taxonomy.Registry { return s.registry }

// persistTaxonomy snapshots the live catalog so API edits survive a
// restart. Failures are logged; the in-memory catalog stays current.
func (s *Service) persistTaxonomy() {
	raw, err := taxonomy.MarshalCatalog(s.registry.All())
	if err != nil {
		s.log.Error("failed to marshal the taxonomy snapshot", "error", err)
		return
	}
	if err := s.store.SaveCatalog("taxonomy", raw); err != nil {
		s.log.Error("failed to persist the taxonomy snapshot", "error", err)
	}
}

// Run restores persisted state and serves HTTP until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	restored, err := s.pipeline.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	if s.watcher != nil {
		s.watcher.Start(ctx)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("triage-service"))

	var limiter *rate.Limiter
	if s.cfg.IngestRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.IngestRatePerSecond),
			int(s.cfg.IngestRatePerSecond)+1)
	}
	deps := routes.Deps{
		Pipeline:        s.pipeline,
		Engine:          s.engine,
		Registry:        s.registry,
		Directory:       s.dir,
		Hub:             s.hub,
		IngestRate:      limiter,
		PersistTaxonomy: s.persistTaxonomy,
	}
	if s.model != nil {
		deps.Predictor = s.model
	}
	routes.SetupRoutes(router, deps)

	addr := s.cfg.Addr
	if addr == "" {
		addr = ":12310"
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("triage service listening",
		"addr", addr, "restored_incidents", restored, "persistent", s.cfg.DataDir != "")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops the HTTP server, timers, watchers, and the store.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error
	if s.server != nil {
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(sctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.pipeline.Shutdown()
	s.hub.Close()
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	s.log.Info("triage service stopped")
	return errors.Join(errs...)
}
