// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianTriage/pkg/logging"
	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
)

// defaultMethodTimeout bounds a single scorer; a slow method is dropped
// from the run rather than stalling classification.
const defaultMethodTimeout = 2 * time.Second

// EngineConfig assembles a classification engine.
type EngineConfig struct {
	Combiner      CombinerConfig
	MethodTimeout time.Duration
}

// Engine fans incident text out to every registered scorer, absorbs
// per-method failures, and fuses the survivors.
//
// Thread Safety: safe for concurrent use after construction.
type Engine struct {
	scorers  []Scorer
	combiner *Combiner
	timeout  time.Duration
	log      *logging.Logger
	tracer   trace.Tracer
}

// NewEngine wires the given scorers to a combiner. priority resolves
// categories to taxonomy priorities for tie-breaking and may be nil.
func NewEngine(cfg EngineConfig, scorers []Scorer, priority PriorityFn, log *logging.Logger) *Engine {
	timeout := cfg.MethodTimeout
	if timeout <= 0 {
		timeout = defaultMethodTimeout
	}
	return &Engine{
		scorers:  scorers,
		combiner: NewCombiner(cfg.Combiner, priority),
		timeout:  timeout,
		log:      log,
		tracer:   otel.Tracer("triage/classify"),
	}
}

// DefaultScorers builds the five standard methods with their built-in
// configurations. predictor may be nil to run without a learned model.
func DefaultScorers(predictor Predictor, log *logging.Logger) ([]Scorer, error) {
	pattern, err := NewPatternScorer(nil)
	if err != nil {
		return nil, err
	}
	scorers := []Scorer{
		NewKeywordScorer(nil),
		pattern,
		NewSemanticScorer(nil),
		NewContextScorer(nil),
	}
	if predictor != nil {
		scorers = append(scorers, NewLearnedScorer(predictor, log))
	}
	return scorers, nil
}

// Classify runs every method against the incident and fuses the
// results. A method that errors, panics, or times out contributes
// nothing; Classify itself fails only on empty input text.
func (e *Engine) Classify(ctx context.Context, inc *datatypes.Incident) (*Classification, error) {
	text := inc.Text()
	if text == "" {
		return nil, fmt.Errorf("incident %s: no text to classify", inc.ID)
	}

	ctx, span := e.tracer.Start(ctx, "classify.incident",
		trace.WithAttributes(
			attribute.String("incident.id", inc.ID),
			attribute.String("incident.source", inc.Source),
		))
	defer span.End()

	ictx := IncidentContext{
		Source:    inc.Source,
		Timestamp: inc.Timestamp,
		Priority:  inc.Priority,
	}

	var mu sync.Mutex
	var all []Candidate

	g, gctx := errgroup.WithContext(ctx)
	for _, scorer := range e.scorers {
		g.Go(func() error {
			cands := e.runScorer(gctx, scorer, text, ictx)
			if len(cands) == 0 {
				return nil
			}
			mu.Lock()
			all = append(all, cands...)
			mu.Unlock()
			return nil
		})
	}
	// runScorer never returns an error; the group is used for fan-out
	// and context plumbing only.
	_ = g.Wait()

	cls := e.combiner.Combine(all, time.Now())
	if cls == nil {
		span.SetAttributes(attribute.Bool("classify.no_result", true))
		return nil, nil
	}
	span.SetAttributes(
		attribute.String("classify.primary", cls.PrimaryCategory),
		attribute.Float64("classify.confidence", cls.Confidence),
		attribute.Int("classify.methods", len(cls.MethodsUsed)),
	)
	return cls, nil
}

// runScorer isolates one method: timeout, error, or panic degrades to
// an empty contribution.
func (e *Engine) runScorer(ctx context.Context, scorer Scorer, text string, ictx IncidentContext) (out []Candidate) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("classification method panicked", "method", string(scorer.Method()), "panic", fmt.Sprint(r))
			out = nil
		}
	}()

	cands, err := scorer.Score(ctx, text, ictx)
	if err != nil {
		e.log.Warn("classification method failed", "method", string(scorer.Method()), "error", err)
		return nil
	}
	for _, c := range cands {
		c.Confidence = clamp01(c.Confidence)
		c.Method = scorer.Method()
		out = append(out, c)
	}
	return out
}
