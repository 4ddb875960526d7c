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
	"sort"
	"time"

	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
)

// Default fusion parameters. The per-method weights sum to 1.0; the
// diversity bonus rewards agreement across independent methods.
const (
	DefaultMinConfidence  = 0.3
	DefaultMaxResults     = 5
	DefaultDiversityBonus = 0.1
)

// DefaultMethodWeights returns the standard weighting of the five
// methods in the fused score.
func DefaultMethodWeights() map[Method]float64 {
	return map[Method]float64{
		MethodKeyword:  0.35,
		MethodPattern:  0.25,
		MethodSemantic: 0.20,
		MethodContext:  0.10,
		MethodLearned:  0.10,
	}
}

// methodOrder fixes the reporting order of MethodsUsed.
var methodOrder = []Method{MethodKeyword, MethodPattern, MethodSemantic, MethodContext, MethodLearned}

// CombinerConfig tunes the fusion step. Zero values select defaults.
type CombinerConfig struct {
	Weights        map[Method]float64
	MinConfidence  float64
	MaxResults     int
	DiversityBonus float64
}

// PriorityFn resolves a category to its taxonomy priority for
// tie-breaking. Unknown categories rank below every known priority.
type PriorityFn func(category string) datatypes.Priority

// Combiner fuses per-method candidates into a ranked classification:
//
//	score(cat) = min(1, Σ_m weight(m)*best(m,cat) + bonus*(methods(cat)-1))
//
// Categories under MinConfidence are dropped. Ties break by taxonomy
// priority, then lexically by category ID so results are stable.
//
// Thread Safety: safe for concurrent use after construction.
type Combiner struct {
	cfg      CombinerConfig
	priority PriorityFn
}

// NewCombiner builds a combiner; priority may be nil when no taxonomy
// tie-break information is available.
func NewCombiner(cfg CombinerConfig, priority PriorityFn) *Combiner {
	if cfg.Weights == nil {
		cfg.Weights = DefaultMethodWeights()
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.DiversityBonus == 0 {
		cfg.DiversityBonus = DefaultDiversityBonus
	}
	return &Combiner{cfg: cfg, priority: priority}
}

type fusedCategory struct {
	category string
	score    float64
	methods  map[Method]float64
	evidence []string
}

// Combine fuses candidates from all methods. Returns nil when no
// category clears MinConfidence; the caller decides the fallback.
func (c *Combiner) Combine(candidates []Candidate, at time.Time) *Classification {
	// Keep the best per (method, category) pair; a method votes once.
	best := make(map[Method]map[string]Candidate)
	for _, cand := range candidates {
		if _, ok := c.cfg.Weights[cand.Method]; !ok {
			continue
		}
		byCat := best[cand.Method]
		if byCat == nil {
			byCat = make(map[string]Candidate)
			best[cand.Method] = byCat
		}
		if cur, ok := byCat[cand.Category]; !ok || cand.Confidence > cur.Confidence {
			byCat[cand.Category] = cand
		}
	}

	// Accumulate in fixed method order so the float sums, and therefore
	// the final confidences, are identical across runs.
	fused := make(map[string]*fusedCategory)
	for _, method := range methodOrder {
		byCat, ok := best[method]
		if !ok {
			continue
		}
		weight := c.cfg.Weights[method]
		for cat, cand := range byCat {
			f := fused[cat]
			if f == nil {
				f = &fusedCategory{category: cat, methods: make(map[Method]float64)}
				fused[cat] = f
			}
			f.score += weight * cand.Confidence
			f.methods[method] = cand.Confidence
			f.evidence = append(f.evidence, cand.Evidence...)
		}
	}

	ranked := make([]*fusedCategory, 0, len(fused))
	for _, f := range fused {
		f.score += c.cfg.DiversityBonus * float64(len(f.methods)-1)
		f.score = clamp01(f.score)
		if f.score < c.cfg.MinConfidence {
			continue
		}
		ranked = append(ranked, f)
	}
	if len(ranked) == 0 {
		return nil
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		pi, pj := c.rank(ranked[i].category), c.rank(ranked[j].category)
		if pi != pj {
			return pi > pj
		}
		return ranked[i].category < ranked[j].category
	})
	if len(ranked) > c.cfg.MaxResults {
		ranked = ranked[:c.cfg.MaxResults]
	}

	for _, f := range ranked {
		sort.Strings(f.evidence)
	}

	primary := ranked[0]
	cls := &Classification{
		PrimaryCategory: primary.category,
		Confidence:      primary.score,
		MethodsUsed:     orderedMethods(primary.methods),
		Timestamp:       at.UTC(),
		Evidence:        primary.evidence,
	}
	for _, alt := range ranked[1:] {
		cls.Alternatives = append(cls.Alternatives, Candidate{
			Category:   alt.category,
			Confidence: alt.score,
			Method:     dominantMethod(alt.methods, c.cfg.Weights),
			Evidence:   alt.evidence,
		})
	}
	return cls
}

func (c *Combiner) rank(category string) int {
	if c.priority == nil {
		return -1
	}
	return c.priority(category).Rank()
}

func orderedMethods(contrib map[Method]float64) []Method {
	out := make([]Method, 0, len(contrib))
	for _, m := range methodOrder {
		if _, ok := contrib[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

func dominantMethod(contrib map[Method]float64, weights map[Method]float64) Method {
	var dom Method
	bestShare := -1.0
	for _, m := range methodOrder {
		conf, ok := contrib[m]
		if !ok {
			continue
		}
		if share := weights[m] * conf; share > bestShare {
			bestShare = share
			dom = m
		}
	}
	return dom
}
