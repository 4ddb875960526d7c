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
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianTriage/pkg/logging"
)

// modelArtifact is the on-disk learned-model format. The artifact is
// produced outside this process; only the shape is contracted here.
type modelArtifact struct {
	Version   string                       `json:"version"`
	Algorithm string                       `json:"algorithm"`
	Classes   map[string]modelClassWeights `json:"classes"`
}

type modelClassWeights struct {
	Prior float64            `json:"prior"`
	Terms map[string]float64 `json:"terms"`
}

// ModelStore holds the current learned-model artifact and serves
// predictions from it. Load swaps the artifact atomically so in-flight
// Predict calls always see a consistent model.
//
// Thread Safety: safe for concurrent use.
type ModelStore struct {
	mu    sync.RWMutex
	model *modelArtifact
}

var _ Predictor = (*ModelStore)(nil)

// NewModelStore returns an empty store. Until Load succeeds, Predict
// returns no predictions and Version returns "".
func NewModelStore() *ModelStore { return &ModelStore{} }

// Load reads and installs the artifact at path. On error the previous
// model stays active. Returns the installed version.
func (m *ModelStore) Load(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read model artifact: %w", err)
	}
	var art modelArtifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return "", fmt.Errorf("parse model artifact %s: %w", path, err)
	}
	if art.Version == "" {
		return "", fmt.Errorf("model artifact %s: missing version", path)
	}
	m.mu.Lock()
	m.model = &art
	m.mu.Unlock()
	return art.Version, nil
}

// Predict scores text against every class in the current artifact. The
// linear score over matched term weights is squashed to (0,1) with
// s/(s+1), so confidence grows with evidence but never saturates.
func (m *ModelStore) Predict(_ context.Context, text string) ([]Prediction, error) {
	m.mu.RLock()
	model := m.model
	m.mu.RUnlock()
	if model == nil {
		return nil, nil
	}

	present := make(map[string]bool)
	for _, t := range tokenize(text) {
		present[t] = true
	}

	var out []Prediction
	for class, w := range model.Classes {
		s := w.Prior
		for term, weight := range w.Terms {
			if present[term] {
				s += weight
			}
		}
		if s <= 0 {
			continue
		}
		out = append(out, Prediction{Category: class, Confidence: s / (s + 1)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// Version returns the active artifact version, or "" when no model is
// loaded.
func (m *ModelStore) Version() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.model == nil {
		return ""
	}
	return m.model.Version
}

// LearnedScorer adapts a Predictor to the Scorer interface. Model
// absence is not an error; the method simply contributes nothing.
type LearnedScorer struct {
	predictor Predictor
	log       *logging.Logger
}

func NewLearnedScorer(p Predictor, log *logging.Logger) *LearnedScorer {
	return &LearnedScorer{predictor: p, log: log}
}

func (s *LearnedScorer) Method() Method { return MethodLearned }

func (s *LearnedScorer) Score(ctx context.Context, text string, _ IncidentContext) ([]Candidate, error) {
	version := s.predictor.Version()
	if version == "" {
		return nil, nil
	}
	preds, err := s.predictor.Predict(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("learned model predict: %w", err)
	}
	out := make([]Candidate, 0, len(preds))
	for _, p := range preds {
		out = append(out, Candidate{
			Category:   p.Category,
			Confidence: clamp01(p.Confidence),
			Method:     MethodLearned,
			Evidence:   []string{fmt.Sprintf("model %s", version)},
		})
	}
	return out, nil
}
