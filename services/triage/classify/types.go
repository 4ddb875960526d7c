// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify scores incident text against the taxonomy using five
// independent methods (keyword, pattern, semantic, structured context,
// and a pluggable learned model) and fuses the per-method candidates
// into one ranked classification.
//
// Each method is a pure function of (text, incident context) given the
// scorer's configuration; deterministic methods reproduce the same
// candidates for identical input. Methods run fanned out and a failing
// method contributes nothing rather than aborting the run.
package classify

import (
	"context"
	"time"

	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
)

// Method identifies which scorer produced a candidate.
type Method string

const (
	MethodKeyword  Method = "keyword"
	MethodPattern  Method = "pattern"
	MethodSemantic Method = "semantic"
	MethodContext  Method = "context"
	MethodLearned  Method = "learned"
)

// IncidentContext carries the structured incident fields the scorers may
// consult alongside the raw text.
type IncidentContext struct {
	Source    string
	Timestamp time.Time
	Priority  datatypes.Priority
}

// Candidate is one per-method classification proposal. Ephemeral: it
// exists only between a scorer call and the combiner.
type Candidate struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Method     Method   `json:"method"`
	Evidence   []string `json:"evidence,omitempty"`
}

// Classification is the fused result for one incident. A nil
// *Classification means no category survived filtering; the caller
// applies the documented fallback.
type Classification struct {
	PrimaryCategory string      `json:"primary_category"`
	Confidence      float64     `json:"confidence"`
	Alternatives    []Candidate `json:"alternatives,omitempty"`
	MethodsUsed     []Method    `json:"methods_used"`
	Timestamp       time.Time   `json:"timestamp"`

	// Fallback marks a classification synthesized by the caller after
	// the combiner returned nothing.
	Fallback bool `json:"fallback,omitempty"`

	// Evidence aggregates the evidence strings of the primary category's
	// contributing methods; the tag deriver mines it for keyword tags.
	Evidence []string `json:"evidence,omitempty"`
}

// Scorer is one classification method.
//
// Score must be side-effect free; an error (or panic, which the engine
// absorbs) excludes the method from combination without failing the run.
//
// Thread Safety: implementations must be safe for concurrent use.
type Scorer interface {
	Method() Method
	Score(ctx context.Context, text string, inc IncidentContext) ([]Candidate, error)
}

// Prediction is one learned-model output.
type Prediction struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Predictor is the stable interface to the external learned model. The
// model is an opaque, versioned artifact produced by the out-of-process
// retraining pipeline; implementations must tolerate model absence
// (empty predictions) and version changes without a restart.
type Predictor interface {
	Predict(ctx context.Context, text string) ([]Prediction, error)
	Version() string
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
