// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the wire and domain types shared across the
// triage service: incidents, routing decisions, and escalation records.
//
// Types here are leaf types with no dependency on other triage packages,
// so every component (classifier, router, scheduler, handlers) can share
// them without import cycles.
package datatypes

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianTriage/pkg/validation"
)

// MaxIncidentTextBytes caps title+description size. Incident reports come
// from upstream ticketing integrations; oversized payloads are rejected
// before classification to bound regex and window-scan cost.
const MaxIncidentTextBytes = 64 * 1024

// triageValidate is the shared validator instance for triage datatypes.
var triageValidate *validator.Validate

func init() {
	triageValidate = validator.New()
	_ = triageValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxIncidentTextBytes
}

// =============================================================================
// Priority
// =============================================================================

// Priority is the urgency band of an incident or taxonomy category.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank orders priorities for tie-breaking: critical > high > medium > low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 0
	default:
		return -1
	}
}

// Valid reports whether p names a known priority band.
func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

// ParsePriority normalizes a caller-supplied priority string. Empty input
// defaults to medium per the intake contract; unknown values are an error.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityMedium, nil
	}
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q (expected critical|high|medium|low)", s)
	}
	return p, nil
}

// =============================================================================
// Incident
// =============================================================================

// Incident is a free-text incident report entering the pipeline.
//
// ID is caller-supplied and required; at least one of Title/Description
// must be non-blank. Once classified an incident is immutable except for
// status and tag updates.
type Incident struct {
	ID            string    `json:"id" validate:"required"`
	Title         string    `json:"title" validate:"maxbytes"`
	Description   string    `json:"description" validate:"maxbytes"`
	Source        string    `json:"source,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Priority      Priority  `json:"priority,omitempty"`
	AffectedUsers int       `json:"affected_users,omitempty" validate:"gte=0"`
	Tags          []string  `json:"tags,omitempty"`
}

// Text returns the classifiable text of the incident: title and
// description joined, lowercased by the individual scorers as needed.
func (i *Incident) Text() string {
	switch {
	case i.Title == "":
		return i.Description
	case i.Description == "":
		return i.Title
	default:
		return i.Title + " " + i.Description
	}
}

// EnsureDefaults fills Timestamp (now, UTC) and Priority (medium) when the
// reporter omitted them.
func (i *Incident) EnsureDefaults() {
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now().UTC()
	}
	if i.Priority == "" {
		i.Priority = PriorityMedium
	}
}

// Validate enforces the intake contract before the incident enters the
// pipeline. The returned error names every missing or malformed field.
func (i *Incident) Validate() error {
	if err := validation.ValidateIncidentInput(i.ID, i.Title, i.Description); err != nil {
		return err
	}
	if i.Priority != "" && !i.Priority.Valid() {
		return fmt.Errorf("unknown priority %q (expected critical|high|medium|low)", i.Priority)
	}
	return triageValidate.Struct(i)
}
