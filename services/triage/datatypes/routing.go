// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"time"
)

// EscalationPathEntry is one hop of an incident's escalation chain.
//
// Level starts at 1 and increases without gaps. TriggerAfter is the
// offset from assignment at which the escalation timer for this hop
// fires (already scaled by the adjusted SLA when the path is built).
type EscalationPathEntry struct {
	Level        int           `json:"level"`
	Target       string        `json:"target"`
	TriggerAfter time.Duration `json:"trigger_after"`
}

// RoutingDecision is the outcome of routing one incident. Created once per
// incident; TeamID changes only through escalation.
type RoutingDecision struct {
	IncidentID         string                `json:"incident_id"`
	TeamID             string                `json:"team_id"`
	Priority           Priority              `json:"priority"`
	AdjustedSLAMinutes float64               `json:"adjusted_sla_minutes"`
	EscalationPath     []EscalationPathEntry `json:"escalation_path,omitempty"`
	AssignedAt         time.Time             `json:"assigned_at"`

	// Forced marks a capacity-overrun assignment of a critical incident
	// to an unavailable team. Flagged for later review, not an error.
	Forced bool `json:"forced,omitempty"`

	// Error marks a decision that fell through every rule and fallback
	// list; the incident is parked on the global default team.
	Error bool `json:"error,omitempty"`

	// Reason is a human-readable explanation for Forced/Error/fallback
	// decisions ("" for a clean rule match).
	Reason string `json:"reason,omitempty"`
}

// AdjustedSLA returns the SLA budget as a duration.
func (d *RoutingDecision) AdjustedSLA() time.Duration {
	return time.Duration(d.AdjustedSLAMinutes * float64(time.Minute))
}

// EscalationRecord is one append-only escalation event for an incident.
// Levels for a given incident are strictly increasing from 1 with no gaps.
type EscalationRecord struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	Level      int       `json:"level"`
	FromTeam   string    `json:"from_team"`
	ToTeam     string    `json:"to_team"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}
