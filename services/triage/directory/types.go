// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package directory maintains the registry of support teams: their
// capabilities, schedules, capacity counters, and escalation wiring.
//
// Capacity counters are shared mutable state across concurrently routed
// incidents; all reservations and releases go through Directory methods
// that hold the directory lock, so two incidents can never both pass a
// capacity check and both increment past the maximum.
package directory

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Schedule is the staffing window of a team.
type Schedule string

const (
	Schedule24x7 Schedule = "24x7" // always staffed
	Schedule16x5 Schedule = "16x5" // Mon-Fri 06:00-22:00
	Schedule8x5  Schedule = "8x5"  // Mon-Fri 09:00-17:00
)

// Valid reports whether s names a known schedule.
func (s Schedule) Valid() bool {
	switch s {
	case Schedule24x7, Schedule16x5, Schedule8x5:
		return true
	default:
		return false
	}
}

// Covers reports whether the schedule window includes the given time.
// On-call coverage is handled by the caller, not here.
func (s Schedule) Covers(t time.Time) bool {
	switch s {
	case Schedule24x7:
		return true
	case Schedule16x5:
		return isWeekday(t) && t.Hour() >= 6 && t.Hour() < 22
	case Schedule8x5:
		return isWeekday(t) && t.Hour() >= 9 && t.Hour() < 17
	default:
		return false
	}
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// Team is one support team in the directory.
//
// Current load is tracked by the Directory, not on the Team value itself;
// copies handed to callers carry a point-in-time CurrentLoad.
type Team struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`

	// Capabilities lists the taxonomy ids the team owns outright.
	Capabilities []string `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`

	// Skills weights secondary competence per taxonomy id in [0,1];
	// used to find overlapping-skill fallback teams.
	Skills map[string]float64 `yaml:"skills,omitempty" json:"skills,omitempty"`

	Schedule      Schedule `yaml:"schedule" json:"schedule"`
	OnCallSupport bool     `yaml:"on_call" json:"on_call"`

	// MaxCapacity is the maximum concurrent incident load. Zero means
	// the team accepts no direct assignments (escalation-only tiers
	// use a positive value like everyone else).
	MaxCapacity int `yaml:"max_capacity" json:"max_capacity"`

	// CurrentLoad is the live assignment count at read time.
	CurrentLoad int `yaml:"-" json:"current_load"`

	BaseSLAMinutes float64 `yaml:"base_sla_minutes" json:"base_sla_minutes"`

	// Supervisor is the level-1 escalation target (a team id).
	Supervisor string `yaml:"supervisor,omitempty" json:"supervisor,omitempty"`
}

// Available reports whether the team can take a new assignment at t:
// inside its schedule window, or staffed on call.
func (t *Team) Available(at time.Time) bool {
	return t.Schedule.Covers(at) || t.OnCallSupport
}

// Utilization returns CurrentLoad/MaxCapacity in [0,∞); a team forced
// past max reports > 1.
func (t *Team) Utilization() float64 {
	if t.MaxCapacity <= 0 {
		return 1
	}
	return float64(t.CurrentLoad) / float64(t.MaxCapacity)
}

func (t *Team) validate() error {
	if t.ID == "" {
		return fmt.Errorf("team id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("team %q: name is required", t.ID)
	}
	if !t.Schedule.Valid() {
		return fmt.Errorf("team %q: invalid schedule %q", t.ID, t.Schedule)
	}
	if t.MaxCapacity < 0 {
		return fmt.Errorf("team %q: max_capacity must be >= 0", t.ID)
	}
	if t.BaseSLAMinutes <= 0 {
		return fmt.Errorf("team %q: base_sla_minutes must be positive", t.ID)
	}
	for skill, weight := range t.Skills {
		if weight < 0 || weight > 1 {
			return fmt.Errorf("team %q: skill %q weight %v outside [0,1]", t.ID, skill, weight)
		}
	}
	return nil
}

func (t *Team) clone() *Team {
	c := *t
	c.Capabilities = append([]string(nil), t.Capabilities...)
	if t.Skills != nil {
		c.Skills = make(map[string]float64, len(t.Skills))
		for k, v := range t.Skills {
			c.Skills[k] = v
		}
	}
	return &c
}

// CatalogFile is the YAML document layout of the embedded team catalog.
type CatalogFile struct {
	Teams []Team `yaml:"teams"`

	// FallbackTeam is the global last-resort assignment target.
	FallbackTeam string `yaml:"fallback_team"`

	// ManagementTier is the level-3 escalation destination.
	ManagementTier string `yaml:"management_tier"`
}

// ParseCatalog unmarshals and validates a YAML team catalog.
func ParseCatalog(raw []byte) (*CatalogFile, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the team catalog: %w", err)
	}
	for i := range file.Teams {
		if err := file.Teams[i].validate(); err != nil {
			return nil, err
		}
	}
	if file.FallbackTeam == "" {
		return nil, fmt.Errorf("team catalog: fallback_team is required")
	}
	return &file, nil
}
