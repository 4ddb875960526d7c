// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package directory

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Sentinel errors callers branch on.
var (
	ErrTeamNotFound = errors.New("team not found")
	ErrAtCapacity   = errors.New("team at capacity")
)

// Directory is the in-process team registry.
//
// Thread Safety: all methods are safe for concurrent use. Reservation and
// release of capacity happen under the write lock, so a capacity check
// and its increment are one atomic step.
type Directory struct {
	mu     sync.RWMutex
	logger *slog.Logger

	teams map[string]*Team
	load  map[string]int

	fallbackTeam   string
	managementTier string
}

// NewDirectory builds a Directory from a parsed catalog.
func NewDirectory(catalog *CatalogFile, logger *slog.Logger) (*Directory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Directory{
		logger:         logger,
		teams:          make(map[string]*Team, len(catalog.Teams)),
		load:           make(map[string]int, len(catalog.Teams)),
		fallbackTeam:   catalog.FallbackTeam,
		managementTier: catalog.ManagementTier,
	}
	for i := range catalog.Teams {
		team := catalog.Teams[i]
		if _, exists := d.teams[team.ID]; exists {
			return nil, fmt.Errorf("duplicate team id %q", team.ID)
		}
		d.teams[team.ID] = team.clone()
	}
	if _, ok := d.teams[catalog.FallbackTeam]; !ok {
		return nil, fmt.Errorf("%w: fallback team %q", ErrTeamNotFound, catalog.FallbackTeam)
	}
	return d, nil
}

// FallbackTeam returns the global last-resort team id.
func (d *Directory) FallbackTeam() string {
	return d.fallbackTeam
}

// ManagementTier returns the level-3 escalation team id ("" if unset).
func (d *Directory) ManagementTier() string {
	return d.managementTier
}

// Get returns a copy of the team with its live load filled in.
func (d *Directory) Get(id string) (*Team, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	team, ok := d.teams[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTeamNotFound, id)
	}
	c := team.clone()
	c.CurrentLoad = d.load[id]
	return c, nil
}

// Exists reports whether a team id is registered.
func (d *Directory) Exists(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.teams[id]
	return ok
}

// All returns copies of every team with live loads, sorted by id.
func (d *Directory) All() []*Team {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.teams))
	for id := range d.teams {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*Team, 0, len(ids))
	for _, id := range ids {
		c := d.teams[id].clone()
		c.CurrentLoad = d.load[id]
		out = append(out, c)
	}
	return out
}

// Reserve atomically claims one unit of capacity on a team.
//
// When force is false the reservation fails with ErrAtCapacity once
// CurrentLoad reaches MaxCapacity. When force is true the counter is
// incremented regardless; forced reservations model the capacity-overrun
// assignment of critical incidents and are logged by the caller.
func (d *Directory) Reserve(id string, force bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	team, ok := d.teams[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTeamNotFound, id)
	}
	if !force && d.load[id] >= team.MaxCapacity {
		return fmt.Errorf("%w: %q (%d/%d)", ErrAtCapacity, id, d.load[id], team.MaxCapacity)
	}
	d.load[id]++
	return nil
}

// Release returns one unit of capacity. The counter never goes below
// zero; a release for an unknown team is a logged no-op because the team
// may have been removed from a snapshot while incidents were in flight.
func (d *Directory) Release(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.teams[id]; !ok {
		d.logger.Warn("capacity release for unknown team", "team_id", id)
		return
	}
	if d.load[id] > 0 {
		d.load[id]--
	}
}

// Load returns the current assignment count for a team (0 if unknown).
func (d *Directory) Load(id string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.load[id]
}

// Utilization returns CurrentLoad/MaxCapacity for a team.
func (d *Directory) Utilization(id string) float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	team, ok := d.teams[id]
	if !ok || team.MaxCapacity <= 0 {
		return 1
	}
	return float64(d.load[id]) / float64(team.MaxCapacity)
}

// OverlappingSkillTeams returns teams (excluding exclude) with a positive
// skill weight or capability for the given taxonomy id, sorted by skill
// weight descending, ties by id for determinism.
func (d *Directory) OverlappingSkillTeams(taxonomyID, exclude string) []*Team {
	d.mu.RLock()
	defer d.mu.RUnlock()

	type scored struct {
		team   *Team
		weight float64
	}
	var out []scored
	for id, team := range d.teams {
		if id == exclude {
			continue
		}
		weight := team.Skills[taxonomyID]
		for _, cap := range team.Capabilities {
			if cap == taxonomyID && weight < 1 {
				weight = 1
			}
		}
		if weight > 0 {
			c := team.clone()
			c.CurrentLoad = d.load[id]
			out = append(out, scored{team: c, weight: weight})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].weight != out[j].weight {
			return out[i].weight > out[j].weight
		}
		return out[i].team.ID < out[j].team.ID
	})

	teams := make([]*Team, len(out))
	for i := range out {
		teams[i] = out[i].team
	}
	return teams
}

// Upsert inserts or replaces a team definition, preserving its live load.
// Used by the catalog admin API and snapshot restore.
func (d *Directory) Upsert(team *Team) error {
	if err := team.validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.teams[team.ID] = team.clone()
	d.logger.Info("team upserted", "team_id", team.ID)
	return nil
}
