// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routing

import (
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianTriage/pkg/logging"
	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
	"github.com/AleutianAI/AleutianTriage/services/triage/directory"
)

// OverloadThreshold is the utilization above which the balancer starts
// diverting non-critical incidents away from the preferred team.
const OverloadThreshold = 0.9

// Assignment is the balancer's outcome: the team that actually holds
// the reservation, and how it came to hold it.
type Assignment struct {
	TeamID string
	Forced bool
	// Diverted is set when the preferred team was skipped for load or
	// schedule reasons.
	Diverted bool
	Note     string
}

// Balancer turns a preferred team into a confirmed capacity
// reservation. When the preferred team is dark or saturated it walks
// skill-overlapping teams, then the preferred team's escalation chain,
// and only then the fallback desk. Critical incidents never divert:
// they force onto the preferred team.
//
// Thread Safety: safe for concurrent use; reservations are atomic in
// the directory.
type Balancer struct {
	dir *directory.Directory
	log *logging.Logger
}

func NewBalancer(dir *directory.Directory, log *logging.Logger) *Balancer {
	return &Balancer{dir: dir, log: log}
}

// Assign reserves a slot for the incident. preferred must exist in the
// directory; category drives the skill-overlap walk; escalation lists
// the preferred team's escalation chain, tried in order when no skill
// overlap has capacity.
func (b *Balancer) Assign(inc *datatypes.Incident, preferred, category string, escalation []string, at time.Time) (*Assignment, error) {
	team, err := b.dir.Get(preferred)
	if err != nil {
		return nil, fmt.Errorf("preferred team %s: %w", preferred, err)
	}

	critical := inc.Priority == datatypes.PriorityCritical

	// Critical incidents stay with the preferred team no matter what.
	if critical {
		if err := b.dir.Reserve(preferred, false); err == nil {
			return &Assignment{TeamID: preferred}, nil
		}
		if err := b.dir.Reserve(preferred, true); err != nil {
			return nil, fmt.Errorf("force reserve %s: %w", preferred, err)
		}
		b.log.Warn("critical incident forced onto saturated team",
			"incident_id", inc.ID, "team", preferred, "load", b.dir.Load(preferred))
		return &Assignment{TeamID: preferred, Forced: true, Note: "forced: critical priority overrides capacity"}, nil
	}

	preferredOpen := team.Available(at)
	preferredLoaded := b.dir.Utilization(preferred) >= OverloadThreshold

	if preferredOpen && !preferredLoaded {
		if err := b.dir.Reserve(preferred, false); err == nil {
			return &Assignment{TeamID: preferred}, nil
		} else if !errors.Is(err, directory.ErrAtCapacity) {
			return nil, err
		}
	}

	fb := b.dir.FallbackTeam()

	// Walk teams with overlapping skills, best match first. The fallback
	// desk is the explicit last resort, not a skill peer.
	for _, alt := range b.dir.OverlappingSkillTeams(category, preferred) {
		if alt.ID == fb {
			continue
		}
		if !alt.Available(at) || b.dir.Utilization(alt.ID) >= OverloadThreshold {
			continue
		}
		if err := b.dir.Reserve(alt.ID, false); err != nil {
			continue
		}
		reason := "load"
		if !preferredOpen {
			reason = "schedule"
		}
		b.log.Info("incident diverted",
			"incident_id", inc.ID, "preferred", preferred, "assigned", alt.ID, "reason", reason)
		return &Assignment{
			TeamID:   alt.ID,
			Diverted: true,
			Note:     fmt.Sprintf("diverted from %s (%s)", preferred, reason),
		}, nil
	}

	// Then the preferred team's escalation chain, in ladder order.
	for _, id := range escalation {
		if id == preferred || id == fb {
			continue
		}
		alt, err := b.dir.Get(id)
		if err != nil {
			continue
		}
		if !alt.Available(at) || b.dir.Utilization(id) >= OverloadThreshold {
			continue
		}
		if err := b.dir.Reserve(id, false); err != nil {
			continue
		}
		b.log.Info("incident diverted up the escalation chain",
			"incident_id", inc.ID, "preferred", preferred, "assigned", id)
		return &Assignment{
			TeamID:   id,
			Diverted: true,
			Note:     fmt.Sprintf("diverted from %s to escalation chain team %s", preferred, id),
		}, nil
	}

	// Last resort: the fallback desk always absorbs, forcing past its
	// cap when it has to.
	forced := false
	if err := b.dir.Reserve(fb, false); err != nil {
		if !errors.Is(err, directory.ErrAtCapacity) {
			return nil, err
		}
		if err := b.dir.Reserve(fb, true); err != nil {
			return nil, fmt.Errorf("force reserve fallback %s: %w", fb, err)
		}
		forced = true
	}
	return &Assignment{
		TeamID:   fb,
		Forced:   forced,
		Diverted: fb != preferred,
		Note:     fmt.Sprintf("fallback desk: %s unavailable and no skill overlap had capacity", preferred),
	}, nil
}
