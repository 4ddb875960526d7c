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
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianTriage/pkg/logging"
	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
	"github.com/AleutianAI/AleutianTriage/services/triage/directory"
	"github.com/AleutianAI/AleutianTriage/services/triage/tagging"
	"github.com/AleutianAI/AleutianTriage/services/triage/taxonomy"
)

// Escalation ladder multipliers over the adjusted SLA.
const (
	level1Multiplier = 0.75
	level2Multiplier = 1.5
	level3Multiplier = 2.5
)

// Router is the full assignment path: rule selection, taxonomy
// fallback, SLA adjustment, capacity balancing, and escalation ladder
// construction.
//
// Thread Safety: safe for concurrent use after construction.
type Router struct {
	registry *taxonomy.Registry
	dir      *directory.Directory
	selector *Selector
	balancer *Balancer
	calendar *tagging.Calendar
	log      *logging.Logger
	tracer   trace.Tracer
}

// NewRouter wires the router. rules nil falls back to taxonomy hints
// only.
func NewRouter(rules *RuleSet, registry *taxonomy.Registry, dir *directory.Directory, calendar *tagging.Calendar, log *logging.Logger) *Router {
	if calendar == nil {
		calendar = tagging.NewCalendar(nil)
	}
	if rules == nil {
		rules = &RuleSet{}
	}
	ancestors := func(category string) []string {
		path, err := registry.AncestorPath(category)
		if err != nil {
			return nil
		}
		ids := make([]string, 0, len(path))
		for _, node := range path {
			if node.ID != category {
				ids = append(ids, node.ID)
			}
		}
		return ids
	}
	return &Router{
		registry: registry,
		dir:      dir,
		selector: NewSelector(rules, calendar, ancestors),
		balancer: NewBalancer(dir, log),
		calendar: calendar,
		log:      log,
		tracer:   otel.Tracer("triage/routing"),
	}
}

// Route assigns the incident to a team and reserves its capacity slot.
// category is the classified primary category; tags the derived tag
// set. Routing never fails outright: on internal errors the decision
// lands on the fallback desk with Error populated.
func (r *Router) Route(ctx context.Context, inc *datatypes.Incident, category string, tags []string) *datatypes.RoutingDecision {
	_, span := r.tracer.Start(ctx, "routing.route",
		trace.WithAttributes(
			attribute.String("incident.id", inc.ID),
			attribute.String("incident.category", category),
		))
	defer span.End()

	at := inc.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}

	preferred, score, reason := r.preferredTeam(inc, category, tags)

	assignment, err := r.balancer.Assign(inc, preferred, category,
		r.escalationCandidates(preferred, category), at)
	if err != nil {
		// Absolute last resort: pin to the fallback desk unreserved so
		// the incident is never lost.
		r.log.Error("assignment failed, pinning to fallback desk",
			"incident_id", inc.ID, "preferred", preferred, "error", err)
		assignment = &Assignment{TeamID: r.dir.FallbackTeam(), Note: "assignment error"}
	}

	base := r.baseSLAMinutes(category, assignment.TeamID)
	sla := AdjustedSLAMinutes(base, inc.Priority, at, r.calendar, r.dir.Utilization(assignment.TeamID))

	decision := &datatypes.RoutingDecision{
		IncidentID:         inc.ID,
		TeamID:             assignment.TeamID,
		Priority:           inc.Priority,
		AdjustedSLAMinutes: sla,
		EscalationPath:     r.escalationPath(assignment.TeamID, category, sla),
		AssignedAt:         at,
		Forced:             assignment.Forced,
		Reason:             reason,
	}
	if assignment.Note != "" {
		decision.Reason = fmt.Sprintf("%s; %s", reason, assignment.Note)
	}
	if err != nil {
		decision.Error = true
		decision.Reason = fmt.Sprintf("%s; %v", reason, err)
	}

	span.SetAttributes(
		attribute.String("routing.team", decision.TeamID),
		attribute.Float64("routing.score", score),
		attribute.Float64("routing.sla_minutes", sla),
		attribute.Bool("routing.forced", decision.Forced),
	)
	r.log.Info("incident routed",
		"incident_id", inc.ID,
		"team", decision.TeamID,
		"priority", string(inc.Priority),
		"sla_minutes", sla,
		"reason", decision.Reason)
	return decision
}

// preferredTeam resolves the assignment target before balancing: best
// matching rule, then the taxonomy default team, then the fallback
// desk. The returned team is guaranteed to exist in the directory.
func (r *Router) preferredTeam(inc *datatypes.Incident, category string, tags []string) (team string, score float64, reason string) {
	if cand, ok := r.selector.Select(inc, category, tags); ok && r.dir.Exists(cand.Rule.Target) {
		return cand.Rule.Target, cand.Score, cand.Reason()
	}

	if node, err := r.registry.Get(category); err == nil && node.Routing.DefaultTeam != "" {
		if r.dir.Exists(node.Routing.DefaultTeam) {
			return node.Routing.DefaultTeam, FallbackScore,
				fmt.Sprintf("taxonomy default for %s", category)
		}
		r.log.Warn("taxonomy default team missing from directory",
			"category", category, "team", node.Routing.DefaultTeam)
	}

	return r.dir.FallbackTeam(), FallbackScore, "no rule or taxonomy hint matched"
}

// escalationCandidates lists the teams the balancer may divert to when
// nothing with overlapping skills has capacity: the preferred team's
// supervisor, then the category's escalation target.
func (r *Router) escalationCandidates(teamID, category string) []string {
	var out []string
	seen := map[string]bool{teamID: true}
	if team, err := r.dir.Get(teamID); err == nil && team.Supervisor != "" && !seen[team.Supervisor] {
		seen[team.Supervisor] = true
		out = append(out, team.Supervisor)
	}
	if node, err := r.registry.Get(category); err == nil {
		if t := node.Routing.EscalationTarget; t != "" && !seen[t] {
			out = append(out, t)
		}
	}
	return out
}

func (r *Router) baseSLAMinutes(category, teamID string) float64 {
	if node, err := r.registry.Get(category); err == nil && node.Routing.BaseSLAMinutes > 0 {
		return node.Routing.BaseSLAMinutes
	}
	if team, err := r.dir.Get(teamID); err == nil && team.BaseSLAMinutes > 0 {
		return team.BaseSLAMinutes
	}
	return DefaultBaseSLAMinutes
}

// escalationPath builds the three-level ladder over the adjusted SLA.
// Duplicate targets are skipped and surviving entries renumbered so
// levels stay strictly increasing. A target missing from the directory
// ends the ladder there: escalating past an unknown team would strand
// the incident, so the chain stops at the last valid level.
func (r *Router) escalationPath(teamID, category string, slaMinutes float64) []datatypes.EscalationPathEntry {
	type rung struct {
		target string
		mult   float64
	}
	var ladder []rung

	if team, err := r.dir.Get(teamID); err == nil && team.Supervisor != "" {
		ladder = append(ladder, rung{team.Supervisor, level1Multiplier})
	}
	if node, err := r.registry.Get(category); err == nil && node.Routing.EscalationTarget != "" {
		ladder = append(ladder, rung{node.Routing.EscalationTarget, level2Multiplier})
	}
	if mgmt := r.dir.ManagementTier(); mgmt != "" {
		ladder = append(ladder, rung{mgmt, level3Multiplier})
	}

	seen := map[string]bool{teamID: true}
	var path []datatypes.EscalationPathEntry
	for _, rg := range ladder {
		if seen[rg.target] {
			continue
		}
		if !r.dir.Exists(rg.target) {
			r.log.Warn("escalation ladder ends early at unknown target",
				"team", teamID, "category", category,
				"target", rg.target, "levels", len(path))
			break
		}
		seen[rg.target] = true
		path = append(path, datatypes.EscalationPathEntry{
			Level:        len(path) + 1,
			Target:       rg.target,
			TriggerAfter: time.Duration(slaMinutes * rg.mult * float64(time.Minute)),
		})
	}
	return path
}
