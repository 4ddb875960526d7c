// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline orchestrates the full triage flow for one incident:
// validate, classify, tag, route, persist, arm the escalation ladder,
// and emit lifecycle events, in that order. It also owns the lifecycle
// transitions (resolve, close, manual re-tagging) and restores open
// incidents after a restart.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianTriage/pkg/logging"
	"github.com/AleutianAI/AleutianTriage/services/triage/classify"
	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
	"github.com/AleutianAI/AleutianTriage/services/triage/directory"
	"github.com/AleutianAI/AleutianTriage/services/triage/escalation"
	"github.com/AleutianAI/AleutianTriage/services/triage/events"
	"github.com/AleutianAI/AleutianTriage/services/triage/observability"
	"github.com/AleutianAI/AleutianTriage/services/triage/routing"
	"github.com/AleutianAI/AleutianTriage/services/triage/storage/badgerstore"
	"github.com/AleutianAI/AleutianTriage/services/triage/tagging"
	"github.com/AleutianAI/AleutianTriage/services/triage/taxonomy"
)

// Fallback classification applied when no method produces a confident
// category.
const (
	FallbackCategory   = "infrastructure"
	FallbackConfidence = 0.25
)

var (
	// ErrAlreadyExists rejects a second triage of an id still on file.
	ErrAlreadyExists = errors.New("incident already triaged")

	// ErrBadTransition rejects a lifecycle change the current status
	// does not allow.
	ErrBadTransition = errors.New("invalid status transition")
)

// Deps carries the collaborators the pipeline is assembled from.
type Deps struct {
	Engine    *classify.Engine
	Deriver   *tagging.Deriver
	Router    *routing.Router
	Registry  *taxonomy.Registry
	Directory *directory.Directory
	Store     *badgerstore.Store
	Events    events.Dispatcher
	Metrics   *observability.TriageMetrics
	Log       *logging.Logger
}

// Pipeline is the triage orchestrator.
//
// Thread Safety: safe for concurrent use. A single mutex serializes
// lifecycle transitions so a resolve racing an escalation or a second
// transition sees consistent state.
type Pipeline struct {
	deps        Deps
	escalations *escalation.Manager
	tracer      trace.Tracer

	mu sync.Mutex
}

// New assembles a pipeline and wires the escalation manager's firing
// callback back into persistence, metrics, and the event stream.
func New(deps Deps) *Pipeline {
	p := &Pipeline{
		deps:   deps,
		tracer: otel.Tracer("triage/pipeline"),
	}
	p.escalations = escalation.NewManager(p.onEscalation, deps.Log)
	return p
}

// Triage runs the full flow for a new incident and returns the
// persisted record. The incident id must not already be on file.
func (p *Pipeline) Triage(ctx context.Context, inc *datatypes.Incident) (*badgerstore.Record, error) {
	started := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.triage",
		trace.WithAttributes(attribute.String("incident.id", inc.ID)))
	defer span.End()

	inc.EnsureDefaults()
	if err := inc.Validate(); err != nil {
		return nil, err
	}
	if _, err := p.deps.Store.GetRecord(inc.ID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, inc.ID)
	} else if !errors.Is(err, badgerstore.ErrNotFound) {
		return nil, err
	}

	p.publish(ctx, events.New(events.TypeCreated, inc.ID, nil))
	p.audit(inc.ID, "created", map[string]any{"source": inc.Source, "priority": string(inc.Priority)})

	cls := p.classify(ctx, inc)

	tags := p.deps.Deriver.Derive(inc, cls)
	inc.Tags = tags
	p.publish(ctx, events.New(events.TypeTagged, inc.ID, tags))
	p.deps.Metrics.TagsPerIncident.Observe(float64(len(tags)))

	decision := p.deps.Router.Route(ctx, inc, cls.PrimaryCategory, tags)
	p.publish(ctx, events.New(events.TypeRouted, inc.ID, decision))
	p.audit(inc.ID, "routed", map[string]any{
		"team":        decision.TeamID,
		"sla_minutes": decision.AdjustedSLAMinutes,
		"forced":      decision.Forced,
		"reason":      decision.Reason,
	})
	p.deps.Metrics.RoutingDecisionsTotal.
		WithLabelValues(decision.TeamID, strconv.FormatBool(decision.Forced)).Inc()

	rec := &badgerstore.Record{
		Incident:       *inc,
		Classification: cls,
		Tags:           tags,
		Decision:       decision,
		Status:         badgerstore.StatusOpen,
	}
	if err := p.deps.Store.SaveRecord(rec); err != nil {
		// Routing reserved a slot; without a record nothing would ever
		// release it.
		p.deps.Directory.Release(decision.TeamID)
		return nil, fmt.Errorf("persist incident %s: %w", inc.ID, err)
	}

	p.escalations.Schedule(decision)
	p.deps.Metrics.ActiveIncidents.Inc()
	p.deps.Metrics.IncidentsTotal.
		WithLabelValues(cls.PrimaryCategory, string(inc.Priority)).Inc()
	p.deps.Metrics.TriageDurationSeconds.Observe(time.Since(started).Seconds())

	span.SetAttributes(
		attribute.String("triage.category", cls.PrimaryCategory),
		attribute.String("triage.team", decision.TeamID),
	)
	return rec, nil
}

// classify runs the engine and substitutes the documented fallback when
// it yields nothing. Engine errors degrade to fallback too; an incident
// is never rejected for being unclassifiable.
func (p *Pipeline) classify(ctx context.Context, inc *datatypes.Incident) *classify.Classification {
	cls, err := p.deps.Engine.Classify(ctx, inc)
	if err != nil {
		p.deps.Log.Warn("classification failed, using fallback", "incident_id", inc.ID, "error", err)
	}
	if cls == nil {
		cls = &classify.Classification{
			PrimaryCategory: FallbackCategory,
			Confidence:      FallbackConfidence,
			Timestamp:       time.Now().UTC(),
			Fallback:        true,
		}
		p.deps.Metrics.ClassificationFallbacksTotal.Inc()
	} else {
		p.deps.Metrics.ClassificationConfidence.Observe(cls.Confidence)
	}

	p.publish(ctx, events.New(events.TypeClassified, inc.ID, cls))
	p.audit(inc.ID, "classified", map[string]any{
		"category":   cls.PrimaryCategory,
		"confidence": cls.Confidence,
		"fallback":   cls.Fallback,
	})
	return cls
}

// Resolve marks an open incident resolved: the escalation ladder is
// disarmed and the team's capacity slot is released.
func (p *Pipeline) Resolve(ctx context.Context, incidentID, actor, note string) (*badgerstore.Record, error) {
	return p.transition(ctx, incidentID, actor, note,
		badgerstore.StatusResolved, events.TypeResolved, []badgerstore.Status{badgerstore.StatusOpen})
}

// Close marks an incident closed. Open incidents may close directly;
// capacity is released if it still holds a slot.
func (p *Pipeline) Close(ctx context.Context, incidentID, actor, note string) (*badgerstore.Record, error) {
	return p.transition(ctx, incidentID, actor, note,
		badgerstore.StatusClosed, events.TypeClosed,
		[]badgerstore.Status{badgerstore.StatusOpen, badgerstore.StatusResolved})
}

func (p *Pipeline) transition(ctx context.Context, incidentID, actor, note string, to badgerstore.Status, eventType string, from []badgerstore.Status) (*badgerstore.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, err := p.deps.Store.GetRecord(incidentID)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, s := range from {
		if rec.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s is %s", ErrBadTransition, incidentID, rec.Status)
	}

	// Leaving the open state gives the capacity slot back and disarms
	// any pending escalation.
	if rec.Status == badgerstore.StatusOpen {
		p.escalations.Cancel(incidentID)
		if rec.Decision != nil {
			p.deps.Directory.Release(rec.Decision.TeamID)
		}
		p.deps.Metrics.ActiveIncidents.Dec()
	}

	rec.Status = to
	if err := p.deps.Store.SaveRecord(rec); err != nil {
		return nil, err
	}

	p.publish(ctx, events.New(eventType, incidentID, map[string]string{"actor": actor, "note": note}))
	p.audit(incidentID, string(to), map[string]any{"actor": actor, "note": note})
	p.deps.Log.Info("incident "+string(to), "incident_id", incidentID, "actor", actor)
	return rec, nil
}

// UpdateTags applies manual tag edits to an incident in any state.
func (p *Pipeline) UpdateTags(ctx context.Context, incidentID string, add, remove []string, actor string, override bool) (*badgerstore.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, err := p.deps.Store.GetRecord(incidentID)
	if err != nil {
		return nil, err
	}
	tags, err := p.deps.Deriver.ApplyManual(rec.Tags, add, remove, override)
	if err != nil {
		return nil, err
	}
	rec.Tags = tags
	rec.Incident.Tags = rec.Tags
	if err := p.deps.Store.SaveRecord(rec); err != nil {
		return nil, err
	}

	p.publish(ctx, events.New(events.TypeTagged, incidentID, rec.Tags))
	p.audit(incidentID, "retagged", map[string]any{"actor": actor, "add": add, "remove": remove})
	return rec, nil
}

// Get returns one incident record.
func (p *Pipeline) Get(incidentID string) (*badgerstore.Record, error) {
	return p.deps.Store.GetRecord(incidentID)
}

// List returns records, optionally filtered by status.
func (p *Pipeline) List(status badgerstore.Status) ([]*badgerstore.Record, error) {
	return p.deps.Store.ListRecords(status)
}

// AuditTrail returns the incident's audit entries in write order.
func (p *Pipeline) AuditTrail(incidentID string) ([]badgerstore.AuditEntry, error) {
	return p.deps.Store.AuditTrail(incidentID)
}

// Restore re-arms state after a restart: every open record gets its
// team slot re-reserved and its escalation ladder re-scheduled at the
// original wall-clock deadlines. Returns the number restored.
func (p *Pipeline) Restore(ctx context.Context) (int, error) {
	open, err := p.deps.Store.ListRecords(badgerstore.StatusOpen)
	if err != nil {
		return 0, err
	}
	for _, rec := range open {
		if rec.Decision == nil {
			continue
		}
		// Force past capacity: the slot was already granted before the
		// restart.
		if err := p.deps.Directory.Reserve(rec.Decision.TeamID, true); err != nil {
			p.deps.Log.Warn("restore could not re-reserve capacity",
				"incident_id", rec.Incident.ID, "team", rec.Decision.TeamID, "error", err)
		}
		p.escalations.Schedule(rec.Decision)
		p.deps.Metrics.ActiveIncidents.Inc()
	}
	if len(open) > 0 {
		p.deps.Log.Info("restored open incidents", "count", len(open))
	}
	return len(open), nil
}

// onEscalation records a fired escalation, bumps metrics, and emits the
// lifecycle event. A timer that loses the race with Resolve/Close is a
// no-op. Runs on the escalation manager's timer goroutine.
func (p *Pipeline) onEscalation(escRec datatypes.EscalationRecord) {
	p.mu.Lock()
	rec, err := p.deps.Store.GetRecord(escRec.IncidentID)
	if err != nil || rec.Status != badgerstore.StatusOpen {
		p.mu.Unlock()
		return
	}
	// Ownership moves to the escalation target, capacity with it.
	if rec.Decision != nil && rec.Decision.TeamID != escRec.ToTeam {
		p.deps.Directory.Release(rec.Decision.TeamID)
		if err := p.deps.Directory.Reserve(escRec.ToTeam, true); err != nil {
			p.deps.Log.Error("reserve escalation target failed",
				"incident_id", escRec.IncidentID, "team", escRec.ToTeam, "error", err)
		}
		rec.Decision.TeamID = escRec.ToTeam
	}
	rec.Escalations = append(rec.Escalations, escRec)
	if err := p.deps.Store.SaveRecord(rec); err != nil {
		p.deps.Log.Error("persist escalation failed",
			"incident_id", escRec.IncidentID, "error", err)
	}
	p.mu.Unlock()

	p.deps.Metrics.EscalationsTotal.WithLabelValues(strconv.Itoa(escRec.Level)).Inc()
	p.publish(context.Background(), events.New(events.TypeEscalated, escRec.IncidentID, escRec))
	p.audit(escRec.IncidentID, "escalated", map[string]any{
		"level": escRec.Level,
		"from":  escRec.FromTeam,
		"to":    escRec.ToTeam,
	})
}

// Shutdown disarms all timers. The store is owned by the caller and
// closed separately.
func (p *Pipeline) Shutdown() {
	p.escalations.Close()
}

// ActiveEscalations reports how many incidents hold a pending ladder.
func (p *Pipeline) ActiveEscalations() int {
	return p.escalations.Active()
}

func (p *Pipeline) publish(ctx context.Context, ev events.Event) {
	if p.deps.Events != nil {
		p.deps.Events.Publish(ctx, ev)
	}
}

func (p *Pipeline) audit(incidentID, action string, detail map[string]any) {
	if err := p.deps.Store.AppendAudit(badgerstore.AuditEntry{
		IncidentID: incidentID,
		Action:     action,
		Detail:     detail,
	}); err != nil {
		p.deps.Log.Error("append audit failed", "incident_id", incidentID, "action", action, "error", err)
	}
}
