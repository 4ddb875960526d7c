// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events publishes the triage lifecycle stream: every state
// transition an incident goes through is emitted as one event and
// fanned out to the configured sinks (log, websocket feed, audit
// store).
package events

import (
	"context"
	"time"

	"github.com/AleutianAI/AleutianTriage/pkg/logging"
)

// Event types, in lifecycle order.
const (
	TypeCreated    = "incident.created"
	TypeClassified = "incident.classified"
	TypeTagged     = "incident.tagged"
	TypeRouted     = "incident.routed"
	TypeEscalated  = "incident.escalated"
	TypeResolved   = "incident.resolved"
	TypeClosed     = "incident.closed"
)

// Event is one lifecycle transition.
type Event struct {
	Type       string    `json:"type"`
	IncidentID string    `json:"incident_id"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload,omitempty"`
}

// New stamps an event with the current time.
func New(eventType, incidentID string, payload any) Event {
	return Event{
		Type:       eventType,
		IncidentID: incidentID,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	}
}

// Dispatcher delivers events to one sink. Publish must not block the
// pipeline; slow consumers drop or buffer internally.
type Dispatcher interface {
	Publish(ctx context.Context, ev Event)
}

// Multi fans one event out to several dispatchers in order.
type Multi []Dispatcher

func (m Multi) Publish(ctx context.Context, ev Event) {
	for _, d := range m {
		d.Publish(ctx, ev)
	}
}

// LogSink writes every event to the structured log.
type LogSink struct {
	log *logging.Logger
}

func NewLogSink(log *logging.Logger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) Publish(_ context.Context, ev Event) {
	s.log.Info("triage event",
		"event_type", ev.Type,
		"incident_id", ev.IncidentID,
		"event_time", ev.Timestamp.Format(time.RFC3339Nano))
}
