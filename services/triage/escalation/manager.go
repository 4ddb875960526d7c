// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package escalation drives the timer ladder attached to every routing
// decision: each unresolved incident walks its escalation path level by
// level until it is resolved, closed, or the ladder runs out.
package escalation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianTriage/pkg/logging"
	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
)

// NotifyFn receives every fired escalation. Called outside the manager
// lock; implementations may block briefly but must not call back into
// the manager.
type NotifyFn func(rec datatypes.EscalationRecord)

type incidentState struct {
	path     []datatypes.EscalationPathEntry
	assigned time.Time
	// timer is the single armed timer, covering path[next]. nil once the
	// ladder is exhausted.
	timer    *time.Timer
	next     int
	lastTeam string
}

// Manager owns all pending escalation timers.
//
// The single mutex serializes Schedule, Cancel, and timer firing, so a
// resolve racing a deadline observes exactly one of the two outcomes:
// either the escalation fired first or the cancel won and the timer is
// a no-op.
//
// Thread Safety: safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	states map[string]*incidentState
	notify NotifyFn
	log    *logging.Logger
	closed bool
}

// NewManager builds an empty manager. notify may be nil.
func NewManager(notify NotifyFn, log *logging.Logger) *Manager {
	return &Manager{
		states: make(map[string]*incidentState),
		notify: notify,
		log:    log,
	}
}

// Schedule arms the timer for the ladder's first level, replacing any
// ladder already pending for the incident. Each fired level arms the
// next, so one incident never holds more than one outstanding timer.
// Deadlines count from the decision's AssignedAt, so a ladder restored
// after a restart fires at its original wall-clock deadlines;
// already-elapsed levels fire immediately, in order.
func (m *Manager) Schedule(dec *datatypes.RoutingDecision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.cancelLocked(dec.IncidentID)
	if len(dec.EscalationPath) == 0 {
		return
	}

	st := &incidentState{
		path:     dec.EscalationPath,
		assigned: dec.AssignedAt,
		lastTeam: dec.TeamID,
	}
	m.states[dec.IncidentID] = st
	m.armLocked(dec.IncidentID, st)
	m.log.Debug("escalation ladder armed",
		"incident_id", dec.IncidentID, "team", dec.TeamID, "levels", len(dec.EscalationPath))
}

// armLocked starts the timer for path[next]. Caller holds the lock.
func (m *Manager) armLocked(incidentID string, st *incidentState) {
	idx := st.next
	entry := st.path[idx]
	remaining := entry.TriggerAfter - time.Since(st.assigned)
	if remaining < 0 {
		remaining = 0
	}
	st.timer = time.AfterFunc(remaining, func() {
		m.fire(incidentID, st, idx)
	})
}

// fire emits one escalation if the incident is still active and the
// ladder has not been cancelled or replaced, then arms the next level.
// The next timer is armed only after notify returns, so escalations for
// one incident reach the callback strictly in level order.
func (m *Manager) fire(incidentID string, st *incidentState, idx int) {
	m.mu.Lock()
	cur, ok := m.states[incidentID]
	if !ok || m.closed || cur != st || st.next != idx {
		m.mu.Unlock()
		return
	}
	entry := st.path[idx]
	from := st.lastTeam
	st.lastTeam = entry.Target
	st.next = idx + 1
	st.timer = nil
	rec := datatypes.EscalationRecord{
		ID:         uuid.NewString(),
		IncidentID: incidentID,
		Level:      entry.Level,
		FromTeam:   from,
		ToTeam:     entry.Target,
		Reason:     "sla deadline elapsed without resolution",
		Timestamp:  time.Now().UTC(),
	}
	notify := m.notify
	m.mu.Unlock()

	m.log.Warn("incident escalated",
		"incident_id", incidentID, "level", entry.Level, "from", from, "to", entry.Target)
	if notify != nil {
		notify(rec)
	}

	m.mu.Lock()
	if cur, ok := m.states[incidentID]; ok && !m.closed && cur == st && st.next < len(st.path) {
		m.armLocked(incidentID, st)
	}
	m.mu.Unlock()
}

// Cancel disarms the incident's ladder. Safe to call for unknown
// incidents; returns whether a ladder was pending.
func (m *Manager) Cancel(incidentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelLocked(incidentID)
}

func (m *Manager) cancelLocked(incidentID string) bool {
	st, ok := m.states[incidentID]
	if !ok {
		return false
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	delete(m.states, incidentID)
	return true
}

// Active returns the number of incidents with a pending ladder.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

// Level returns the last fired escalation level for the incident, 0
// when none has fired, and false when no ladder is pending.
func (m *Manager) Level(incidentID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[incidentID]
	if !ok {
		return 0, false
	}
	if st.next == 0 {
		return 0, true
	}
	return st.path[st.next-1].Level, true
}

// Close disarms every ladder and rejects further scheduling.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id := range m.states {
		m.cancelLocked(id)
	}
}
