// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badgerstore

import (
	"context"

	"github.com/AleutianAI/AleutianTriage/pkg/logging"
)

// LogExporter persists warning-and-above log entries that carry an
// incident id into the incident's audit trail, so operational noise
// around an incident survives alongside its lifecycle actions.
type LogExporter struct {
	store    *Store
	minLevel logging.Level
}

var _ logging.AuditExporter = (*LogExporter)(nil)

// NewLogExporter builds an exporter writing to store. Entries below
// minLevel or without an incident_id attribute are skipped.
func NewLogExporter(store *Store, minLevel logging.Level) *LogExporter {
	return &LogExporter{store: store, minLevel: minLevel}
}

func (e *LogExporter) Export(_ context.Context, entry logging.Entry) error {
	if entry.Level < e.minLevel {
		return nil
	}
	incidentID, ok := entry.Attrs["incident_id"].(string)
	if !ok || incidentID == "" {
		return nil
	}
	detail := map[string]any{"level": entry.Level.String(), "message": entry.Message}
	for k, v := range entry.Attrs {
		if k != "incident_id" {
			detail[k] = v
		}
	}
	return e.store.AppendAudit(AuditEntry{
		IncidentID: incidentID,
		Action:     "log",
		Actor:      entry.Service,
		Detail:     detail,
		Timestamp:  entry.Timestamp,
	})
}

func (e *LogExporter) Flush(context.Context) error { return nil }

func (e *LogExporter) Close() error { return nil }
