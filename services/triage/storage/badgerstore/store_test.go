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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTriage/pkg/logging"
	"github.com/AleutianAI/AleutianTriage/services/triage/classify"
	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id string, status Status) *Record {
	return &Record{
		Incident: datatypes.Incident{
			ID:        id,
			Title:     "PIX payment failed",
			Priority:  datatypes.PriorityCritical,
			Timestamp: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		},
		Classification: &classify.Classification{
			PrimaryCategory: "payment-systems",
			Confidence:      0.82,
			MethodsUsed:     []classify.Method{classify.MethodKeyword, classify.MethodPattern},
		},
		Tags: []string{"payment-systems", "priority-critical", "pix"},
		Decision: &datatypes.RoutingDecision{
			IncidentID:         id,
			TeamID:             "payments-team",
			Priority:           datatypes.PriorityCritical,
			AdjustedSLAMinutes: 5,
		},
		Status: status,
	}
}

func TestSaveAndGetRecord(t *testing.T) {
	s := testStore(t)

	rec := sampleRecord("INC-5001", StatusOpen)
	require.NoError(t, s.SaveRecord(rec))
	assert.False(t, rec.UpdatedAt.IsZero())

	got, err := s.GetRecord("INC-5001")
	require.NoError(t, err)
	assert.Equal(t, rec.Incident.ID, got.Incident.ID)
	assert.Equal(t, "payment-systems", got.Classification.PrimaryCategory)
	assert.Equal(t, rec.Tags, got.Tags)
	assert.Equal(t, StatusOpen, got.Status)

	_, err = s.GetRecord("INC-missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRecordRequiresID(t *testing.T) {
	s := testStore(t)
	require.Error(t, s.SaveRecord(&Record{}))
}

func TestListRecordsFiltersByStatus(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveRecord(sampleRecord("INC-5002", StatusOpen)))
	require.NoError(t, s.SaveRecord(sampleRecord("INC-5003", StatusResolved)))
	require.NoError(t, s.SaveRecord(sampleRecord("INC-5004", StatusOpen)))

	open, err := s.ListRecords(StatusOpen)
	require.NoError(t, err)
	assert.Len(t, open, 2)
	for _, rec := range open {
		assert.Equal(t, StatusOpen, rec.Status)
	}

	all, err := s.ListRecords("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAuditTrailOrderAndDelete(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveRecord(sampleRecord("INC-5005", StatusOpen)))

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, action := range []string{"created", "classified", "routed"} {
		require.NoError(t, s.AppendAudit(AuditEntry{
			IncidentID: "INC-5005",
			Action:     action,
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	trail, err := s.AuditTrail("INC-5005")
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, "created", trail[0].Action)
	assert.Equal(t, "classified", trail[1].Action)
	assert.Equal(t, "routed", trail[2].Action)
	for _, entry := range trail {
		assert.NotEmpty(t, entry.ID, "ids are generated when absent")
	}

	require.NoError(t, s.DeleteRecord("INC-5005"))
	_, err = s.GetRecord("INC-5005")
	require.ErrorIs(t, err, ErrNotFound)
	trail, err = s.AuditTrail("INC-5005")
	require.NoError(t, err)
	assert.Empty(t, trail)
}

func TestCatalogSnapshotRoundTrip(t *testing.T) {
	s := testStore(t)

	_, err := s.LoadCatalog("taxonomy")
	require.ErrorIs(t, err, ErrNotFound)

	snapshot := []byte("taxonomies:\n  - id: payment-systems\n")
	require.NoError(t, s.SaveCatalog("taxonomy", snapshot))

	raw, err := s.LoadCatalog("taxonomy")
	require.NoError(t, err)
	assert.Equal(t, snapshot, raw)

	assert.Error(t, s.SaveCatalog("", snapshot))
}

func TestLogExporterRoutesWarningsToTrail(t *testing.T) {
	s := testStore(t)
	exp := NewLogExporter(s, logging.LevelWarn)

	entries := []logging.Entry{
		{Level: logging.LevelInfo, Message: "ignored", Attrs: map[string]any{"incident_id": "INC-5006"}},
		{Level: logging.LevelWarn, Message: "team saturated", Service: "triaged",
			Attrs: map[string]any{"incident_id": "INC-5006", "team": "payments-team"}},
		{Level: logging.LevelError, Message: "no incident attr", Attrs: map[string]any{"foo": "bar"}},
	}
	for _, e := range entries {
		require.NoError(t, exp.Export(context.Background(), e))
	}

	trail, err := s.AuditTrail("INC-5006")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "log", trail[0].Action)
	assert.Equal(t, "triaged", trail[0].Actor)
	assert.Equal(t, "team saturated", trail[0].Detail["message"])
	assert.Equal(t, "payments-team", trail[0].Detail["team"])
}
