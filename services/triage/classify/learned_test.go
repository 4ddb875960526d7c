// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTriage/pkg/logging"
)

const testArtifact = `{
  "version": "2026-02-01",
  "algorithm": "linear",
  "classes": {
    "payment-systems": {"prior": 0.1, "terms": {"pix": 1.5, "payment": 0.8}},
    "mainframe": {"prior": 0.05, "terms": {"abend": 1.2, "batch": 0.6}}
  }
}`

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestModelStoreLoadAndPredict(t *testing.T) {
	store := NewModelStore()
	assert.Empty(t, store.Version())

	version, err := store.Load(writeArtifact(t, testArtifact))
	require.NoError(t, err)
	assert.Equal(t, "2026-02-01", version)
	assert.Equal(t, "2026-02-01", store.Version())

	preds, err := store.Predict(context.Background(), "pix payment stuck in queue")
	require.NoError(t, err)
	require.NotEmpty(t, preds)
	assert.Equal(t, "payment-systems", preds[0].Category)
	// s = 0.1 + 1.5 + 0.8 = 2.4, squashed to 2.4/3.4.
	assert.InDelta(t, 2.4/3.4, preds[0].Confidence, 1e-9)
}

func TestModelStoreBadArtifactKeepsPrevious(t *testing.T) {
	store := NewModelStore()
	_, err := store.Load(writeArtifact(t, testArtifact))
	require.NoError(t, err)

	_, err = store.Load(writeArtifact(t, `{"not": "a model"`))
	require.Error(t, err)
	assert.Equal(t, "2026-02-01", store.Version(), "failed load must not clobber the active model")

	_, err = store.Load(writeArtifact(t, `{"algorithm": "linear", "classes": {}}`))
	require.Error(t, err, "artifact without a version is rejected")
}

func TestModelStorePredictWithoutModel(t *testing.T) {
	store := NewModelStore()
	preds, err := store.Predict(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, preds)
}

func TestLearnedScorerSkipsWhenNoModel(t *testing.T) {
	log := logging.New(logging.Config{Quiet: true})
	s := NewLearnedScorer(NewModelStore(), log)

	cands, err := s.Score(context.Background(), "pix payment failed", IncidentContext{})
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestLearnedScorerTagsCandidatesWithVersion(t *testing.T) {
	log := logging.New(logging.Config{Quiet: true})
	store := NewModelStore()
	_, err := store.Load(writeArtifact(t, testArtifact))
	require.NoError(t, err)

	s := NewLearnedScorer(store, log)
	cands, err := s.Score(context.Background(), "nightly batch abend", IncidentContext{})
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	assert.Equal(t, MethodLearned, cands[0].Method)
	assert.Contains(t, cands[0].Evidence[0], "2026-02-01")
}
