// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badgerstore persists triage state in embedded BadgerDB:
// the full record of every triaged incident plus an append-only audit
// trail. Low-latency local storage keeps the pipeline synchronous; the
// daemon reloads open records on startup to re-arm escalation ladders.
package badgerstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianTriage/services/triage/classify"
	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
)

// ErrNotFound is returned when no record exists for an incident id.
var ErrNotFound = errors.New("record not found")

// Status is the lifecycle state of a triaged incident.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
	StatusClosed   Status = "closed"
)

// Record is the persisted snapshot of one triaged incident.
type Record struct {
	Incident       datatypes.Incident           `json:"incident"`
	Classification *classify.Classification     `json:"classification,omitempty"`
	Tags           []string                     `json:"tags,omitempty"`
	Decision       *datatypes.RoutingDecision   `json:"decision,omitempty"`
	Status         Status                       `json:"status"`
	Escalations    []datatypes.EscalationRecord `json:"escalations,omitempty"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}

// AuditEntry is one immutable line in an incident's audit trail.
type AuditEntry struct {
	ID         string         `json:"id"`
	IncidentID string         `json:"incident_id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Config holds configuration for the store.
type Config struct {
	// Dir is the directory for BadgerDB files. Ignored when InMemory.
	Dir string

	// InMemory enables in-memory mode; used by tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// GCInterval is how often to run value log garbage collection.
	// 0 disables GC.
	GCInterval time.Duration

	// Logger receives BadgerDB's internal logging. nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable writes and
// periodic value log GC.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir, SyncWrites: true, GCInterval: 5 * time.Minute}
}

// InMemoryConfig returns a throwaway configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

const (
	recordPrefix  = "incident/"
	auditPrefix   = "audit/"
	catalogPrefix = "catalog/"
)

// Store is the BadgerDB-backed persistence layer.
//
// Thread Safety: safe for concurrent use; BadgerDB transactions give
// each operation a consistent view.
type Store struct {
	db   *badger.DB
	stop chan struct{}
	done chan struct{}
}

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("dir is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	s := &Store{db: db, stop: make(chan struct{}), done: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.gcLoop(cfg.GCInterval)
	} else {
		close(s.done)
	}
	return s, nil
}

// SaveRecord upserts the incident record, stamping UpdatedAt.
func (s *Store) SaveRecord(rec *Record) error {
	if rec.Incident.ID == "" {
		return errors.New("record without incident id")
	}
	rec.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.Incident.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordPrefix+rec.Incident.ID), raw)
	})
}

// GetRecord loads one incident record.
func (s *Store) GetRecord(incidentID string) (*Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordPrefix + incidentID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, incidentID)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecords returns every stored record, newest update first. status
// "" lists all; otherwise only records in that state.
func (s *Store) ListRecords(status Status) ([]*Record, error) {
	var out []*Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(recordPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			if status != "" && rec.Status != status {
				continue
			}
			out = append(out, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// DeleteRecord removes a record and its audit trail.
func (s *Store) DeleteRecord(incidentID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(recordPrefix + incidentID)); err != nil {
			return err
		}
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		prefix := []byte(auditPrefix + incidentID + "/")
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendAudit writes one audit line. ID and Timestamp are filled when
// empty. Keys embed a nanosecond timestamp so the trail iterates in
// write order.
func (s *Store) AppendAudit(entry AuditEntry) error {
	if entry.IncidentID == "" {
		return errors.New("audit entry without incident id")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	key := fmt.Sprintf("%s%s/%020d/%s", auditPrefix, entry.IncidentID, entry.Timestamp.UnixNano(), entry.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
}

// AuditTrail returns the incident's audit entries in write order.
func (s *Store) AuditTrail(incidentID string) ([]AuditEntry, error) {
	var out []AuditEntry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(auditPrefix + incidentID + "/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry AuditEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			out = append(out, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveCatalog stores a catalog snapshot under its name. Snapshots are
// written after live catalog mutations so edits survive restarts.
func (s *Store) SaveCatalog(name string, raw []byte) error {
	if name == "" {
		return errors.New("catalog snapshot without a name")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(catalogPrefix+name), raw)
	})
}

// LoadCatalog returns the named catalog snapshot, or ErrNotFound when
// none has been written.
func (s *Store) LoadCatalog(name string) ([]byte, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(catalogPrefix + name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: catalog %s", ErrNotFound, name)
		}
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	close(s.stop)
	<-s.done
	return s.db.Close()
}

func (s *Store) gcLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			// Run until a pass reclaims nothing.
			for s.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
