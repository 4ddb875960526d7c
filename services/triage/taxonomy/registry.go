// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package taxonomy

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Sentinel errors callers branch on.
var (
	ErrNotFound      = errors.New("taxonomy not found")
	ErrDuplicateID   = errors.New("taxonomy id already exists")
	ErrMissingParent = errors.New("parent taxonomy does not exist")
	ErrCycle         = errors.New("taxonomy parent chain contains a cycle")
)

// Registry holds the taxonomy tree plus derived keyword and pattern
// indices. Reads return defensive copies; mutations rebuild both indices.
//
// Thread Safety: safe for concurrent use. Reads take a read lock;
// mutations take the write lock for validation, apply, and rebuild.
type Registry struct {
	mu     sync.RWMutex
	logger *slog.Logger

	nodes    map[string]*Taxonomy
	children map[string][]string

	// keywordIndex maps lowercased keyword -> taxonomy ids, sorted.
	keywordIndex map[string][]string
}

// NewRegistry builds a Registry from a parsed catalog. The catalog is
// validated as a whole: unique ids, resolvable parents, no cycles.
func NewRegistry(catalog *CatalogFile, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		logger:       logger,
		nodes:        make(map[string]*Taxonomy, len(catalog.Taxonomies)),
		children:     make(map[string][]string),
		keywordIndex: make(map[string][]string),
	}

	for i := range catalog.Taxonomies {
		node := catalog.Taxonomies[i]
		if err := validateNode(&node); err != nil {
			return nil, err
		}
		if _, exists := r.nodes[node.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, node.ID)
		}
		r.nodes[node.ID] = node.clone()
	}

	for id, node := range r.nodes {
		if node.Parent == "" {
			continue
		}
		if _, ok := r.nodes[node.Parent]; !ok {
			return nil, fmt.Errorf("%w: %q (referenced by %q)", ErrMissingParent, node.Parent, id)
		}
	}
	if err := r.checkAcyclic(); err != nil {
		return nil, err
	}

	r.rebuildIndexes()
	return r, nil
}

// Count returns the number of taxonomies in the registry.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Get returns a copy of the taxonomy with the given id.
func (r *Registry) Get(id string) (*Taxonomy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return node.clone(), nil
}

// Children returns copies of the direct children of id, sorted by id.
func (r *Registry) Children(id string) ([]*Taxonomy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	ids := r.children[id]
	out := make([]*Taxonomy, 0, len(ids))
	for _, child := range ids {
		out = append(out, r.nodes[child].clone())
	}
	return out, nil
}

// AncestorPath returns the root-to-node path for id, inclusive.
func (r *Registry) AncestorPath(id string) ([]*Taxonomy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	var path []*Taxonomy
	for node != nil {
		path = append(path, node.clone())
		if node.Parent == "" {
			break
		}
		node = r.nodes[node.Parent]
	}
	// Collected leaf-first; reverse to root-first.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// SearchByKeyword returns taxonomies whose keywords match term, exact key
// matches ranked before substring matches, deduplicated by taxonomy id.
func (r *Registry) SearchByKeyword(term string) []*Taxonomy {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []*Taxonomy

	for _, id := range r.keywordIndex[term] {
		if !seen[id] {
			seen[id] = true
			out = append(out, r.nodes[id].clone())
		}
	}

	// Substring pass over the index keys. Key order is made deterministic
	// by sorting; the index is small (tens of keywords).
	keys := make([]string, 0, len(r.keywordIndex))
	for key := range r.keywordIndex {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if key == term || !strings.Contains(key, term) {
			continue
		}
		for _, id := range r.keywordIndex[key] {
			if !seen[id] {
				seen[id] = true
				out = append(out, r.nodes[id].clone())
			}
		}
	}
	return out
}

// SearchByPattern returns all taxonomies whose compiled patterns match the
// given text, sorted by id for deterministic output.
func (r *Registry) SearchByPattern(text string) []*Taxonomy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0)
	for id, node := range r.nodes {
		for _, re := range node.compiled {
			if re.MatchString(text) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)

	out := make([]*Taxonomy, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.nodes[id].clone())
	}
	return out
}

// All returns copies of every taxonomy, sorted by id. Used for snapshot
// persistence and the catalog API.
func (r *Registry) All() []*Taxonomy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.nodes))
	for id := range r.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*Taxonomy, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.nodes[id].clone())
	}
	return out
}

// Add inserts a new taxonomy and rebuilds the indices.
func (r *Registry) Add(node *Taxonomy) error {
	if err := validateNode(node); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[node.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, node.ID)
	}
	if node.Parent != "" {
		if _, ok := r.nodes[node.Parent]; !ok {
			return fmt.Errorf("%w: %q", ErrMissingParent, node.Parent)
		}
	}

	stored := node.clone()
	if err := stored.compilePatterns(); err != nil {
		return err
	}
	r.nodes[node.ID] = stored
	r.rebuildIndexes()

	r.logger.Info("taxonomy added", "taxonomy_id", node.ID, "parent", node.Parent)
	return nil
}

// Update replaces an existing taxonomy and rebuilds the indices. Parent
// changes are validated against missing parents and cycles.
func (r *Registry) Update(node *Taxonomy) error {
	if err := validateNode(node); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous, exists := r.nodes[node.ID]
	if !exists {
		return fmt.Errorf("%w: %q", ErrNotFound, node.ID)
	}
	if node.Parent != "" {
		if _, ok := r.nodes[node.Parent]; !ok {
			return fmt.Errorf("%w: %q", ErrMissingParent, node.Parent)
		}
	}

	stored := node.clone()
	if err := stored.compilePatterns(); err != nil {
		return err
	}
	r.nodes[node.ID] = stored
	if err := r.checkAcyclic(); err != nil {
		r.nodes[node.ID] = previous
		return err
	}
	r.rebuildIndexes()

	r.logger.Info("taxonomy updated", "taxonomy_id", node.ID)
	return nil
}

// Remove deletes a taxonomy, re-parenting its children to the removed
// node's parent, then rebuilds the indices.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, exists := r.nodes[id]
	if !exists {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	for _, childID := range r.children[id] {
		child := r.nodes[childID]
		child.Parent = node.Parent
		if node.Parent == "" {
			child.Level = 1
		}
	}
	delete(r.nodes, id)
	r.rebuildIndexes()

	r.logger.Info("taxonomy removed", "taxonomy_id", id, "orphans_reparented_to", node.Parent)
	return nil
}

// rebuildIndexes recomputes the children map and keyword index. Callers
// must hold the write lock.
func (r *Registry) rebuildIndexes() {
	r.children = make(map[string][]string)
	r.keywordIndex = make(map[string][]string)

	for id, node := range r.nodes {
		if node.Parent != "" {
			r.children[node.Parent] = append(r.children[node.Parent], id)
		}
		for _, kw := range node.Keywords {
			key := strings.ToLower(strings.TrimSpace(kw))
			if key == "" {
				continue
			}
			r.keywordIndex[key] = append(r.keywordIndex[key], id)
		}
	}
	for parent := range r.children {
		sort.Strings(r.children[parent])
	}
	for key := range r.keywordIndex {
		sort.Strings(r.keywordIndex[key])
	}
}

// checkAcyclic walks every parent chain. Callers must hold a lock.
func (r *Registry) checkAcyclic() error {
	for id := range r.nodes {
		seen := map[string]bool{id: true}
		current := r.nodes[id]
		for current.Parent != "" {
			if seen[current.Parent] {
				return fmt.Errorf("%w: via %q", ErrCycle, id)
			}
			seen[current.Parent] = true
			next, ok := r.nodes[current.Parent]
			if !ok {
				break
			}
			current = next
		}
	}
	return nil
}

func validateNode(node *Taxonomy) error {
	if node == nil {
		return errors.New("taxonomy is nil")
	}
	if node.ID == "" {
		return errors.New("taxonomy id is required")
	}
	if node.Name == "" {
		return fmt.Errorf("taxonomy %q: name is required", node.ID)
	}
	if node.Level < 1 {
		return fmt.Errorf("taxonomy %q: level must be >= 1, got %d", node.ID, node.Level)
	}
	if !node.Priority.Valid() {
		return fmt.Errorf("taxonomy %q: invalid priority %q", node.ID, node.Priority)
	}
	return nil
}
