// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tagging

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianTriage/services/triage/classify"
	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
)

const (
	// DefaultAutoTagThreshold is the minimum fused confidence a
	// category needs before it becomes a tag on its own.
	DefaultAutoTagThreshold = 0.5

	// DefaultMaxTags caps the tag set per incident. Derivation order
	// doubles as truncation priority: category and priority tags
	// survive, mined keyword tags go first.
	DefaultMaxTags = 10

	// TagManualReview marks incidents that fell back to the default
	// classification and need a human look.
	TagManualReview = "needs-manual-review"

	// TagClassified marks incidents the engine classified with
	// confidence; exactly one of the two workflow tags is present.
	TagClassified = "classified"
)

// Manual tag edit failures callers branch on.
var (
	ErrInvalidTag   = errors.New("invalid tag")
	ErrDuplicateTag = errors.New("tag already present")
	ErrProtectedTag = errors.New("system tag is protected")
	ErrTagLimit     = errors.New("tag limit reached")
)

// Config tunes tag derivation. Zero values select defaults.
type Config struct {
	AutoTagThreshold float64
	MaxTags          int
}

// AncestorFn resolves a category to its taxonomy ancestor path,
// root-first, excluding the category itself. May be nil.
type AncestorFn func(category string) []string

// Deriver turns classifications into tags.
//
// Thread Safety: safe for concurrent use after construction.
type Deriver struct {
	cfg       Config
	calendar  *Calendar
	ancestors AncestorFn
}

// NewDeriver builds a deriver. calendar nil selects UTC business hours.
func NewDeriver(cfg Config, calendar *Calendar, ancestors AncestorFn) *Deriver {
	if cfg.AutoTagThreshold == 0 {
		cfg.AutoTagThreshold = DefaultAutoTagThreshold
	}
	if cfg.MaxTags == 0 {
		cfg.MaxTags = DefaultMaxTags
	}
	if calendar == nil {
		calendar = NewCalendar(nil)
	}
	return &Deriver{cfg: cfg, calendar: calendar, ancestors: ancestors}
}

// Evidence miners: keyword evidence reads `keyword "pix" x2`, pattern
// evidence reads `pattern system-completion-code: "S0C4"`. The keyword
// term and the pattern rule name are both taggable.
var (
	evidenceKeywordRe = regexp.MustCompile(`^keyword "([^"]+)"`)
	evidencePatternRe = regexp.MustCompile(`^pattern (\S+):`)
)

// Derive produces the ordered, deduplicated, capped tag set for an
// incident. cls may be nil or a fallback classification; both yield the
// manual-review tag.
//
// Derivation order, which is also truncation priority:
//  1. needs-manual-review, when the classification fell back
//  2. primary category, its taxonomy ancestors, then the classified
//     workflow tag
//  3. priority tag (priority-<level>)
//  4. temporal tag (business-hours, after-hours, weekend)
//  5. source tag (source-<system>) when a source is present
//  6. qualifying alternative categories
//  7. keyword terms and pattern rule names mined from the primary
//     evidence
func (d *Deriver) Derive(inc *datatypes.Incident, cls *classify.Classification) []string {
	var raw []string

	if cls == nil || cls.Fallback {
		raw = append(raw, TagManualReview)
	}
	if cls != nil {
		raw = append(raw, cls.PrimaryCategory)
		if d.ancestors != nil {
			raw = append(raw, d.ancestors(cls.PrimaryCategory)...)
		}
		if !cls.Fallback {
			raw = append(raw, TagClassified)
		}
	}

	raw = append(raw, "priority-"+string(inc.Priority))
	raw = append(raw, d.calendar.TemporalTag(inc.Timestamp))
	if inc.Source != "" {
		raw = append(raw, "source-"+inc.Source)
	}

	if cls != nil {
		for _, alt := range cls.Alternatives {
			if alt.Confidence >= d.cfg.AutoTagThreshold {
				raw = append(raw, alt.Category)
			}
		}
		for _, ev := range cls.Evidence {
			if m := evidenceKeywordRe.FindStringSubmatch(ev); m != nil {
				raw = append(raw, m[1])
			} else if m := evidencePatternRe.FindStringSubmatch(ev); m != nil {
				raw = append(raw, m[1])
			}
		}
	}

	return d.finalize(raw)
}

// IsSystem reports whether the tag is pipeline-generated state that
// operators may not remove without the override permission.
func IsSystem(tag string) bool {
	switch tag {
	case TagClassified, TagManualReview, TagBusinessHours, TagAfterHours, TagWeekend:
		return true
	}
	return strings.HasPrefix(tag, "priority-") || strings.HasPrefix(tag, "source-")
}

// ApplyManual merges operator edits into an existing tag set. Additions
// are normalized like derived tags; removals win over simultaneous
// additions of the same tag. Edits that would corrupt the set fail:
// unparseable tags, duplicate additions, additions past the cap, and
// removal of a system tag without override.
func (d *Deriver) ApplyManual(current, add, remove []string, override bool) ([]string, error) {
	removed := make(map[string]bool, len(remove))
	for _, r := range remove {
		n := Normalize(r)
		if n == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTag, r)
		}
		if IsSystem(n) && !override {
			return nil, fmt.Errorf("%w: %q", ErrProtectedTag, n)
		}
		removed[n] = true
	}

	seen := make(map[string]bool, len(current)+len(add))
	out := make([]string, 0, len(current)+len(add))
	for _, tag := range current {
		n := Normalize(tag)
		if n == "" || removed[n] || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	for _, tag := range add {
		n := Normalize(tag)
		if n == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTag, tag)
		}
		if removed[n] {
			continue
		}
		if seen[n] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTag, n)
		}
		if len(out) == d.cfg.MaxTags {
			return nil, fmt.Errorf("%w: max %d", ErrTagLimit, d.cfg.MaxTags)
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}

func (d *Deriver) finalize(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, tag := range raw {
		n := Normalize(tag)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
		if len(out) == d.cfg.MaxTags {
			break
		}
	}
	return out
}

var (
	tagInvalidRe = regexp.MustCompile(`[^a-z0-9._-]+`)
	hyphenRunRe  = regexp.MustCompile(`-{2,}`)
)

// maxTagLength bounds a single normalized tag.
const maxTagLength = 40

// Normalize lowercases a tag, collapses whitespace and invalid runs to
// single hyphens, trims leading and trailing separators, and truncates.
// An empty result means the input carried nothing taggable.
func Normalize(tag string) string {
	n := strings.ToLower(strings.TrimSpace(tag))
	n = tagInvalidRe.ReplaceAllString(n, "-")
	n = hyphenRunRe.ReplaceAllString(n, "-")
	n = strings.Trim(n, "-._")
	if len(n) > maxTagLength {
		n = strings.Trim(n[:maxTagLength], "-._")
	}
	return n
}
