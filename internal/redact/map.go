// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package redact

import (
	"sort"
	"strings"
)

// =============================================================================
// MAP
// =============================================================================

// Map is the reversible mapping from tag to original plaintext value.
type Map map[string]string

// Collision records a tag that appeared again with a different value.
// The first value is kept.
type Collision struct {
	Tag     string
	Kept    string
	Dropped string
}

// Keys returns the tags of m in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy of m. A nil map clones to an empty one.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge copies the entries of partial into m. A tag already present in m
// keeps its existing value (first write wins); if partial maps it to a
// different value the conflict is returned. Re-merging an identical entry
// is a no-op, so Merge is idempotent.
func (m Map) Merge(partial Map) []Collision {
	var collisions []Collision
	// Sorted so the collision report is deterministic.
	for _, tag := range partial.Keys() {
		value := partial[tag]
		existing, ok := m[tag]
		if !ok {
			m[tag] = value
			continue
		}
		if existing != value {
			collisions = append(collisions, Collision{Tag: tag, Kept: existing, Dropped: value})
		}
	}
	return collisions
}

// MergeAll merges partials in order into a new map.
func MergeAll(partials ...Map) (Map, []Collision) {
	out := make(Map)
	var collisions []Collision
	for _, p := range partials {
		collisions = append(collisions, out.Merge(p)...)
	}
	return out, collisions
}

// =============================================================================
// RESTORE
// =============================================================================

// Restore replaces every tag of m found in text with its original value.
//
// All occurrences of a tag are replaced, but applied counts each distinct
// tag once. Tags absent from text are skipped. Restore never fails; a map
// that matches nothing returns text unchanged with applied == 0.
//
// Tags are processed longest first, then lexically, so a tag that is a
// prefix of another cannot corrupt it and the result is deterministic.
func Restore(text string, m Map) (restored string, applied int) {
	keys := m.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		return len(keys[i]) > len(keys[j])
	})

	restored = text
	for _, tag := range keys {
		if tag == "" || !strings.Contains(restored, tag) {
			continue
		}
		restored = strings.ReplaceAll(restored, tag, m[tag])
		applied++
	}
	return restored, applied
}

// Missing returns the tags present in text that m has no entry for, in
// order of first appearance.
func Missing(text string, m Map) []string {
	var out []string
	for _, tag := range Tags(text) {
		if _, ok := m[tag]; !ok {
			out = append(out, tag)
		}
	}
	return out
}
