// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package redact

import (
	"regexp"
	"strconv"
	"strings"
)

// tagPattern matches [REDACTED_<CATEGORY>] and [REDACTED_<CATEGORY>_<N>].
var tagPattern = regexp.MustCompile(`\[REDACTED_[A-Z]+(?:_[0-9]+)?]`)

// fullTagPattern anchors tagPattern to a whole string.
var fullTagPattern = regexp.MustCompile(`^\[REDACTED_([A-Z]+)(?:_([0-9]+))?]$`)

// Tag is a redaction placeholder such as [REDACTED_EMAIL_1].
type Tag string

// NewTag builds a tag for category and index. An index of zero or less
// yields the unnumbered form.
func NewTag(category string, index int) Tag {
	category = strings.ToUpper(category)
	if index <= 0 {
		return Tag("[REDACTED_" + category + "]")
	}
	return Tag("[REDACTED_" + category + "_" + strconv.Itoa(index) + "]")
}

// IsTag reports whether s is exactly one well-formed tag.
func IsTag(s string) bool {
	return fullTagPattern.MatchString(s)
}

// Category returns the category part of the tag, or "" if malformed.
func (t Tag) Category() string {
	m := fullTagPattern.FindStringSubmatch(string(t))
	if m == nil {
		return ""
	}
	return m[1]
}

// Index returns the numeric suffix of the tag, or 0 if it has none.
func (t Tag) Index() int {
	m := fullTagPattern.FindStringSubmatch(string(t))
	if m == nil || m[2] == "" {
		return 0
	}
	n, _ := strconv.Atoi(m[2])
	return n
}

// Count returns the number of tag occurrences in text. This is the PII
// count shown in session statistics.
func Count(text string) int {
	return len(tagPattern.FindAllStringIndex(text, -1))
}

// Tags returns the distinct tags in text in order of first appearance.
func Tags(text string) []string {
	matches := tagPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// CountByCategory tallies tag occurrences in text per category.
func CountByCategory(text string) map[string]int {
	counts := make(map[string]int)
	for _, m := range tagPattern.FindAllString(text, -1) {
		counts[Tag(m).Category()]++
	}
	return counts
}
