// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package jurisdiction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalog(t *testing.T) {
	assert.Equal(t, []string{"global", "us", "eu", "uk", "in", "ca", "au", "br"}, IDs())

	for _, j := range All() {
		assert.NotEmpty(t, j.Name, j.ID)
		assert.NotEmpty(t, j.Law, j.ID)
		assert.NotEmpty(t, j.PIIExamples, j.ID)
	}
}

func TestLookup(t *testing.T) {
	eu, ok := Lookup(" EU ")
	assert.True(t, ok)
	assert.Equal(t, "GDPR (General Data Protection Regulation)", eu.Law)

	_, ok = Lookup("mars")
	assert.False(t, ok)
}

func TestResolve_UnknownFallsBackToGlobal(t *testing.T) {
	assert.Equal(t, "global", Resolve("atlantis").ID)
	assert.Equal(t, "global", Resolve("").ID)
	assert.Equal(t, "in", Resolve("in").ID)
}

func TestAll_ReturnsCopy(t *testing.T) {
	all := All()
	all[0].Name = "changed"
	assert.Equal(t, "Global / Unspecified", Default().Name)
}

func TestLabel(t *testing.T) {
	br, _ := Lookup("br")
	assert.Equal(t, "Brazil (LGPD)", br.Label())
}

func TestResolveContext(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", DefaultContext},
		{"   ", DefaultContext},
		{"medical", "Medical/Health Records. Strictly redact Patient Names, MRN, DOB, Doctor Names, and Insurance IDs."},
		{"TECH", "Technical Logs or Source Code. Strictly redact API Keys, IP Addresses, Passwords, Database Connection Strings, and Usernames."},
		{"Quarterly board minutes", "Quarterly board minutes"},
	}

	for _, tt := range tests {
		if got := ResolveContext(tt.in); got != tt.want {
			t.Errorf("ResolveContext(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPresets(t *testing.T) {
	ids := make([]string, 0)
	for _, p := range Presets() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"medical", "legal", "sales", "tech", "general"}, ids)
}
