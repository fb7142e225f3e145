// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	data := []byte(`{"[REDACTED_NAME_1]": "Jane"}`)

	if err := AtomicWriteFile(path, data, 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Content mismatch: got %q, want %q", string(content), string(data))
	}
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "deep", "test.txt")

	if err := AtomicWriteFile(path, []byte("test data"), 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("File not created: %v", err)
	}
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")

	if err := AtomicWriteFile(path, []byte("initial"), 0644); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("updated"), 0644); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "updated" {
		t.Errorf("Content = %q, want %q", content, "updated")
	}

	// No temp files left behind
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestAtomicWriteFile_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on Windows")
	}
	path := filepath.Join(t.TempDir(), "secret.json")

	if err := AtomicWriteFile(path, []byte("{}"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

// =============================================================================
// JSON EXTRACTION TESTS
// =============================================================================

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"preamble", `Sure! Here is the JSON: {"a":1}`, `{"a":1}`},
		{"postamble", `{"a":1} Let me know if you need more.`, `{"a":1}`},
		{"markdown fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"nested", `x {"a":{"b":2}} y`, `{"a":{"b":2}}`},
		{"braces inside strings", `{"t":"use {curly} braces"}`, `{"t":"use {curly} braces"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.raw)
			if err != nil {
				t.Fatalf("ExtractJSONObject(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ExtractJSONObject(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestExtractJSONObject_NoObject(t *testing.T) {
	for _, raw := range []string{"", "no json here", "} backwards {", "[1,2,3]", "{ unterminated"} {
		if _, err := ExtractJSONObject(raw); !errors.Is(err, ErrNoJSONObject) {
			t.Errorf("ExtractJSONObject(%q) error = %v, want ErrNoJSONObject", raw, err)
		}
	}
}

func TestDecodeJSONObject(t *testing.T) {
	var out struct {
		RedactedText string            `json:"redactedText"`
		Map          map[string]string `json:"map"`
	}
	raw := "Here you go:\n{\"redactedText\":\"Hi [REDACTED_NAME_1]\",\"map\":{\"[REDACTED_NAME_1]\":\"Bob\"}}\nDone."

	if err := DecodeJSONObject(raw, &out); err != nil {
		t.Fatalf("DecodeJSONObject error: %v", err)
	}
	if out.RedactedText != "Hi [REDACTED_NAME_1]" {
		t.Errorf("RedactedText = %q", out.RedactedText)
	}
	if out.Map["[REDACTED_NAME_1]"] != "Bob" {
		t.Errorf("Map = %v", out.Map)
	}
}

func TestDecodeJSONObject_Malformed(t *testing.T) {
	var out map[string]any
	if err := DecodeJSONObject(`{"a": }`, &out); err == nil {
		t.Error("expected error for malformed JSON span")
	}
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestPrefix(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 3, "hel"},
		{"hello", 5, "hello"},
		{"hello", 10, "hello"},
		{"hello", 0, ""},
		{"héllo", 2, "hé"},
		{"日本語テキスト", 3, "日本語"},
		{"", 4, ""},
	}

	for _, tt := range tests {
		if got := Prefix(tt.in, tt.n); got != tt.want {
			t.Errorf("Prefix(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello world", 8, "hello..."},
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"héllo wörld", 8, "héllo..."},
		{"anything", 0, ""},
	}

	for _, tt := range tests {
		if got := TruncateRunes(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestStringWidth(t *testing.T) {
	if got := StringWidth("abc"); got != 3 {
		t.Errorf("StringWidth(abc) = %d, want 3", got)
	}
	if got := StringWidth("日本"); got != 4 {
		t.Errorf("StringWidth(日本) = %d, want 4", got)
	}
}

func TestTruncateWidth(t *testing.T) {
	if got := TruncateWidth("report.csv", 20); got != "report.csv" {
		t.Errorf("TruncateWidth no-op = %q", got)
	}
	got := TruncateWidth("a-very-long-file-name.csv", 10)
	if StringWidth(got) > 10 {
		t.Errorf("TruncateWidth width = %d, want <= 10", StringWidth(got))
	}
}

func TestRuneLen(t *testing.T) {
	if got := RuneLen("héllo"); got != 5 {
		t.Errorf("RuneLen = %d, want 5", got)
	}
}
