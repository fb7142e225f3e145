// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"testing"
)

// =============================================================================
// MODE MANAGEMENT TESTS
// =============================================================================

func TestSetLocalOnly(t *testing.T) {
	original := IsLocalOnly()
	defer SetLocalOnly(original)

	SetLocalOnly(true)
	if !IsLocalOnly() {
		t.Error("IsLocalOnly should return true after SetLocalOnly(true)")
	}

	SetLocalOnly(false)
	if IsLocalOnly() {
		t.Error("IsLocalOnly should return false after SetLocalOnly(false)")
	}
}

func TestIsLocalOnly_ThreadSafe(t *testing.T) {
	original := IsLocalOnly()
	defer SetLocalOnly(original)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				SetLocalOnly(j%2 == 0)
				_ = IsLocalOnly()
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestCheckRemoteAllowed(t *testing.T) {
	original := IsLocalOnly()
	defer SetLocalOnly(original)

	SetLocalOnly(false)
	if err := CheckRemoteAllowed(); err != nil {
		t.Errorf("CheckRemoteAllowed() = %v, want nil", err)
	}

	SetLocalOnly(true)
	if err := CheckRemoteAllowed(); !errors.Is(err, ErrRemoteBlocked) {
		t.Errorf("CheckRemoteAllowed() = %v, want ErrRemoteBlocked", err)
	}
}

// =============================================================================
// LOCALHOST DETECTION TESTS
// =============================================================================

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host   string
		expect bool
	}{
		{"localhost", true},
		{"LOCALHOST", true},
		{"127.0.0.1", true},
		{"127.0.0.1:11434", true},
		{"127.1.2.3", true},
		{"::1", true},
		{"[::1]", true},
		{"[::1]:11434", true},

		{"ollama.internal", false},
		{"192.168.1.1", false},
		{"10.0.0.1", false},
		{"0.0.0.0", false},
		{"localhost.evil.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := IsLocalhost(tt.host); got != tt.expect {
				t.Errorf("IsLocalhost(%q) = %v, want %v", tt.host, got, tt.expect)
			}
		})
	}
}

// =============================================================================
// URL VALIDATION TESTS
// =============================================================================

func TestValidateBackendURL(t *testing.T) {
	original := IsLocalOnly()
	defer SetLocalOnly(original)

	tests := []struct {
		name      string
		url       string
		localOnly bool
		wantErr   error
	}{
		{"loopback online", "http://localhost:11434", false, nil},
		{"remote host online", "http://gpu-box:11434", false, nil},
		{"loopback local-only", "http://127.0.0.1:11434", true, nil},
		{"remote host local-only", "http://gpu-box:11434", true, ErrNonLocalhost},
		{"file scheme", "file:///etc/passwd", false, ErrInvalidURLScheme},
		{"no scheme", "localhost:11434", false, ErrInvalidURLScheme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLocalOnly(tt.localOnly)
			err := ValidateBackendURL(tt.url)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateBackendURL(%q) = %v, want nil", tt.url, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateBackendURL(%q) = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestBackendWarning(t *testing.T) {
	if w := BackendWarning("http://localhost:11434"); w != "" {
		t.Errorf("BackendWarning(loopback) = %q, want empty", w)
	}
	if w := BackendWarning("http://gpu-box:11434"); w == "" {
		t.Error("BackendWarning(remote host) should warn")
	}
	if w := BackendWarning("::not a url"); w != "" {
		t.Errorf("BackendWarning(invalid) = %q, want empty", w)
	}
}

func TestStatusIndicator(t *testing.T) {
	original := IsLocalOnly()
	defer SetLocalOnly(original)

	SetLocalOnly(true)
	if got := StatusIndicator(); got != "LOCAL ONLY" {
		t.Errorf("StatusIndicator() = %q, want %q", got, "LOCAL ONLY")
	}
	SetLocalOnly(false)
	if got := StatusIndicator(); got != "" {
		t.Errorf("StatusIndicator() = %q, want empty", got)
	}
}
