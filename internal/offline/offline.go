// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline implements local-only mode: when enabled, nothing leaves
// the machine. The remote summary and leak audit are refused and the
// local backend URL must be a loopback address.
package offline

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrRemoteBlocked is returned when a remote model call is attempted in local-only mode.
	ErrRemoteBlocked = errors.New("remote analysis disabled in local-only mode")

	// ErrNonLocalhost is returned when the local backend is not a loopback address in local-only mode.
	ErrNonLocalhost = errors.New("only localhost/127.0.0.1 backends allowed in local-only mode")

	// ErrInvalidURLScheme is returned when a backend URL is not http or https.
	ErrInvalidURLScheme = errors.New("only http and https schemes are allowed")
)

// =============================================================================
// MODE MANAGEMENT
// =============================================================================

var (
	localOnly   bool
	localOnlyMu sync.RWMutex
)

// SetLocalOnly enables or disables local-only mode globally.
func SetLocalOnly(enabled bool) {
	localOnlyMu.Lock()
	defer localOnlyMu.Unlock()
	localOnly = enabled
}

// IsLocalOnly reports whether local-only mode is enabled.
func IsLocalOnly() bool {
	localOnlyMu.RLock()
	defer localOnlyMu.RUnlock()
	return localOnly
}

// CheckRemoteAllowed returns ErrRemoteBlocked in local-only mode.
func CheckRemoteAllowed() error {
	if IsLocalOnly() {
		return ErrRemoteBlocked
	}
	return nil
}

// =============================================================================
// URL VALIDATION
// =============================================================================

// IsLocalhost checks if a host string refers to the local machine.
// Accepts "localhost", any 127.0.0.0/8 address and IPv6 loopback, with or
// without a port.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))

	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateBackendURL checks a local backend URL. The scheme must be http or
// https. In local-only mode the host must be loopback.
func ValidateBackendURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid backend URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}

	if IsLocalOnly() && !IsLocalhost(parsed.Hostname()) {
		return ErrNonLocalhost
	}
	return nil
}

// BackendWarning returns a warning when the "local" backend is on another
// host, since document text is then sent over the network. Empty when the
// URL is loopback or unparseable.
func BackendWarning(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" || IsLocalhost(parsed.Hostname()) {
		return ""
	}
	return fmt.Sprintf("backend %s is not on this machine; document text will leave it during redaction", parsed.Host)
}

// =============================================================================
// STATUS DISPLAY
// =============================================================================

// StatusIndicator returns "LOCAL ONLY" when the mode is enabled.
func StatusIndicator() string {
	if IsLocalOnly() {
		return "LOCAL ONLY"
	}
	return ""
}
