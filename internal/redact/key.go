// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package redact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jeranaias/redactor/internal/util"
)

// ErrInvalidKey is returned when a redaction key cannot be parsed.
var ErrInvalidKey = errors.New("invalid redaction key")

// keyFilePerm keeps exported keys readable by the owner only.
const keyFilePerm = 0600

// ExportKey serializes m as a flat JSON object with 2-space indentation.
// Keys are emitted in sorted order.
func ExportKey(m Map) ([]byte, error) {
	if m == nil {
		m = Map{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode redaction key: %w", err)
	}
	return data, nil
}

// ImportKey parses a key produced by ExportKey. Anything other than a flat
// JSON object of strings fails with ErrInvalidKey.
func ImportKey(data []byte) (Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidKey)
	}
	return m, nil
}

// WriteKeyFile exports m to path with owner-only permissions.
func WriteKeyFile(path string, m Map) error {
	data, err := ExportKey(m)
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(path, data, keyFilePerm)
}

// ReadKeyFile imports a key from path.
func ReadKeyFile(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read redaction key: %w", err)
	}
	return ImportKey(data)
}
