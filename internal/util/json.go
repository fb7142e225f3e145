// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSONObject is returned when a response contains no {...} span.
var ErrNoJSONObject = errors.New("no JSON object found in response")

// ExtractJSONObject returns the span from the first '{' to the last '}' of
// raw. Language models asked for JSON often wrap the payload in prose or
// markdown fences; everything outside the outermost braces is discarded.
//
// The returned span is not validated. Use DecodeJSONObject to extract and
// unmarshal in one step.
func ExtractJSONObject(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end < start {
		return "", ErrNoJSONObject
	}
	return raw[start : end+1], nil
}

// DecodeJSONObject extracts the outermost JSON object from raw and decodes
// it into v.
func DecodeJSONObject(raw string, v any) error {
	span, err := ExtractJSONObject(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(span), v)
}
