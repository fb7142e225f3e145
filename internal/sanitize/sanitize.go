// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sanitize

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jeranaias/redactor/internal/chunk"
	"github.com/jeranaias/redactor/internal/jurisdiction"
	"github.com/jeranaias/redactor/internal/logging"
	"github.com/jeranaias/redactor/internal/ollama"
	"github.com/jeranaias/redactor/internal/redact"
	"github.com/jeranaias/redactor/internal/util"
)

// =============================================================================
// TYPES
// =============================================================================

// Generator runs one JSON-mode prompt against the local backend and returns
// the raw response text. *ollama.Client implements it.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, opts *ollama.Options) (string, error)
}

// Options tune the chunk loop and the generation parameters.
type Options struct {
	// ChunkLimit is the per-chunk character budget (default: 12000)
	ChunkLimit int

	// Temperature is kept low so repeated runs redact alike (default: 0.1)
	Temperature float64

	// NumCtx is the model context window requested per chunk (default: 32768)
	NumCtx int
}

// DefaultOptions returns the default sanitizer options.
func DefaultOptions() Options {
	return Options{
		ChunkLimit:  chunk.DefaultLimit,
		Temperature: 0.1,
		NumCtx:      32768,
	}
}

// Request describes one document to sanitize.
type Request struct {
	Text         string
	Context      string
	Jurisdiction jurisdiction.Jurisdiction
}

// ProgressFunc receives (chunks processed, total chunks).
type ProgressFunc func(current, total int)

// ChunkFailure records a chunk whose original text was kept because the
// model call or its response failed.
type ChunkFailure struct {
	Index int
	Err   error
}

// Result is the outcome of sanitizing a document.
type Result struct {
	// Text is the concatenation of per-chunk outputs in chunk order.
	Text string

	// Map is the merged document-wide redaction map.
	Map redact.Map

	// Chunks is the number of chunks processed.
	Chunks int

	// Failures lists chunks that fell back to their original text.
	Failures []ChunkFailure

	// Collisions lists tags a later chunk tried to rebind.
	Collisions []redact.Collision
}

// Degraded reports whether any chunk fell back to unredacted text.
func (r *Result) Degraded() bool {
	return len(r.Failures) > 0
}

// FailedChunks returns the zero-based indices of failed chunks.
func (r *Result) FailedChunks() []int {
	out := make([]int, len(r.Failures))
	for i, f := range r.Failures {
		out[i] = f.Index
	}
	return out
}

// =============================================================================
// SANITIZER
// =============================================================================

// Sanitizer drives the chunked redaction loop against a local model.
type Sanitizer struct {
	gen    Generator
	opts   Options
	logger logging.Logger
}

// New creates a Sanitizer. Zero option fields take defaults; a nil logger
// uses the package default.
func New(gen Generator, opts Options, logger logging.Logger) *Sanitizer {
	def := DefaultOptions()
	if opts.ChunkLimit <= 0 {
		opts.ChunkLimit = def.ChunkLimit
	}
	if opts.Temperature <= 0 {
		opts.Temperature = def.Temperature
	}
	if opts.NumCtx <= 0 {
		opts.NumCtx = def.NumCtx
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sanitizer{gen: gen, opts: opts, logger: logger}
}

// Options returns the effective options.
func (s *Sanitizer) Options() Options {
	return s.opts
}

// Sanitize splits req.Text into chunks and redacts them one at a time, in
// order, with exactly one request in flight.
//
// A chunk whose call or response fails contributes its original text and
// is recorded in Result.Failures; the loop always continues. The only
// error returned is cancellation of ctx.
//
// progress, if non-nil, is called once per chunk with (i+1, total) in order.
// Calls are delivered on a separate goroutine so a slow callback never
// delays the next chunk; all calls have been made when Sanitize returns.
func (s *Sanitizer) Sanitize(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	chunks := chunk.Split(req.Text, s.opts.ChunkLimit)
	total := len(chunks)

	pump := startProgress(progress, total)
	defer pump.stop()

	var out strings.Builder
	out.Grow(len(req.Text))
	result := &Result{Map: make(redact.Map), Chunks: total}

	for i, text := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		redacted, partial, err := s.sanitizeChunk(ctx, req, text, i, total)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			s.logger.Warn("chunk sanitization failed, keeping original text",
				"chunk", i+1, "total", total, "chars", util.RuneLen(text), "error", err)
			result.Failures = append(result.Failures, ChunkFailure{Index: i, Err: err})
			out.WriteString(text)
		default:
			out.WriteString(redacted)
			for _, c := range result.Map.Merge(partial) {
				s.logger.Warn("duplicate redaction tag, keeping first value",
					"tag", c.Tag, "chunk", i+1, "kept_len", util.RuneLen(c.Kept), "dropped_len", util.RuneLen(c.Dropped))
				result.Collisions = append(result.Collisions, c)
			}
			s.logger.Debug("chunk sanitized", "chunk", i+1, "total", total, "tags", len(partial))
		}

		pump.send(i+1, total)
	}

	result.Text = out.String()
	return result, nil
}

// sanitizeChunk performs one model round trip for one chunk.
func (s *Sanitizer) sanitizeChunk(ctx context.Context, req Request, text string, index, total int) (string, redact.Map, error) {
	prompt := BuildPrompt(req.Context, req.Jurisdiction, index, total) + text

	raw, err := s.gen.GenerateJSON(ctx, prompt, &ollama.Options{
		Temperature: s.opts.Temperature,
		NumCtx:      s.opts.NumCtx,
	})
	if err != nil {
		return "", nil, err
	}
	return ParseResponse(raw)
}

// chunkResponse is the JSON envelope the prompt asks for.
type chunkResponse struct {
	RedactedText string         `json:"redactedText"`
	Map          map[string]any `json:"map"`
}

// ParseResponse decodes a model response for a chunk. A missing or empty
// redactedText decodes as "" and the map is still returned.
//
// Map values that are not strings are converted when they are scalars and
// dropped otherwise; models sometimes emit numbers for IDs or amounts.
func ParseResponse(raw string) (string, redact.Map, error) {
	var resp chunkResponse
	if err := util.DecodeJSONObject(raw, &resp); err != nil {
		return "", nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	m := make(redact.Map, len(resp.Map))
	for tag, v := range resp.Map {
		if tag == "" {
			continue
		}
		switch val := v.(type) {
		case string:
			m[tag] = val
		case float64:
			m[tag] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			m[tag] = strconv.FormatBool(val)
		}
	}
	return resp.RedactedText, m, nil
}

// =============================================================================
// PROGRESS
// =============================================================================

// progressPump delivers progress callbacks in order on its own goroutine.
// The channel holds one slot per chunk so send never blocks.
type progressPump struct {
	ch   chan [2]int
	done chan struct{}
}

func startProgress(fn ProgressFunc, total int) *progressPump {
	if fn == nil {
		return nil
	}
	p := &progressPump{
		ch:   make(chan [2]int, total),
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		for ev := range p.ch {
			fn(ev[0], ev[1])
		}
	}()
	return p
}

func (p *progressPump) send(current, total int) {
	if p == nil {
		return
	}
	p.ch <- [2]int{current, total}
}

// stop closes the queue and waits for outstanding callbacks.
func (p *progressPump) stop() {
	if p == nil {
		return
	}
	close(p.ch)
	<-p.done
}
