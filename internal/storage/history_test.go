// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestRecordAndGet(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()
	score := 87

	rec, err := h.Record(ctx, Record{
		FileName:       "intake.csv",
		Jurisdiction:   "us",
		RiskLevel:      "High",
		OriginalLength: 1200,
		RedactedLength: 1100,
		PIICount:       9,
		Chunks:         2,
		FailedChunks:   1,
		RemoteUsed:     true,
		AuditScore:     &score,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := h.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "intake.csv", got.FileName)
	assert.Equal(t, "High", got.RiskLevel)
	assert.Equal(t, 9, got.PIICount)
	assert.Equal(t, 1, got.FailedChunks)
	assert.True(t, got.RemoteUsed)
	require.NotNil(t, got.AuditScore)
	assert.Equal(t, 87, *got.AuditScore)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func TestRecord_NoAuditScore(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	rec, err := h.Record(ctx, Record{FileName: "a.txt", RiskLevel: "Low"})
	require.NoError(t, err)

	got, err := h.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AuditScore)
	assert.False(t, got.RemoteUsed)
}

func TestList_NewestFirst(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"first.txt", "second.txt", "third.txt"} {
		_, err := h.Record(ctx, Record{FileName: name, RiskLevel: "Low", CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}

	all, err := h.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third.txt", all[0].FileName)
	assert.Equal(t, "first.txt", all[2].FileName)

	two, err := h.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, "second.txt", two[1].FileName)
}

func TestGetAndDelete_NotFound(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	_, err := h.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, h.Delete(ctx, "missing"), ErrNotFound)
}

func TestDelete(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	rec, err := h.Record(ctx, Record{FileName: "a.txt", RiskLevel: "Low"})
	require.NoError(t, err)
	require.NoError(t, h.Delete(ctx, rec.ID))

	n, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMaxRecordsPrunesOldest(t *testing.T) {
	h := openTestHistory(t)
	h.MaxRecords = 2
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_, err := h.Record(ctx, Record{FileName: "f.txt", RiskLevel: "Low", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	n, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := h.List(ctx, 0)
	require.NoError(t, err)
	assert.True(t, list[0].CreatedAt.Equal(base.Add(3*time.Minute)))
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	h, err := Open(path)
	require.NoError(t, err)
	_, err = h.Record(ctx, Record{FileName: "kept.txt", RiskLevel: "Medium"})
	require.NoError(t, err)
	require.NoError(t, h.Close())

	h, err = Open(path)
	require.NoError(t, err)
	defer h.Close()

	list, err := h.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "kept.txt", list[0].FileName)
}
