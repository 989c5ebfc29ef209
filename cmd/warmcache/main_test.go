package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-recommender/internal/types"
)

type recordingWarmer struct {
	mu      sync.Mutex
	batches [][]string
	failOn  string
}

func (w *recordingWarmer) Warm(_ context.Context, texts []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, texts)
	for _, t := range texts {
		if w.failOn != "" && strings.Contains(t, w.failOn) {
			return errors.New("embedding service down")
		}
	}
	return nil
}

func jobs(titles ...string) []types.JobRecord {
	out := make([]types.JobRecord, len(titles))
	for i, title := range titles {
		out[i] = types.JobRecord{ID: int64(i + 1), Title: title}
	}
	return out
}

func TestWarmJobVectorsBatchesAndDedupes(t *testing.T) {
	w := &recordingWarmer{}
	n, err := warmJobVectors(context.Background(), w, jobs("Go developer", "Nurse", "Go developer", "Accountant", ""), 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, w.batches, 2)
}

func TestWarmJobVectorsKeepsGoingAfterFailure(t *testing.T) {
	w := &recordingWarmer{failOn: "nurse"}
	n, err := warmJobVectors(context.Background(), w, jobs("Go developer", "Nurse", "Accountant"), 1, 1)
	assert.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, w.batches, 3)
}
