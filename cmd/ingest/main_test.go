package main

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysmon-api/internal/domain"
)

type recordingStore struct {
	domain.MetricStore
	batches [][]domain.MetricSample
}

func (r *recordingStore) Ingest(ctx context.Context, samples []domain.MetricSample) (domain.IngestResult, error) {
	r.batches = append(r.batches, append([]domain.MetricSample(nil), samples...))
	return domain.IngestResult{Accepted: len(samples)}, nil
}

func TestSyntheticSample_IsValid(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		s := syntheticSample(rng, time.Unix(1700000000, 0))
		require.NoError(t, s.Validate())
		assert.Equal(t, s.RAM.Total, s.RAM.Libre+s.RAM.Uso)
	}
}

func TestGenerateAndIngest_Batches(t *testing.T) {
	store := &recordingStore{}
	end := time.Unix(1700000000, 0)

	err := generateAndIngest(context.Background(), store, nil, end.Add(-100*time.Second), end, 10*time.Second, 4)
	require.NoError(t, err)

	require.Len(t, store.batches, 3)
	assert.Len(t, store.batches[0], 4)
	assert.Len(t, store.batches[2], 3)
	assert.Equal(t, end.Unix(), store.batches[2][2].Timestamp)
}
