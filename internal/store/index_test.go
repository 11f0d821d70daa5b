// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store_test contains the test suite for the store package. This file
// exercises the in-memory cosine index: staged-write visibility, vector
// validation, and result ordering.
package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func behavioral(sceneId string, vector []float32) *model.Embedding {
	return &model.Embedding{
		SceneId:  sceneId,
		CameraId: model.SceneLevelCamera,
		Space:    model.SpaceBehavioral,
		Vector:   vector,
		Norm:     store.Norm(vector),
	}
}

// TestMemoryIndexEmptySearch verifies the empty-index boundary: a search
// returns an empty sequence, never an error.
func TestMemoryIndexEmptySearch(t *testing.T) {
	idx := store.NewMemoryIndex(model.SpaceBehavioral, 4)

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

// TestMemoryIndexFlushVisibility verifies the staged-batch contract: entries
// staged by Upsert stay invisible to searches until Flush publishes the
// whole batch at once.
func TestMemoryIndexFlushVisibility(t *testing.T) {
	ctx := context.Background()
	idx := store.NewMemoryIndex(model.SpaceBehavioral, 4)

	require.NoError(t, idx.Upsert(ctx, behavioral("scene-a", []float32{1, 0, 0, 0})))
	require.NoError(t, idx.Upsert(ctx, behavioral("scene-b", []float32{0, 1, 0, 0})))

	hits, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "staged entries must not be visible before Flush")
	assert.Equal(t, 0, idx.Len())

	idx.Flush()

	hits, err = idx.Search(ctx, []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	assert.Equal(t, 2, idx.Len())
}

// TestMemoryIndexInvalidVector verifies that dimension mismatches are
// rejected with the sentinel on both the write and the read path.
func TestMemoryIndexInvalidVector(t *testing.T) {
	ctx := context.Background()
	idx := store.NewMemoryIndex(model.SpaceBehavioral, 4)

	err := idx.Upsert(ctx, behavioral("scene-a", []float32{1, 0}))
	assert.True(t, errors.Is(err, store.ErrInvalidVector))

	_, err = idx.Search(ctx, []float32{1, 0}, 10)
	assert.True(t, errors.Is(err, store.ErrInvalidVector))
}

// TestMemoryIndexOrdering verifies descending-score ordering with the
// deterministic tie-break, and top-k truncation.
func TestMemoryIndexOrdering(t *testing.T) {
	ctx := context.Background()
	idx := store.NewMemoryIndex(model.SpaceBehavioral, 4)

	require.NoError(t, idx.Upsert(ctx,
		behavioral("far", []float32{0, 1, 0, 0}),
		behavioral("near", []float32{1, 0.1, 0, 0}),
		behavioral("exact", []float32{2, 0, 0, 0}), // Same direction as the query, so cosine 1 despite the magnitude.
	))
	idx.Flush()

	hits, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "exact", hits[0].SceneId)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, "near", hits[1].SceneId)
	assert.Equal(t, "far", hits[2].SceneId)
	assert.InDelta(t, 0.0, hits[2].Score, 1e-9)

	// Equal scores fall back to ascending scene id.
	tie := store.NewMemoryIndex(model.SpaceBehavioral, 4)
	require.NoError(t, tie.Upsert(ctx,
		behavioral("zulu", []float32{1, 0, 0, 0}),
		behavioral("alpha", []float32{1, 0, 0, 0}),
	))
	tie.Flush()
	hits, err = tie.Search(ctx, []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "alpha", hits[0].SceneId)
	assert.Equal(t, "zulu", hits[1].SceneId)

	// k truncates.
	hits, err = idx.Search(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

// TestMemoryIndexOverwrite verifies that re-upserting the same (scene,
// camera) key replaces the entry instead of duplicating it.
func TestMemoryIndexOverwrite(t *testing.T) {
	ctx := context.Background()
	idx := store.NewMemoryIndex(model.SpaceBehavioral, 4)

	require.NoError(t, idx.Upsert(ctx, behavioral("scene-a", []float32{1, 0, 0, 0})))
	idx.Flush()
	require.NoError(t, idx.Upsert(ctx, behavioral("scene-a", []float32{0, 1, 0, 0})))
	idx.Flush()

	assert.Equal(t, 1, idx.Len())
	hits, err := idx.Search(ctx, []float32{0, 1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

// TestMemoryIndexConcurrentSearchAndFlush hammers the index with parallel
// searches and length checks while batches are staged and published,
// verifying the publication contract: a reader observes whole batches or
// nothing, never part of one, and results stay ordered throughout.
func TestMemoryIndexConcurrentSearchAndFlush(t *testing.T) {
	const (
		batches   = 50
		batchSize = 3
		readers   = 4
	)
	ctx := context.Background()
	idx := store.NewMemoryIndex(model.SpaceBehavioral, 4)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if n := idx.Len(); n%batchSize != 0 {
					t.Errorf("observed %d published entries, want a multiple of %d", n, batchSize)
					return
				}
				hits, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 0)
				if err != nil {
					t.Errorf("concurrent search failed: %v", err)
					return
				}
				if len(hits)%batchSize != 0 {
					t.Errorf("search saw %d hits, want a multiple of %d", len(hits), batchSize)
					return
				}
				for i := 1; i < len(hits); i++ {
					if hits[i].Score > hits[i-1].Score {
						t.Errorf("hits out of order at position %d", i)
						return
					}
				}
			}
		}()
	}

	for b := 0; b < batches; b++ {
		batch := make([]*model.Embedding, 0, batchSize)
		for i := 0; i < batchSize; i++ {
			batch = append(batch, behavioral(
				fmt.Sprintf("scene-%03d-%d", b, i),
				[]float32{1, float32(b), float32(i), 0}))
		}
		require.NoError(t, idx.Upsert(ctx, batch...))
		idx.Flush()
	}
	close(done)
	wg.Wait()

	assert.Equal(t, batches*batchSize, idx.Len())
}
