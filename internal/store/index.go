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

// Package store owns the durable scene/embedding data and the per-space
// nearest-neighbor indexes. This file implements MemoryIndex, the default
// brute-force cosine index.
//
// Writes are staged into a pending batch and only become visible when Flush
// publishes the whole batch under the write lock. That gives the ingest path
// its eventual-visibility semantics and guarantees a concurrent search can
// never observe a half-written vector: a search sees the index either before
// or after a batch, never in between.
package store

import (
	"context"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
)

// indexKey uniquely identifies one entry: a scene appears in the index at
// most once per camera channel.
type indexKey struct {
	sceneId  string
	cameraId string
}

// indexEntry is one published vector, pre-normalized to unit length so a
// query reduces to a single dot product.
type indexEntry struct {
	key  indexKey
	unit []float64
}

// MemoryIndex is an in-memory, brute-force cosine similarity index. It is
// the default backend; fleets that already run Postgres can switch to the
// pgvector backend via configuration.
type MemoryIndex struct {
	space model.Space
	dim   int

	mu      sync.RWMutex
	entries map[indexKey]*indexEntry

	pendMu  sync.Mutex
	pending []*indexEntry
}

// NewMemoryIndex creates an empty index for one embedding space.
//
// Inputs:
//   - space: The embedding space this index serves.
//   - dim: The configured dimensionality for vectors in that space.
//
// Outputs:
//   - *MemoryIndex: A pointer to the newly created index.
func NewMemoryIndex(space model.Space, dim int) *MemoryIndex {
	return &MemoryIndex{
		space:   space,
		dim:     dim,
		entries: make(map[indexKey]*indexEntry),
	}
}

// Space returns the embedding space this index serves.
func (m *MemoryIndex) Space() model.Space {
	return m.space
}

// Upsert stages embeddings for publication. Vectors are validated and
// normalized here, outside any lock, so Flush stays cheap. Staging is
// in-memory only, so ctx is not consulted.
func (m *MemoryIndex) Upsert(_ context.Context, items ...*model.Embedding) error {
	staged := make([]*indexEntry, 0, len(items))
	for _, item := range items {
		if len(item.Vector) != m.dim {
			return ErrInvalidVector
		}
		unit := toUnitVector(item.Vector)
		staged = append(staged, &indexEntry{
			key:  indexKey{sceneId: item.SceneId, cameraId: item.CameraId},
			unit: unit,
		})
	}

	m.pendMu.Lock()
	m.pending = append(m.pending, staged...)
	m.pendMu.Unlock()
	return nil
}

// Flush atomically publishes every staged entry. Searches running before the
// write lock is taken see the old index; searches after see all staged
// entries at once.
func (m *MemoryIndex) Flush() {
	m.pendMu.Lock()
	staged := m.pending
	m.pending = nil
	m.pendMu.Unlock()

	if len(staged) == 0 {
		return
	}

	m.mu.Lock()
	for _, e := range staged {
		m.entries[e.key] = e
	}
	m.mu.Unlock()
}

// Len reports the number of published entries.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Search scores every published entry against the query vector and returns
// the top k by cosine similarity.
//
// Inputs:
//   - ctx: The request context; checked so an abandoned request stops scanning.
//   - query: The query vector at the index's dimensionality.
//   - k: The maximum number of hits to return.
//
// Outputs:
//   - []Hit: Up to k hits by descending score, ties broken by ascending
//     (scene, camera). Empty index yields an empty, non-nil slice.
//   - error: ErrInvalidVector on a dimension mismatch, or the context error.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != m.dim {
		return nil, ErrInvalidVector
	}
	unitQuery := toUnitVector(query)

	m.mu.RLock()
	hits := make([]Hit, 0, len(m.entries))
	for _, e := range m.entries {
		if err := ctx.Err(); err != nil {
			m.mu.RUnlock()
			return nil, err
		}
		hits = append(hits, Hit{
			SceneId:  e.key.sceneId,
			CameraId: e.key.cameraId,
			Score:    floats.Dot(unitQuery, e.unit),
		})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].SceneId != hits[j].SceneId {
			return hits[i].SceneId < hits[j].SceneId
		}
		return hits[i].CameraId < hits[j].CameraId
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// toUnitVector converts a raw float32 vector into a unit-length float64
// vector. A zero vector is returned unchanged so it scores 0 against
// everything instead of producing NaNs.
func toUnitVector(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	norm := floats.Norm(out, 2)
	if norm > 0 {
		floats.Scale(1/norm, out)
	}
	return out
}

// Norm returns the Euclidean norm of a raw vector. The ingest path records
// it on each Embedding at persist time.
func Norm(in []float32) float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return floats.Norm(out, 2)
}
