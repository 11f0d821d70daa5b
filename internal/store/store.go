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
// nearest-neighbor indexes. This file defines the package's sentinel errors
// and the VectorIndex contract that both the in-memory and the pgvector
// backends satisfy.
package store

import (
	"context"
	"errors"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
)

var (
	// ErrInvalidVector is returned when an embedding's dimensionality does
	// not match the space's configured dimension. Invalid vectors are
	// rejected at ingest and never zero-padded.
	ErrInvalidVector = errors.New("embedding dimensionality does not match the space's configured dimension")

	// ErrSceneNotFound is returned when a scene id has no stored record.
	ErrSceneNotFound = errors.New("scene not found")

	// ErrEmbeddingNotFound is returned when no stored embedding matches the
	// requested (scene, camera, space) key.
	ErrEmbeddingNotFound = errors.New("embedding not found")
)

// Hit is a single nearest-neighbor match returned by a VectorIndex.
type Hit struct {
	SceneId  string  // The scene the matched embedding belongs to.
	CameraId string  // The camera channel, or model.SceneLevelCamera for scene-level vectors.
	Score    float64 // Cosine similarity to the query, in [-1, 1].
}

// VectorIndex is a per-space approximate nearest-neighbor index over
// embedding vectors, queried by cosine similarity.
//
// Concurrency contract: Search is safe to call concurrently with other
// Search calls and with Upsert. A Search is not guaranteed to see an Upsert
// issued concurrently with it (eventual visibility), but it must never
// observe a partially written vector.
type VectorIndex interface {
	// Space returns the embedding space this index serves.
	Space() model.Space

	// Upsert stages one or more embeddings for indexing, overwriting any
	// prior entry with the same (scene, camera) key. It returns
	// ErrInvalidVector when a vector's dimensionality is wrong. Backends
	// that write through to external storage honor ctx cancellation.
	Upsert(ctx context.Context, items ...*model.Embedding) error

	// Flush publishes all staged upserts atomically, making them visible to
	// subsequent searches.
	Flush()

	// Search returns up to k hits ordered by descending cosine similarity,
	// ties broken by ascending (scene, camera). An empty index yields an
	// empty slice, not an error.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Len reports the number of published entries.
	Len() int
}
