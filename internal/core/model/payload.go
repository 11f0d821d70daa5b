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

// Package model defines the core data structures for the application.
// This file contains the transient ingest payload exchanged with the external
// extraction pipeline. The pipeline writes one payload object to GCS per
// processed recording and publishes a completion event pointing at it; the
// ingest workflow reads the payload, validates it, and persists its contents.
// The payload itself is never stored.
package model

// ScenePayload is the JSON document the extraction pipeline produces for one
// completed scene: the scene metadata plus its embedding vectors in both
// spaces. Visual embeddings are keyed by camera identifier.
type ScenePayload struct {
	Scene      *Scene               `json:"scene"`                // The scene record to persist.
	Behavioral []float32            `json:"behavioral_embedding"` // The scene-level behavioral vector.
	Visual     map[string][]float32 `json:"visual_embeddings"`    // Per-camera visual vectors, keyed by camera id.
}
