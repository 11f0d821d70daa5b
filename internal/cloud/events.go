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

// Package cloud provides components for interacting with Google Cloud
// services. This file defines the boundary with the external Pipeline
// Orchestrator: the completion event it publishes when a recording has been
// fully extracted and its embedding payload is available in GCS. The core
// only consumes this signal; it never initiates or manages the pipeline.
//
// Structs:
//   - SceneReadyEvent: The Pub/Sub completion message.
//
// Functions:
//   - GetSceneEventName: Returns the context key ingest commands use to
//     share the parsed event.
package cloud

// GetSceneEventName returns the well-known context key under which workflow
// commands exchange the parsed SceneReadyEvent.
//
// Outputs:
//   - string: A constant placeholder string "__SCENE__EVENT__".
func GetSceneEventName() string {
	return "__SCENE__EVENT__"
}

// SceneReadyEvent is the completion message the Pipeline Orchestrator
// publishes once per processed recording. PayloadBucket/PayloadObject locate
// the JSON scene payload (metadata plus embedding vectors) in GCS.
type SceneReadyEvent struct {
	SceneId         string `json:"scene_id"`         // The unique identifier of the completed scene.
	EmbeddingsReady bool   `json:"embeddings_ready"` // False means the pipeline is still working; the event is ignored.
	PayloadBucket   string `json:"payload_bucket"`   // The GCS bucket holding the scene payload.
	PayloadObject   string `json:"payload_object"`   // The object name of the scene payload within the bucket.
}
