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
// This file contains the persistent data model: the driving Scene record
// produced once per processed recording, and the embedding vectors that the
// store owns on its behalf.
//
// Structs:
//   - Scene: A single recorded driving scene with its risk/safety scores,
//     free-text analysis summary, and tags assigned by the upstream analysis
//     collaborator.
//   - CameraChannel: One camera feed belonging to a scene and the locator of
//     its rendered video.
//   - Embedding: One vector in one of the two embedding spaces, keyed by
//     (scene, camera, space).
package model

import (
	"fmt"
	"time"
)

// Space identifies one of the two independent embedding spaces. It is a
// closed enumeration: anything other than the two constants below is rejected
// at the boundary so a typo in a request can never produce an engine that
// silently matches nothing.
type Space string

const (
	// SpaceBehavioral is the text-derived embedding space. Each scene has
	// exactly one scene-level behavioral embedding.
	SpaceBehavioral Space = "behavioral"
	// SpaceVisual is the scene-derived visual embedding space. Each scene has
	// zero or more visual embeddings, one per camera channel.
	SpaceVisual Space = "visual"
)

// Spaces lists every valid embedding space in a fixed order.
var Spaces = []Space{SpaceBehavioral, SpaceVisual}

// ParseSpace converts a wire-level string into a Space.
//
// Inputs:
//   - in: The raw string from a request or configuration file.
//
// Outputs:
//   - Space: The parsed space constant.
//   - error: A descriptive error when the string names no known space.
func ParseSpace(in string) (Space, error) {
	switch Space(in) {
	case SpaceBehavioral:
		return SpaceBehavioral, nil
	case SpaceVisual:
		return SpaceVisual, nil
	}
	return "", fmt.Errorf("unknown embedding space %q", in)
}

// SceneLevelCamera is the camera identifier used for scene-level embeddings
// that are not bound to a specific camera channel (the behavioral space).
const SceneLevelCamera = ""

// CameraChannel describes a single camera feed that belongs to a scene.
type CameraChannel struct {
	Camera   string `json:"camera" bigquery:"camera"`       // The camera identifier (e.g., "front_wide").
	VideoUri string `json:"video_uri" bigquery:"video_uri"` // The GCS URI (or signed URL) of the rendered clip for this camera.
}

// Scene is the persistent record for one recorded driving scene. It is
// created once by the ingest pipeline and is immutable afterwards, except for
// tag and score revisions pushed by the external analysis collaborator.
type Scene struct {
	Id          string            `json:"id" bigquery:"id"`                     // The unique, stable scene identifier.
	Cameras     []CameraChannel   `json:"cameras" bigquery:"cameras"`           // The camera channels recorded for this scene.
	RiskScore   float64           `json:"risk_score" bigquery:"risk_score"`     // Risk score in [0,1] assigned by the analysis agent.
	SafetyScore float64           `json:"safety_score" bigquery:"safety_score"` // Safety score in [0,1] assigned by the analysis agent.
	Summary     string            `json:"summary" bigquery:"summary"`           // Free-text analysis summary of the scene.
	Tags        map[string]string `json:"tags" bigquery:"-"`                    // Categorical tags (e.g., environment_type, weather_condition).
	CreatedAt   time.Time         `json:"created_at" bigquery:"created_at"`     // When the scene record was first persisted.
}

// Embedding is a single vector in one embedding space. Embeddings are owned
// exclusively by the embedding store; every other component receives copies.
type Embedding struct {
	SceneId  string    `json:"scene_id"`  // The owning scene.
	CameraId string    `json:"camera_id"` // The camera channel, or SceneLevelCamera for scene-level vectors.
	Space    Space     `json:"space"`     // The embedding space this vector lives in.
	Vector   []float32 `json:"vector"`    // The raw vector values at the space's configured dimensionality.
	Norm     float64   `json:"norm"`      // The Euclidean norm of Vector, computed at ingest.
}
