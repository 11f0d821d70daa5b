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
// This file contains the transient search model: queries and per-request
// results for the twin-engine semantic search. These objects are computed
// per query and never persisted.
package model

// Engine selector values accepted by SearchQuery.IndexType. "both" is the
// default when the caller does not name a specific engine.
const (
	IndexTypeBehavioral = "behavioral"
	IndexTypeVisual     = "visual"
	IndexTypeBoth       = "both"
)

// Human-readable match labels reported alongside the engine set. The labels
// are part of the API contract with the dashboard.
const (
	MatchLabelBehavioral = "Concept Match"
	MatchLabelVisual     = "Visual Pattern"
)

// SearchQuery describes a single twin-engine search request. Exactly one of
// Query (free text) or SceneId (scene-to-scene similarity) must be set.
type SearchQuery struct {
	Query     string `json:"query,omitempty"`      // Natural-language query text.
	SceneId   string `json:"scene_id,omitempty"`   // Reference scene for similarity search.
	IndexType string `json:"index_type,omitempty"` // Engine selector: behavioral, visual, or both.
	Limit     int    `json:"limit,omitempty"`      // Maximum number of results to return.
}

// CameraHit is one camera-level match that contributed to a search result.
type CameraHit struct {
	Camera   string  `json:"camera"`    // The camera identifier.
	Score    float64 `json:"score"`     // The cosine similarity of this camera's embedding to the query.
	VideoUri string  `json:"video_uri"` // The locator of the camera's video clip.
}

// SearchResponse is the full reply to one search request, including which
// engines actually served it and how long the search took.
type SearchResponse struct {
	Query         string          `json:"query"`          // The query text or reference scene id echoed back.
	Results       []*SearchResult `json:"results"`        // Reconciled results, best first.
	EnginesActive []Space         `json:"engines_active"` // Engines that actually executed for this request.
	TotalResults  int             `json:"total_results"`  // len(Results), for API consumers.
	SearchTime    float64         `json:"search_time"`    // Wall-clock duration of the search in seconds.
}

// SearchResult is one deduplicated, reconciled entry in a twin-engine search
// response. A scene appears at most once per response; the per-engine scores
// record the best hit each engine produced for it.
type SearchResult struct {
	SceneId         string      `json:"scene_id"`                   // The matched scene.
	Score           float64     `json:"score"`                      // The unified score: max of the per-engine scores.
	BehavioralScore float64     `json:"behavioral_score,omitempty"` // Best behavioral-engine score, 0 when the engine did not surface the scene.
	VisualScore     float64     `json:"visual_score,omitempty"`     // Best visual-engine score, 0 when the engine did not surface the scene.
	Engines         []Space     `json:"engines"`                    // The engines that surfaced this scene.
	Matches         []string    `json:"matches"`                    // Human labels for Engines ("Concept Match", "Visual Pattern").
	IsVerified      bool        `json:"is_verified"`                // True iff both engines surfaced the scene above the minimum score.
	Cameras         []CameraHit `json:"cameras"`                    // All camera-level matches, best first.
	Description     string      `json:"description"`                // The scene's analysis summary, for display.
}
