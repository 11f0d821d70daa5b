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

// Package testutil provides utility functions and mock data to support the
// application's test suite. It helps in setting up a consistent test
// environment, loading test-specific configurations, and building
// deterministic scenes and embedding vectors for search and analysis tests.
package testutil

import (
	"log"
	"math"
	"os"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/cloud"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
)

// StateManager acts as a simple in-memory cache for the application
// configuration during test runs. This prevents the need to reload
// configuration files for every test, speeding up the test suite.
type StateManager struct {
	config *cloud.Config
}

// state is a package-level variable that holds the singleton instance of
// StateManager, ensuring that the configuration is loaded only once per test run.
var state = &StateManager{}

// HandleErr is a simple test helper function that checks if an error is not nil.
// If an error exists, it fails the test immediately by calling t.Errorf.
// This is a convenience function to reduce boilerplate error-checking code in tests.
//
// Inputs:
//   - err: The error to check.
//   - t: The *testing.T object from the current test.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// GetTestSceneReadyMessageText returns a hardcoded JSON string that simulates
// the completion event the Pipeline Orchestrator publishes once a recording
// has been fully extracted and its embedding payload written to GCS. This
// mock data is used to test the ingest workflow trigger.
//
// Returns:
//   - A string containing the JSON payload of a completion event.
func GetTestSceneReadyMessageText() string {
	return `{
  "scene_id": "scene-0042",
  "embeddings_ready": true,
  "payload_bucket": "fleet_scene_payloads",
  "payload_object": "scene-0042/payload.json"
}`
}

// GetTestScenePendingMessageText returns a completion event for a recording
// the orchestrator is still processing. The ingest workflow must treat this
// as a no-op rather than an error.
//
// Returns:
//   - A string containing the JSON payload of a premature event.
func GetTestScenePendingMessageText() string {
	return `{
  "scene_id": "scene-0042",
  "embeddings_ready": false,
  "payload_bucket": "",
  "payload_object": ""
}`
}

// NewTestScene builds a scene with the given id, risk score, and tags,
// carrying a front and a rear camera channel. Field values are deterministic
// so tests can assert on them directly.
//
// Inputs:
//   - id: The scene identifier.
//   - risk: The scene's risk score in [0,1].
//   - tags: Free-form scenario tags, may be nil.
//
// Returns:
//   - A pointer to the populated scene.
func NewTestScene(id string, risk float64, tags map[string]string) *model.Scene {
	if tags == nil {
		tags = map[string]string{}
	}
	return &model.Scene{
		Id: id,
		Cameras: []model.CameraChannel{
			{Camera: "front", VideoUri: "gs://fleet_scene_footage/" + id + "/front.mp4"},
			{Camera: "rear", VideoUri: "gs://fleet_scene_footage/" + id + "/rear.mp4"},
		},
		RiskScore:   risk,
		SafetyScore: 1.0 - risk,
		Summary:     "test scenario " + id,
		Tags:        tags,
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// OneHot returns a unit vector of the given dimension with a single non-zero
// component. One-hot vectors are mutually orthogonal, which makes cosine
// similarities in tests exact: 1 against themselves, 0 against each other.
func OneHot(dim, index int) []float32 {
	v := make([]float32, dim)
	v[index] = 1
	return v
}

// Blend returns the normalized interpolation (1-t)*a + t*b. Blending two
// one-hot vectors gives test fixtures a precise cosine similarity to each
// endpoint: Blend(a, b, t) has similarity (1-t)/sqrt((1-t)^2+t^2) to a.
func Blend(a, b []float32, t float64) []float32 {
	out := make([]float32, len(a))
	var sum float64
	for i := range a {
		f := (1-t)*float64(a[i]) + t*float64(b[i])
		out[i] = float32(f)
		sum += f * f
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out
}

// SetupOS configures the necessary environment variables that the
// configuration loader (`cloud.LoadConfig`) depends on. By setting these
// variables, we can direct the loader to use the test-specific configuration
// files (e.g., `configs/.env.test.toml`) instead of production ones.
//
// Returns:
//   - An error if setting any environment variable fails.
func SetupOS() (err error) {
	// Set the directory where the configuration files are located.
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	// Set the runtime environment identifier to "test". This causes the loader
	// to look for a file named ".env.test.toml" for overrides.
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig is a singleton accessor for the test configuration.
// It ensures that the configuration is loaded from TOML files only once and
// is cached in the package-level `state` variable for subsequent calls.
// This is the primary way tests should retrieve their configuration.
//
// Returns:
//   - A pointer to the loaded and cached cloud.Config struct.
func GetConfig() *cloud.Config {
	// Check if the config is already cached.
	if state.config == nil {
		// If not cached, set up the OS environment for the test configuration.
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		// Create a new, empty config struct.
		config := cloud.NewConfig()
		// Load the configuration from the TOML files into the struct.
		// `LoadConfig` handles the hierarchical loading (base file + test override).
		cloud.LoadConfig(&config)
		// Cache the loaded config in our state manager.
		state.config = config
	}
	// Return the cached configuration.
	return state.config
}
