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

// This file exercises the durable SQLite-backed SceneStore: scene and
// embedding round-trips, dimension enforcement at the write boundary, and the
// not-found sentinels.
package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.SceneStore {
	t.Helper()
	s, err := store.NewSceneStore(":memory:", map[model.Space]int{
		model.SpaceBehavioral: 4,
		model.SpaceVisual:     3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestSceneRoundTrip verifies that a scene with tags and camera channels
// survives a put/get cycle intact, including the JSON-serialized fields.
func TestSceneRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := &model.Scene{
		Id: "scene-0042",
		Cameras: []model.CameraChannel{
			{Camera: "front_wide", VideoUri: "gs://fleet_scene_footage/scene-0042/front_wide.mp4"},
			{Camera: "rear", VideoUri: "gs://fleet_scene_footage/scene-0042/rear.mp4"},
		},
		RiskScore:   0.35,
		SafetyScore: 0.65,
		Summary:     "Unprotected left turn in light rain.",
		Tags: map[string]string{
			"environment_type":  "urban_intersection",
			"weather_condition": "rain",
		},
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.PutScene(ctx, in))

	out, err := s.GetScene(ctx, "scene-0042")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

// TestSceneOverwrite verifies that a second put for the same id replaces the
// record, which is how tag and score revisions land.
func TestSceneOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	scene := &model.Scene{Id: "scene-a", RiskScore: 0.1, CreatedAt: time.Unix(0, 0).UTC()}
	require.NoError(t, s.PutScene(ctx, scene))
	scene.RiskScore = 0.9
	scene.Tags = map[string]string{"weather_condition": "snow"}
	require.NoError(t, s.PutScene(ctx, scene))

	out, err := s.GetScene(ctx, "scene-a")
	require.NoError(t, err)
	assert.Equal(t, 0.9, out.RiskScore)
	assert.Equal(t, "snow", out.Tags["weather_condition"])
}

// TestSceneNotFound verifies the sentinel for a missing scene id.
func TestSceneNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetScene(context.Background(), "no-such-scene")
	assert.True(t, errors.Is(err, store.ErrSceneNotFound))
}

// TestListScenesOrdering verifies that ListScenes returns records in
// ascending id order regardless of insertion order.
func TestListScenesOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"scene-c", "scene-a", "scene-b"} {
		require.NoError(t, s.PutScene(ctx, &model.Scene{Id: id, CreatedAt: now}))
	}

	scenes, err := s.ListScenes(ctx)
	require.NoError(t, err)
	require.Len(t, scenes, 3)
	assert.Equal(t, "scene-a", scenes[0].Id)
	assert.Equal(t, "scene-b", scenes[1].Id)
	assert.Equal(t, "scene-c", scenes[2].Id)
}

// TestEmbeddingRoundTrip verifies the vector blob encoding survives a
// put/get cycle and that a zero Norm is backfilled at write time.
func TestEmbeddingRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := &model.Embedding{
		SceneId:  "scene-a",
		CameraId: "front_wide",
		Space:    model.SpaceVisual,
		Vector:   []float32{0.5, -1.25, 2},
	}
	require.NoError(t, s.PutEmbedding(ctx, in))

	out, err := s.GetEmbedding(ctx, "scene-a", "front_wide", model.SpaceVisual)
	require.NoError(t, err)
	assert.Equal(t, in.SceneId, out.SceneId)
	assert.Equal(t, in.CameraId, out.CameraId)
	assert.Equal(t, model.SpaceVisual, out.Space)
	assert.Equal(t, in.Vector, out.Vector)
	assert.InDelta(t, store.Norm(in.Vector), out.Norm, 1e-9)
}

// TestEmbeddingDimensionEnforcement verifies that a vector whose length does
// not match the space's configured dimension is rejected with the sentinel
// before anything is written.
func TestEmbeddingDimensionEnforcement(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.PutEmbedding(ctx, &model.Embedding{
		SceneId:  "scene-a",
		CameraId: model.SceneLevelCamera,
		Space:    model.SpaceBehavioral,
		Vector:   []float32{1, 0}, // Behavioral is configured at 4.
	})
	assert.True(t, errors.Is(err, store.ErrInvalidVector))

	err = s.PutEmbedding(ctx, &model.Embedding{
		SceneId: "scene-a",
		Space:   model.Space("lidar"),
		Vector:  []float32{1, 0, 0},
	})
	assert.True(t, errors.Is(err, store.ErrInvalidVector), "unknown space has no configured dimension")

	_, err = s.GetEmbedding(ctx, "scene-a", model.SceneLevelCamera, model.SpaceBehavioral)
	assert.True(t, errors.Is(err, store.ErrEmbeddingNotFound))
}

// TestListEmbeddingsBySpace verifies space filtering and the deterministic
// (scene, camera) ordering that boot-time index rebuilds rely on.
func TestListEmbeddingsBySpace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	put := func(sceneId, cameraId string, space model.Space, vector []float32) {
		t.Helper()
		require.NoError(t, s.PutEmbedding(ctx, &model.Embedding{
			SceneId:  sceneId,
			CameraId: cameraId,
			Space:    space,
			Vector:   vector,
		}))
	}
	put("scene-b", "front_wide", model.SpaceVisual, []float32{0, 1, 0})
	put("scene-a", "rear", model.SpaceVisual, []float32{1, 0, 0})
	put("scene-a", "front_wide", model.SpaceVisual, []float32{0, 0, 1})
	put("scene-a", model.SceneLevelCamera, model.SpaceBehavioral, []float32{1, 0, 0, 0})

	visual, err := s.ListEmbeddings(ctx, model.SpaceVisual)
	require.NoError(t, err)
	require.Len(t, visual, 3)
	assert.Equal(t, "scene-a", visual[0].SceneId)
	assert.Equal(t, "front_wide", visual[0].CameraId)
	assert.Equal(t, "scene-a", visual[1].SceneId)
	assert.Equal(t, "rear", visual[1].CameraId)
	assert.Equal(t, "scene-b", visual[2].SceneId)

	behavioral, err := s.ListEmbeddings(ctx, model.SpaceBehavioral)
	require.NoError(t, err)
	require.Len(t, behavioral, 1)
	assert.Equal(t, model.SceneLevelCamera, behavioral[0].CameraId)
}
