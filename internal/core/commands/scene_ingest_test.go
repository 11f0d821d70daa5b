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

// Package commands_test contains the test suite for the ingest commands.
// This file covers the trigger parsing rules (premature orchestrator signals
// are acknowledged, malformed messages fail the chain) and the atomic
// persist-and-index step.
package commands_test

import (
	"context"
	"testing"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/cloud"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/commands"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/cor"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/store"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChainContext(in any) cor.Context {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, in)
	return chainCtx
}

// TestSceneTriggerReaderReady verifies that a completion event with
// embeddings ready is parsed and forwarded to the next command.
func TestSceneTriggerReaderReady(t *testing.T) {
	cmd := commands.NewSceneTriggerReader("trigger-reader")
	chainCtx := newChainContext(testutil.GetTestSceneReadyMessageText())

	cmd.Execute(chainCtx)
	require.False(t, chainCtx.HasErrors())

	event, ok := chainCtx.Get(cmd.GetOutputParam()).(*cloud.SceneReadyEvent)
	require.True(t, ok)
	assert.Equal(t, "scene-0042", event.SceneId)
	assert.True(t, event.EmbeddingsReady)
	assert.Equal(t, "fleet_scene_payloads", event.PayloadBucket)
	assert.Same(t, event, chainCtx.Get(cloud.GetSceneEventName()))
}

// TestSceneTriggerReaderPremature verifies that a progress signal published
// before embeddings are ready completes without output and without error, so
// the message is acknowledged instead of redelivered.
func TestSceneTriggerReaderPremature(t *testing.T) {
	cmd := commands.NewSceneTriggerReader("trigger-reader")
	chainCtx := newChainContext(testutil.GetTestScenePendingMessageText())

	cmd.Execute(chainCtx)
	assert.False(t, chainCtx.HasErrors())
	assert.Nil(t, chainCtx.Get(cmd.GetOutputParam()))
}

// TestSceneTriggerReaderMalformed verifies that unparseable message data
// records a chain error.
func TestSceneTriggerReaderMalformed(t *testing.T) {
	cmd := commands.NewSceneTriggerReader("trigger-reader")
	chainCtx := newChainContext("{not json")

	cmd.Execute(chainCtx)
	assert.True(t, chainCtx.HasErrors())
}

func newPersistFixture(t *testing.T) (*commands.ScenePersist, *store.SceneStore, map[model.Space]store.VectorIndex) {
	t.Helper()
	sceneStore, err := store.NewSceneStore(":memory:", map[model.Space]int{
		model.SpaceBehavioral: 4,
		model.SpaceVisual:     3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sceneStore.Close() })

	indexes := map[model.Space]store.VectorIndex{
		model.SpaceBehavioral: store.NewMemoryIndex(model.SpaceBehavioral, 4),
		model.SpaceVisual:     store.NewMemoryIndex(model.SpaceVisual, 3),
	}
	return commands.NewScenePersist("persist-scene", sceneStore, indexes), sceneStore, indexes
}

// TestScenePersist verifies the happy path: the scene and every embedding
// land in the durable store and become visible in the indexes, all at once.
func TestScenePersist(t *testing.T) {
	cmd, sceneStore, indexes := newPersistFixture(t)
	ctx := context.Background()

	scene := testutil.NewTestScene("scene-0042", 0.3, map[string]string{"environment_type": "highway"})
	payload := &model.ScenePayload{
		Scene:      scene,
		Behavioral: testutil.OneHot(4, 0),
		Visual: map[string][]float32{
			"front_wide": testutil.OneHot(3, 0),
			"rear":       testutil.OneHot(3, 1),
		},
	}
	chainCtx := newChainContext(payload)
	require.True(t, cmd.IsExecutable(chainCtx))

	cmd.Execute(chainCtx)
	require.False(t, chainCtx.HasErrors())
	assert.Same(t, scene, chainCtx.Get(cmd.GetOutputParam()))

	stored, err := sceneStore.GetScene(ctx, "scene-0042")
	require.NoError(t, err)
	assert.Equal(t, scene.Id, stored.Id)

	_, err = sceneStore.GetEmbedding(ctx, "scene-0042", model.SceneLevelCamera, model.SpaceBehavioral)
	assert.NoError(t, err)
	_, err = sceneStore.GetEmbedding(ctx, "scene-0042", "rear", model.SpaceVisual)
	assert.NoError(t, err)

	// The indexes were flushed, so the scene is immediately searchable.
	hits, err := indexes[model.SpaceBehavioral].Search(ctx, testutil.OneHot(4, 0), 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "scene-0042", hits[0].SceneId)

	hits, err = indexes[model.SpaceVisual].Search(ctx, testutil.OneHot(3, 0), 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

// TestScenePersistRejectsMalformedVector verifies atomic rejection: one bad
// vector drops the whole scene, nothing is persisted or indexed, and no
// chain error is recorded so the message will not be redelivered.
func TestScenePersistRejectsMalformedVector(t *testing.T) {
	cmd, sceneStore, indexes := newPersistFixture(t)
	ctx := context.Background()

	payload := &model.ScenePayload{
		Scene:      testutil.NewTestScene("scene-bad", 0.3, nil),
		Behavioral: testutil.OneHot(4, 0),
		Visual: map[string][]float32{
			"front_wide": {1, 0}, // wrong dimension for the visual space
		},
	}
	chainCtx := newChainContext(payload)

	cmd.Execute(chainCtx)
	assert.False(t, chainCtx.HasErrors(), "malformed payloads must not trigger redelivery")
	assert.Nil(t, chainCtx.Get(cmd.GetOutputParam()))

	_, err := sceneStore.GetScene(ctx, "scene-bad")
	assert.ErrorIs(t, err, store.ErrSceneNotFound)
	assert.Equal(t, 0, indexes[model.SpaceBehavioral].(*store.MemoryIndex).Len())
}

// TestScenePersistRejectsEmptyPayload verifies that a payload with no
// embeddings at all is dropped the same way.
func TestScenePersistRejectsEmptyPayload(t *testing.T) {
	cmd, sceneStore, _ := newPersistFixture(t)

	chainCtx := newChainContext(&model.ScenePayload{
		Scene: testutil.NewTestScene("scene-empty", 0.1, nil),
	})
	cmd.Execute(chainCtx)
	assert.False(t, chainCtx.HasErrors())
	assert.Nil(t, chainCtx.Get(cmd.GetOutputParam()))

	_, err := sceneStore.GetScene(context.Background(), "scene-empty")
	assert.ErrorIs(t, err, store.ErrSceneNotFound)
}

// TestScenePersistSkipsWithoutPayload verifies that a chain short-circuited
// upstream leaves this command unexecutable rather than panicking.
func TestScenePersistSkipsWithoutPayload(t *testing.T) {
	cmd, _, _ := newPersistFixture(t)

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(context.Background())
	assert.False(t, cmd.IsExecutable(chainCtx))
}

// ctxRecordingIndex wraps a VectorIndex and records the context passed to
// Upsert.
type ctxRecordingIndex struct {
	store.VectorIndex
	upsertCtx context.Context
}

func (r *ctxRecordingIndex) Upsert(ctx context.Context, items ...*model.Embedding) error {
	r.upsertCtx = ctx
	return r.VectorIndex.Upsert(ctx, items...)
}

type workflowCtxKey struct{}

// TestScenePersistPropagatesContext verifies that the workflow's context
// reaches the index write path, so a backend that writes through to external
// storage is cancellable with the chain.
func TestScenePersistPropagatesContext(t *testing.T) {
	cmd, _, indexes := newPersistFixture(t)
	recorder := &ctxRecordingIndex{VectorIndex: indexes[model.SpaceBehavioral]}
	indexes[model.SpaceBehavioral] = recorder

	goCtx := context.WithValue(context.Background(), workflowCtxKey{}, "ingest")
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(goCtx)
	chainCtx.Add(cor.CtxIn, &model.ScenePayload{
		Scene:      testutil.NewTestScene("scene-ctx", 0.2, nil),
		Behavioral: testutil.OneHot(4, 0),
	})

	cmd.Execute(chainCtx)
	require.False(t, chainCtx.HasErrors())
	require.NotNil(t, recorder.upsertCtx)
	assert.Equal(t, "ingest", recorder.upsertCtx.Value(workflowCtxKey{}))
}
