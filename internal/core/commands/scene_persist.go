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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// terminal command of the ingest workflow: making a fetched scene durable and
// searchable.
//
// Logic Flow:
//  1. It retrieves the decoded `model.ScenePayload` from the context.
//  2. It validates every embedding vector against the configured
//     dimensionality of its space. A scene with any malformed vector is
//     rejected as a whole: partial indexing would make the scene visible in
//     one engine but not the other, which corrupts consensus scoring.
//  3. Rejected scenes are logged and dropped WITHOUT recording a chain error.
//     A malformed payload will never become valid on redelivery, so failing
//     the chain would only put the message into a redelivery loop.
//  4. Valid scenes are written to the durable store first, then staged into
//     the in-memory vector indexes and published with a single Flush per
//     index, so searches observe all of a scene's vectors or none of them.
package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/cor"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/store"
)

// ScenePersist is a command that writes a scene and its embeddings to the
// durable store and the live vector indexes.
type ScenePersist struct {
	cor.BaseCommand
	store   *store.SceneStore                 // Durable scene and embedding storage.
	indexes map[model.Space]store.VectorIndex // Live indexes, one per search space.
}

// NewScenePersist is the constructor for the ScenePersist command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - sceneStore: The durable store for scenes and embeddings.
//   - indexes: The live vector indexes keyed by search space.
//
// Outputs:
//   - *ScenePersist: A pointer to the newly instantiated command.
func NewScenePersist(name string, sceneStore *store.SceneStore, indexes map[model.Space]store.VectorIndex) *ScenePersist {
	return &ScenePersist{
		BaseCommand: *cor.NewBaseCommand(name),
		store:       sceneStore,
		indexes:     indexes,
	}
}

// IsExecutable ensures the payload to persist exists in the context before
// execution. Chains short-circuited by a premature trigger leave no payload.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
//
// Outputs:
//   - bool: True if a ScenePayload is present in the context.
func (c *ScenePersist) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(c.GetInputParam()) != nil
}

// Execute contains the core logic for persisting and indexing the scene.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (c *ScenePersist) Execute(context cor.Context) {
	payload := context.Get(c.GetInputParam()).(*model.ScenePayload)
	ctx := context.GetContext()

	if payload.Scene == nil || payload.Scene.Id == "" {
		c.GetErrorCounter().Add(ctx, 1)
		context.AddError(c.GetName(), errors.New("scene payload missing scene metadata"))
		return
	}
	scene := payload.Scene

	// Assemble every embedding the payload carries before touching storage,
	// so a bad vector anywhere rejects the scene atomically.
	embeddings := make([]*model.Embedding, 0, len(payload.Visual)+1)
	if len(payload.Behavioral) > 0 {
		embeddings = append(embeddings, &model.Embedding{
			SceneId:  scene.Id,
			CameraId: model.SceneLevelCamera,
			Space:    model.SpaceBehavioral,
			Vector:   payload.Behavioral,
			Norm:     store.Norm(payload.Behavioral),
		})
	}
	for camera, vector := range payload.Visual {
		embeddings = append(embeddings, &model.Embedding{
			SceneId:  scene.Id,
			CameraId: camera,
			Space:    model.SpaceVisual,
			Vector:   vector,
			Norm:     store.Norm(vector),
		})
	}
	if len(embeddings) == 0 {
		// Nothing to index. Drop the scene rather than admit an unsearchable row.
		c.GetErrorCounter().Add(ctx, 1)
		slog.Warn("scene payload carried no embeddings, dropping", "scene_id", scene.Id)
		return
	}

	for _, e := range embeddings {
		want := c.store.Dimension(e.Space)
		if len(e.Vector) != want || e.Norm == 0 {
			// A malformed vector will never heal on redelivery. Count it,
			// log it, and acknowledge the message by not failing the chain.
			c.GetErrorCounter().Add(ctx, 1)
			slog.Warn("rejecting scene with invalid embedding vector",
				"scene_id", scene.Id,
				"camera", e.CameraId,
				"space", string(e.Space),
				"dimension", len(e.Vector),
				"expected", want)
			return
		}
	}

	// Durable store first. If this fails the chain records the error and the
	// message is redelivered; nothing has been made visible to search yet.
	if err := c.store.PutScene(ctx, scene); err != nil {
		c.GetErrorCounter().Add(ctx, 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to persist scene %s: %w", scene.Id, err))
		return
	}
	for _, e := range embeddings {
		if err := c.store.PutEmbedding(ctx, e); err != nil {
			c.GetErrorCounter().Add(ctx, 1)
			context.AddError(c.GetName(), fmt.Errorf("failed to persist embedding for scene %s camera %q: %w", scene.Id, e.CameraId, err))
			return
		}
	}

	// Stage into the live indexes, then publish each index once so a search
	// never observes a half-indexed scene.
	staged := make(map[model.Space]bool)
	for _, e := range embeddings {
		idx, ok := c.indexes[e.Space]
		if !ok {
			continue
		}
		if err := idx.Upsert(ctx, e); err != nil {
			c.GetErrorCounter().Add(ctx, 1)
			context.AddError(c.GetName(), fmt.Errorf("failed to index embedding for scene %s camera %q: %w", scene.Id, e.CameraId, err))
			return
		}
		staged[e.Space] = true
	}
	for space := range staged {
		c.indexes[space].Flush()
	}

	c.GetSuccessCounter().Add(ctx, 1)
	slog.Info("persisted and indexed scene",
		"scene_id", scene.Id,
		"embeddings", len(embeddings),
		"cameras", len(scene.Cameras))
	context.Add(c.GetOutputParam(), scene)
}
