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
// Responsibility (COR) pattern's Command interface. This file defines a
// command for fetching a scene payload object from Google Cloud Storage (GCS).
//
// Logic Flow:
// This command bridges the Pipeline Orchestrator's completion signal and the
// in-process ingest path. The completion event only names a bucket and object;
// the actual scene metadata and embedding vectors live in that object as JSON.
//
//  1. Receives a `cloud.SceneReadyEvent` from the context, which contains the
//     payload bucket and object name.
//  2. Creates a reader for the specified GCS object and reads it fully into
//     memory. Payloads are small (a handful of embedding vectors plus
//     metadata), so streaming to disk is unnecessary.
//  3. Unmarshals the JSON into a `model.ScenePayload`.
//  4. Places the payload into the context as the input for the persistence
//     command that follows.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/cloud"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/cor"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
)

// EmbeddingPayloadFetch is a command implementation that downloads a scene
// payload object from GCS and decodes it.
type EmbeddingPayloadFetch struct {
	cor.BaseCommand                 // Embeds the BaseCommand for common functionality like naming and metrics.
	client          *storage.Client // The GCS client for interacting with the storage service.
}

// NewEmbeddingPayloadFetch is the constructor for creating a new
// EmbeddingPayloadFetch command.
//
// Inputs:
//   - name: A string name for this command instance, used for logging and telemetry.
//   - client: An initialized *storage.Client for communicating with GCS.
//
// Outputs:
//   - *EmbeddingPayloadFetch: A pointer to the newly instantiated command.
func NewEmbeddingPayloadFetch(name string, client *storage.Client) *EmbeddingPayloadFetch {
	return &EmbeddingPayloadFetch{
		BaseCommand: *cor.NewBaseCommand(name),
		client:      client,
	}
}

// IsExecutable overrides the default behavior so the command only runs when
// an upstream trigger actually produced a ready event. Premature orchestrator
// signals leave no input, and the command (with the rest of the chain) is a
// clean no-op.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
//
// Outputs:
//   - bool: True if a SceneReadyEvent is present in the context.
func (c *EmbeddingPayloadFetch) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(c.GetInputParam()) != nil
}

// Execute contains the core logic for fetching and decoding the payload.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (c *EmbeddingPayloadFetch) Execute(context cor.Context) {
	// Retrieve the completion event from the context's input parameter.
	event := context.Get(c.GetInputParam()).(*cloud.SceneReadyEvent)

	// Get a client handle for the specified bucket and object.
	obj := c.client.Bucket(event.PayloadBucket).Object(event.PayloadObject)

	// Create a new reader to stream the object's data from GCS.
	reader, err := obj.NewReader(context.GetContext())
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to create GCS reader for gs://%s/%s: %w", event.PayloadBucket, event.PayloadObject, err))
		return
	}
	defer func(reader *storage.Reader) {
		err := reader.Close()
		if err != nil {
			// Log the error but don't stop the workflow, as the data might have been read successfully.
			slog.Warn("failed to close GCS reader", "error", err)
		}
	}(reader)

	// Read the full payload into memory.
	data, err := io.ReadAll(reader)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to read scene payload gs://%s/%s: %w", event.PayloadBucket, event.PayloadObject, err))
		return
	}

	// Decode the JSON payload into the typed scene structure.
	var payload model.ScenePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to unmarshal scene payload for scene %s: %w", event.SceneId, err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.Info("fetched scene payload",
		"scene_id", event.SceneId,
		"bucket", event.PayloadBucket,
		"object", event.PayloadObject,
		"bytes", len(data))

	// Place the payload into the context's output parameter, making it the
	// default input for the next command in the chain.
	context.Add(c.GetOutputParam(), &payload)
}
