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
// initial command in the scene ingest workflow.
//
// Logic Flow:
// This command serves as the entry point for the ingest workflow, which is
// triggered by the external Pipeline Orchestrator publishing a completion
// event to a Pub/Sub topic once a recording has been fully extracted. This
// command is responsible for parsing that message.
//
//  1. The command receives the raw Pub/Sub message data as a JSON string from the context.
//  2. It unmarshals (parses) this JSON string into a `cloud.SceneReadyEvent` struct.
//  3. If the event reports that embeddings are not yet ready, the command
//     completes without producing an output. Downstream commands see no input
//     and skip, so the message is acknowledged and the premature signal is
//     dropped rather than retried.
//  4. Otherwise the parsed event is placed back into the context under a
//     well-known key and as the primary output for the next command, which
//     will fetch the scene payload from GCS.
package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/cloud"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/cor"
)

// SceneTriggerReader is a command that parses a scene completion event from
// the Pipeline Orchestrator into a typed SceneReadyEvent.
type SceneTriggerReader struct {
	cor.BaseCommand // Embeds the BaseCommand for common functionality.
}

// NewSceneTriggerReader is the constructor for the SceneTriggerReader command.
//
// Inputs:
//   - name: A string name for this command instance.
//
// Outputs:
//   - *SceneTriggerReader: A pointer to the newly instantiated command.
func NewSceneTriggerReader(name string) *SceneTriggerReader {
	return &SceneTriggerReader{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute contains the core logic for parsing the completion message.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution, containing
//     the raw message data in the input parameter.
func (c *SceneTriggerReader) Execute(context cor.Context) {
	// Retrieve the raw JSON message string from the context.
	in := context.Get(c.GetInputParam()).(string)

	// Parse the JSON string into the SceneReadyEvent struct.
	var out cloud.SceneReadyEvent
	err := json.Unmarshal([]byte(in), &out)
	if err != nil {
		// If parsing fails, it's a critical error for the workflow.
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("failed to unmarshal scene completion event: %w", err))
		return
	}

	// The orchestrator may publish progress signals before the embedding step
	// has finished. Those carry nothing the core can act on yet, so complete
	// without an output. The chain acknowledges the message and a later
	// ready event will carry the payload location.
	if !out.EmbeddingsReady {
		c.GetSuccessCounter().Add(context.GetContext(), 1)
		slog.Info("scene event received before embeddings were ready, ignoring", "scene_id", out.SceneId)
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)

	// Add the parsed event to the context using a well-known key so that
	// other commands can easily access it.
	context.Add(cloud.GetSceneEventName(), &out)

	// Also add the event to the default output parameter so it becomes the
	// input for the very next command in the chain.
	context.Add(c.GetOutputParam(), &out)
}
