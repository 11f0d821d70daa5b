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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements the
// scene ingest pipeline.
package workflow

import (
	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/cloud"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/commands"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/cor"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/store"
)

// SceneIngestWorkflow orchestrates the admission of a completed driving scene
// into the search system. It's structured as a Chain of Responsibility
// (cor.Chain) that parses the Pipeline Orchestrator's completion event,
// fetches the scene payload from GCS, and makes the scene durable and
// searchable.
//
// The workflow is triggered by a Pub/Sub message published when the external
// extraction pipeline finishes a recording.
type SceneIngestWorkflow struct {
	cor.BaseCommand
	config        *cloud.Config
	storageClient *storage.Client
	sceneStore    *store.SceneStore
	indexes       map[model.Space]store.VectorIndex
	chain         cor.Chain // The underlying chain of commands to be executed.
}

// Execute runs the entire ingest workflow by invoking the underlying chain.
// It passes the context, which contains the raw trigger message and will be
// used to pass state between commands.
//
// Inputs:
//   - context: The chain of responsibility context for this execution.
func (m *SceneIngestWorkflow) Execute(context cor.Context) {
	m.chain.Execute(context)
}

// initializeChain builds the sequence of commands that make up this workflow.
// Each command is an atomic unit of work. The output of one command serves as
// the input for the next, creating a processing pipeline.
// This method is called by the constructor.
func (m *SceneIngestWorkflow) initializeChain() {
	// Create the chain that will hold all the command steps.
	out := cor.NewBaseChain(m.GetName())

	// Step 1: Parse the incoming Pub/Sub message (which is in JSON format)
	// into a structured completion event. Premature signals, where the
	// orchestrator has not produced embeddings yet, end the chain here.
	out.AddCommand(commands.NewSceneTriggerReader("scene-trigger-reader"))

	// Step 2: Download the scene payload named by the event from GCS and
	// decode it into scene metadata plus embedding vectors.
	out.AddCommand(commands.NewEmbeddingPayloadFetch("fetch-scene-payload", m.storageClient))

	// Step 3: Validate the vectors, persist the scene to the durable store,
	// and publish its embeddings to the live vector indexes. Scenes with
	// malformed vectors are dropped here without failing the chain, so the
	// message is acknowledged instead of looping through redelivery.
	out.AddCommand(commands.NewScenePersist("persist-scene", m.sceneStore, m.indexes))

	// Assign the fully constructed chain to the workflow instance.
	m.chain = out
}

// NewSceneIngestPipeline is the constructor for the SceneIngestWorkflow. It
// wires the GCS client, the durable store, and the live indexes into the
// command chain.
//
// Inputs:
//   - config: The application's overall configuration.
//   - serviceClients: A struct containing initialized clients for GCP services.
//   - sceneStore: The durable scene and embedding store.
//   - indexes: The live vector indexes keyed by search space.
//
// Returns:
//   - A pointer to a newly created and fully initialized SceneIngestWorkflow.
func NewSceneIngestPipeline(
	config *cloud.Config,
	serviceClients *cloud.ServiceClients,
	sceneStore *store.SceneStore,
	indexes map[model.Space]store.VectorIndex) *SceneIngestWorkflow {

	pipeline := &SceneIngestWorkflow{
		BaseCommand:   *cor.NewBaseCommand("scene-ingest-pipeline"),
		config:        config,
		storageClient: serviceClients.StorageClient,
		sceneStore:    sceneStore,
		indexes:       indexes,
	}
	// Build the command chain for the new pipeline instance.
	pipeline.initializeChain()
	return pipeline
}
