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

package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/cloud"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/analysis"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/services"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/workflow"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/store"
)

// StateManager holds the shared components for the application: configuration,
// cloud clients, the durable store, the live vector indexes, and the services
// the API handlers call into.
type StateManager struct {
	config          *cloud.Config
	cloud           *cloud.ServiceClients
	sceneStore      *store.SceneStore
	indexes         map[model.Space]store.VectorIndex
	searchService   *services.SearchService
	sceneService    *services.SceneService
	runner          *analysis.Runner
	analysisRefresh *workflow.AnalysisRefreshWorkflow
}

var state = &StateManager{}

func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "local")
	return err
}

func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup os: %v\n", err)
		}
		// Create a default cloud config
		config := cloud.NewConfig()
		// Load it from the TOML files
		cloud.LoadConfig(&config)
		state.config = config
	}
	return state.config
}

// spaceDimensions extracts the configured dimensionality of each embedding
// space. Unknown space names in the configuration are fatal: a typo here
// would otherwise silently produce an unsearchable engine.
func spaceDimensions(config *cloud.Config) map[model.Space]int {
	dims := make(map[model.Space]int, len(config.Spaces))
	for name, sc := range config.Spaces {
		space, err := model.ParseSpace(name)
		if err != nil {
			log.Fatalf("config names unknown embedding space %q", name)
		}
		dims[space] = sc.Dimension
	}
	return dims
}

// buildIndexes constructs one vector index per configured space using the
// backend named in the configuration. The in-memory backend is rebuilt from
// the durable store on boot so a restart does not lose searchability; the
// pgvector backend is itself durable and needs no rebuild.
func buildIndexes(ctx context.Context, config *cloud.Config, sceneStore *store.SceneStore, dims map[model.Space]int) map[model.Space]store.VectorIndex {
	indexes := make(map[model.Space]store.VectorIndex, len(dims))
	for space, dim := range dims {
		switch config.Index.Backend {
		case "pgvector":
			idx, err := store.NewPgVectorIndex(ctx, config.Index.PostgresDSN, space, dim)
			if err != nil {
				log.Fatalf("failed to open pgvector index for space %s: %v", space, err)
			}
			indexes[space] = idx
		default:
			idx := store.NewMemoryIndex(space, dim)
			embeddings, err := sceneStore.ListEmbeddings(ctx, space)
			if err != nil {
				log.Fatalf("failed to load %s embeddings for index rebuild: %v", space, err)
			}
			if err := idx.Upsert(ctx, embeddings...); err != nil {
				log.Fatalf("failed to rebuild %s index: %v", space, err)
			}
			idx.Flush()
			indexes[space] = idx
		}
	}
	return indexes
}

func InitState(ctx context.Context) {
	// Get the config file
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}
	state.cloud = cloudClients

	dims := spaceDimensions(config)
	sceneStore, err := store.NewSceneStore(config.Storage.SceneDatabasePath, dims)
	if err != nil {
		panic(err)
	}
	state.sceneStore = sceneStore
	state.indexes = buildIndexes(ctx, config, sceneStore, dims)

	// Bind each configured space's quota-aware embedder to the search
	// service's encoder interface.
	encoders := make(map[model.Space]services.TextEncoder, len(cloudClients.Encoders))
	for name, enc := range cloudClients.Encoders {
		space, err := model.ParseSpace(name)
		if err != nil {
			log.Fatalf("encoder configured for unknown space %q", name)
		}
		encoders[space] = enc
	}

	state.searchService = services.NewSearchService(
		encoders,
		state.indexes,
		sceneStore,
		config.Search.MinSimilarity,
		config.Search.DefaultLimit,
	)

	state.sceneService = &services.SceneService{
		Store:         sceneStore,
		StorageClient: cloudClients.StorageClient,
		IAMClient:     cloudClients.IAMClient,
		SignerEmail:   config.Application.SignerServiceAccountEmail,
		UrlLifetime:   15 * time.Minute,
	}

	clusterer, err := analysis.NewClusterer(analysis.ClusterConfig{
		Epsilon:        config.Clustering.Epsilon,
		MinSamples:     config.Clustering.MinSamples,
		MinClusterSize: config.Clustering.MinClusterSize,
	})
	if err != nil {
		log.Fatalf("invalid clustering configuration: %v", err)
	}
	state.runner = analysis.NewRunner(
		sceneStore,
		clusterer,
		analysis.NewUniquenessAnalyzer(analysis.UniquenessConfig{
			HighSimilarity:   config.Uniqueness.HighSimilarity,
			MediumSimilarity: config.Uniqueness.MediumSimilarity,
			ExcellentCut:     config.Uniqueness.ExcellentCut,
			GoodCut:          config.Uniqueness.GoodCut,
			ModerateCut:      config.Uniqueness.ModerateCut,
		}),
		analysis.NewCostOptimizer(analysis.CostConfig{
			UnitCostPerScene:  config.Cost.UnitCostPerScene,
			CriticalRisk:      config.Cost.CriticalRisk,
			HighRisk:          config.Cost.HighRisk,
			HighRiskRetention: config.Cost.HighRiskRetention,
		}),
		dims[model.SpaceBehavioral],
		dims[model.SpaceVisual],
	)

	state.analysisRefresh = workflow.NewAnalysisRefreshWorkflow(config, cloudClients, state.runner)
	state.analysisRefresh.StartTimer()

	SetupListeners(config, cloudClients, ctx)
}
