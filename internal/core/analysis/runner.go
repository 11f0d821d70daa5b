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

// Package analysis implements the batch side of the engine. This file
// drives one complete analysis run: load the indexed population, combine
// embeddings, discover categories, measure redundancy, price retention, and
// publish the result as an immutable snapshot.
//
// Runs are serialized behind each other by a mutex, so two runs can never
// interleave partial results. The published snapshot is swapped atomically:
// readers always see either the previous complete snapshot or the new one.
// A failed or cancelled run publishes nothing, leaving the prior snapshot as
// the system of record.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
)

// SceneSource is the slice of the store the runner reads. *store.SceneStore
// satisfies it; tests substitute fixtures.
type SceneSource interface {
	ListScenes(ctx context.Context) ([]*model.Scene, error)
	ListEmbeddings(ctx context.Context, space model.Space) ([]*model.Embedding, error)
}

// Runner owns the full analysis pipeline and the current published snapshot.
type Runner struct {
	source        SceneSource
	clusterer     *Clusterer
	analyzer      *UniquenessAnalyzer
	optimizer     *CostOptimizer
	behavioralDim int
	visualDim     int

	runMu   sync.Mutex
	current atomic.Pointer[model.AnalysisSnapshot]
}

// NewRunner assembles a runner from its pipeline stages.
func NewRunner(source SceneSource, clusterer *Clusterer, analyzer *UniquenessAnalyzer, optimizer *CostOptimizer, behavioralDim, visualDim int) *Runner {
	return &Runner{
		source:        source,
		clusterer:     clusterer,
		analyzer:      analyzer,
		optimizer:     optimizer,
		behavioralDim: behavioralDim,
		visualDim:     visualDim,
	}
}

// Current returns the most recently published snapshot, or nil before the
// first run completes.
func (r *Runner) Current() *model.AnalysisSnapshot {
	return r.current.Load()
}

// Run executes one analysis pass over the full indexed population and, on
// success, publishes its snapshot. Concurrent callers queue behind the run
// in progress.
//
// Inputs:
//   - ctx: Cancellation is honored cooperatively inside the clustering pass;
//     a cancelled run discards all partial results.
//
// Outputs:
//   - *model.AnalysisSnapshot: The newly published snapshot.
//   - error: Any load, clustering, or cancellation error; the previously
//     published snapshot is untouched on error.
func (r *Runner) Run(ctx context.Context) (*model.AnalysisSnapshot, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	scenes, err := r.source.ListScenes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenes for analysis: %w", err)
	}
	sceneById := make(map[string]*model.Scene, len(scenes))
	for _, s := range scenes {
		sceneById[s.Id] = s
	}

	behavioral, err := r.source.ListEmbeddings(ctx, model.SpaceBehavioral)
	if err != nil {
		return nil, fmt.Errorf("failed to load behavioral embeddings: %w", err)
	}
	visual, err := r.source.ListEmbeddings(ctx, model.SpaceVisual)
	if err != nil {
		return nil, fmt.Errorf("failed to load visual embeddings: %w", err)
	}

	// One representative vector per scene that has at least one embedding.
	behavioralByScene := make(map[string]*model.Embedding, len(behavioral))
	for _, e := range behavioral {
		behavioralByScene[e.SceneId] = e
	}
	visualByScene := make(map[string][]*model.Embedding)
	for _, e := range visual {
		visualByScene[e.SceneId] = append(visualByScene[e.SceneId], e)
	}

	idSet := make(map[string]struct{}, len(behavioralByScene))
	for id := range behavioralByScene {
		idSet[id] = struct{}{}
	}
	for id := range visualByScene {
		idSet[id] = struct{}{}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	vectors := make([][]float64, len(ids))
	for i, id := range ids {
		vectors[i] = CombineSceneVector(behavioralByScene[id], visualByScene[id], r.behavioralDim, r.visualDim)
	}

	clusters, noise, err := r.clusterer.Cluster(ctx, vectors)
	if err != nil {
		return nil, err
	}

	categories := make([]*model.OddCategory, 0, len(clusters))
	for i, members := range clusters {
		category := &model.OddCategory{
			Id:          i + 1,
			TotalScenes: len(members),
		}
		memberVectors := make([][]float64, 0, len(members))
		memberScenes := make([]*model.Scene, 0, len(members))
		riskScores := make([]float64, 0, len(members))
		for _, idx := range members {
			category.SceneIds = append(category.SceneIds, ids[idx])
			memberVectors = append(memberVectors, vectors[idx])
			if scene, ok := sceneById[ids[idx]]; ok {
				memberScenes = append(memberScenes, scene)
				riskScores = append(riskScores, scene.RiskScore)
			}
		}

		distribution, uniqueness, quality := r.analyzer.Analyze(memberVectors)
		category.SimilarityDistribution = distribution
		category.UniquenessScore = uniqueness
		category.RedundancyRatio = 1 - uniqueness
		category.UniquenessQuality = quality
		category.EstimatedUniqueScenes = EstimatedUniqueScenes(category.TotalScenes, uniqueness)
		category.Description = Describe(memberScenes)
		r.optimizer.Price(category, riskScores)

		categories = append(categories, category)
	}

	noiseIds := make([]string, 0, len(noise))
	for _, idx := range noise {
		noiseIds = append(noiseIds, ids[idx])
	}

	snapshot := &model.AnalysisSnapshot{
		Id:            uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		Categories:    categories,
		NoiseSceneIds: noiseIds,
		Savings:       Aggregate(categories),
	}
	r.current.Store(snapshot)
	return snapshot, nil
}
