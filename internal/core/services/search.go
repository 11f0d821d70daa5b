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

// Package services contains the business logic for interacting with data
// sources. This file, `search.go`, defines the SearchService, which implements
// the twin-engine semantic search. A query is executed against the behavioral
// and visual vector indexes in parallel, and the per-engine result sets are
// merged into a single deduplicated ranking with cross-engine consensus
// flagging.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/store"
	"golang.org/x/sync/errgroup"
)

// Sentinel errors for the failure modes a search can hit. Handlers map these
// onto HTTP status codes; everything else is an internal error.
var (
	// ErrInvalidQuery indicates the request did not set exactly one of query
	// text or a reference scene id, or named an unknown engine.
	ErrInvalidQuery = errors.New("invalid search query")

	// ErrQueryEmbeddingFailed indicates the upstream text encoder failed. The
	// whole search aborts; a partial result is never returned as success.
	ErrQueryEmbeddingFailed = errors.New("query embedding failed")

	// ErrIndexUnavailable indicates a required engine has no backing index.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)

// TextEncoder converts free text into a vector in one embedding space. The
// production implementation calls Vertex AI through a quota-aware wrapper;
// tests substitute a deterministic fake.
type TextEncoder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchService encapsulates the encoders, indexes, and configuration needed
// to perform twin-engine searches. It is stateless across requests: all
// mutable state lives in the indexes, which serialize their own writes.
type SearchService struct {
	Encoders      map[model.Space]TextEncoder       // Text encoders keyed by embedding space.
	Indexes       map[model.Space]store.VectorIndex // Live vector indexes keyed by embedding space.
	Store         *store.SceneStore                 // Durable store, used to hydrate result metadata.
	MinSimilarity float64                           // Scores below this are filtered; also the consensus floor.
	DefaultLimit  int                               // Result limit applied when the caller sends none.
}

// NewSearchService is the constructor for the SearchService.
//
// Inputs:
//   - encoders: Text encoders keyed by embedding space.
//   - indexes: Vector indexes keyed by embedding space.
//   - sceneStore: The durable scene store.
//   - minSimilarity: The minimum unified score for a result to be returned.
//   - defaultLimit: The result limit used when the query carries none.
//
// Outputs:
//   - *SearchService: A pointer to the newly created service.
func NewSearchService(
	encoders map[model.Space]TextEncoder,
	indexes map[model.Space]store.VectorIndex,
	sceneStore *store.SceneStore,
	minSimilarity float64,
	defaultLimit int) *SearchService {
	return &SearchService{
		Encoders:      encoders,
		Indexes:       indexes,
		Store:         sceneStore,
		MinSimilarity: minSimilarity,
		DefaultLimit:  defaultLimit,
	}
}

// engineResult carries one engine's raw top-K back from the parallel fan-out.
type engineResult struct {
	space model.Space
	hits  []store.Hit
}

// sceneAggregate accumulates per-engine evidence for one scene during the
// merge step.
type sceneAggregate struct {
	behavioralScore float64
	visualScore     float64
	inBehavioral    bool
	inVisual        bool
	cameras         []store.Hit // Visual camera-level hits, all cameras.
}

// FindScenes executes one twin-engine search.
//
// Free-text queries are embedded into the behavioral space, and into the
// visual space as well when the caller selects it. Reference-scene queries
// reuse the scene's stored visual embedding directly and run only the visual
// engine. Each selected engine returns its own top-K; results are then
// deduplicated by scene, scored by the best engine score, consensus-flagged,
// filtered against the minimum similarity, and sorted.
//
// An engine without a backing index or encoder degrades the search to the
// remaining engines unless the caller named that engine explicitly, in which
// case the search fails with ErrIndexUnavailable.
//
// Inputs:
//   - ctx: The context for the request, used for cancellation, deadlines, and tracing.
//   - query: The search request. Exactly one of Query or SceneId must be set.
//
// Outputs:
//   - *model.SearchResponse: The reconciled results plus engine and timing metadata.
//   - error: One of the sentinel errors above, or an internal failure.
func (s *SearchService) FindScenes(ctx context.Context, query *model.SearchQuery) (*model.SearchResponse, error) {
	start := time.Now()

	if (query.Query == "") == (query.SceneId == "") {
		return nil, fmt.Errorf("%w: exactly one of query or scene_id must be set", ErrInvalidQuery)
	}
	limit := query.Limit
	if limit <= 0 {
		limit = s.DefaultLimit
	}

	selected, required, err := s.selectEngines(query)
	if err != nil {
		return nil, err
	}

	// Resolve the query vector for each selected engine before touching the
	// indexes, so an encoder failure aborts cleanly with nothing half-done.
	// A missing encoder degrades a non-required engine the same way a
	// missing index does.
	vectors := make(map[model.Space][]float32, len(selected))
	for _, space := range selected {
		if query.Query != "" {
			if _, ok := s.Encoders[space]; !ok {
				if required[space] {
					return nil, fmt.Errorf("%w: no encoder for space %s", ErrIndexUnavailable, space)
				}
				slog.Warn("engine has no encoder, degrading search", "space", string(space))
				continue
			}
		}
		var vec []float32
		if query.SceneId != "" {
			vec, err = s.referenceVector(ctx, query.SceneId, space)
		} else {
			vec, err = s.embedQuery(ctx, query.Query, space)
		}
		if err != nil {
			return nil, err
		}
		vectors[space] = vec
	}

	// Fan the engines out in parallel. Each engine is independent and the
	// indexes are safe for concurrent reads.
	results := make(chan engineResult, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	active := make([]model.Space, 0, len(selected))
	for _, space := range selected {
		vec, resolved := vectors[space]
		if !resolved {
			continue
		}
		idx, ok := s.Indexes[space]
		if !ok {
			if required[space] {
				return nil, fmt.Errorf("%w: %s", ErrIndexUnavailable, space)
			}
			slog.Warn("engine unavailable, degrading search", "space", string(space))
			continue
		}
		active = append(active, space)
		g.Go(func() error {
			hits, err := idx.Search(gctx, vec, limit)
			if err != nil {
				return fmt.Errorf("%s engine search failed: %w", idx.Space(), err)
			}
			results <- engineResult{space: idx.Space(), hits: hits}
			return nil
		})
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: no engine available for this query", ErrIndexUnavailable)
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)

	merged := s.merge(results)
	out, err := s.rank(ctx, merged, limit)
	if err != nil {
		return nil, err
	}

	sort.Slice(active, func(i, j int) bool { return active[i] < active[j] })
	echo := query.Query
	if echo == "" {
		echo = query.SceneId
	}
	return &model.SearchResponse{
		Query:         echo,
		Results:       out,
		EnginesActive: active,
		TotalResults:  len(out),
		SearchTime:    time.Since(start).Seconds(),
	}, nil
}

// selectEngines maps the query's engine selector onto the set of spaces to
// search and records which of them the caller named explicitly. Explicitly
// named engines must be available; the rest may degrade.
func (s *SearchService) selectEngines(query *model.SearchQuery) (selected []model.Space, required map[model.Space]bool, err error) {
	required = make(map[model.Space]bool)

	// A reference-scene query reuses the stored visual embedding, so only the
	// visual engine can serve it.
	if query.SceneId != "" {
		required[model.SpaceVisual] = true
		return []model.Space{model.SpaceVisual}, required, nil
	}

	switch query.IndexType {
	case model.IndexTypeBehavioral:
		required[model.SpaceBehavioral] = true
		return []model.Space{model.SpaceBehavioral}, required, nil
	case model.IndexTypeVisual:
		required[model.SpaceVisual] = true
		return []model.Space{model.SpaceVisual}, required, nil
	case model.IndexTypeBoth, "":
		// Neither engine is individually required; the search degrades to
		// whichever is available.
		return []model.Space{model.SpaceBehavioral, model.SpaceVisual}, required, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown index_type %q", ErrInvalidQuery, query.IndexType)
	}
}

// embedQuery converts the query text into a vector in the given space via the
// space's encoder.
func (s *SearchService) embedQuery(ctx context.Context, text string, space model.Space) ([]float32, error) {
	enc, ok := s.Encoders[space]
	if !ok {
		return nil, fmt.Errorf("%w: no encoder for space %s", ErrIndexUnavailable, space)
	}
	vec, err := enc.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w for space %s: %v", ErrQueryEmbeddingFailed, space, err)
	}
	return vec, nil
}

// referenceVector loads the stored visual embedding of the reference scene.
// Scenes carry one visual embedding per camera; the first camera in the
// scene's channel list that has one is used, which is deterministic for a
// given stored scene.
func (s *SearchService) referenceVector(ctx context.Context, sceneId string, space model.Space) ([]float32, error) {
	scene, err := s.Store.GetScene(ctx, sceneId)
	if err != nil {
		return nil, fmt.Errorf("%w: reference scene %s: %v", ErrInvalidQuery, sceneId, err)
	}
	for _, channel := range scene.Cameras {
		e, err := s.Store.GetEmbedding(ctx, sceneId, channel.Camera, space)
		if errors.Is(err, store.ErrEmbeddingNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return e.Vector, nil
	}
	return nil, fmt.Errorf("%w: reference scene %s has no %s embedding", ErrInvalidQuery, sceneId, space)
}

// merge folds the raw per-engine result sets into per-scene aggregates. Within
// an engine a scene keeps its best camera's score, but the full camera list is
// preserved for display.
func (s *SearchService) merge(results <-chan engineResult) map[string]*sceneAggregate {
	merged := make(map[string]*sceneAggregate)
	for r := range results {
		for _, hit := range r.hits {
			agg, ok := merged[hit.SceneId]
			if !ok {
				agg = &sceneAggregate{}
				merged[hit.SceneId] = agg
			}
			switch r.space {
			case model.SpaceBehavioral:
				if !agg.inBehavioral || hit.Score > agg.behavioralScore {
					agg.behavioralScore = hit.Score
				}
				agg.inBehavioral = true
			case model.SpaceVisual:
				if !agg.inVisual || hit.Score > agg.visualScore {
					agg.visualScore = hit.Score
				}
				agg.inVisual = true
				agg.cameras = append(agg.cameras, hit)
			}
		}
	}
	return merged
}

// rank turns the per-scene aggregates into the final ordered result list:
// unified scoring, consensus flagging, similarity filtering, deterministic
// ordering, and metadata hydration from the durable store.
func (s *SearchService) rank(ctx context.Context, merged map[string]*sceneAggregate, limit int) ([]*model.SearchResult, error) {
	out := make([]*model.SearchResult, 0, len(merged))
	for sceneId, agg := range merged {
		unified := agg.behavioralScore
		if agg.visualScore > unified {
			unified = agg.visualScore
		}
		if unified < s.MinSimilarity {
			continue
		}

		result := &model.SearchResult{
			SceneId:         sceneId,
			Score:           unified,
			BehavioralScore: agg.behavioralScore,
			VisualScore:     agg.visualScore,
			Engines:         make([]model.Space, 0, 2),
			Matches:         make([]string, 0, 2),
			IsVerified: agg.inBehavioral && agg.inVisual &&
				agg.behavioralScore >= s.MinSimilarity && agg.visualScore >= s.MinSimilarity,
		}
		if agg.inBehavioral {
			result.Engines = append(result.Engines, model.SpaceBehavioral)
			result.Matches = append(result.Matches, model.MatchLabelBehavioral)
		}
		if agg.inVisual {
			result.Engines = append(result.Engines, model.SpaceVisual)
			result.Matches = append(result.Matches, model.MatchLabelVisual)
		}

		scene, err := s.Store.GetScene(ctx, sceneId)
		if err != nil {
			// An index hit for a scene missing from the durable store means
			// the two drifted; surface the rest of the results rather than
			// failing the query.
			slog.Warn("indexed scene missing from store", "scene_id", sceneId, "error", err)
			continue
		}
		result.Description = scene.Summary

		// Sort camera hits best first, then attach each camera's video
		// locator from the scene's channel list.
		sort.Slice(agg.cameras, func(i, j int) bool {
			if agg.cameras[i].Score != agg.cameras[j].Score {
				return agg.cameras[i].Score > agg.cameras[j].Score
			}
			return agg.cameras[i].CameraId < agg.cameras[j].CameraId
		})
		uris := make(map[string]string, len(scene.Cameras))
		for _, channel := range scene.Cameras {
			uris[channel.Camera] = channel.VideoUri
		}
		for _, hit := range agg.cameras {
			result.Cameras = append(result.Cameras, model.CameraHit{
				Camera:   hit.CameraId,
				Score:    hit.Score,
				VideoUri: uris[hit.CameraId],
			})
		}

		out = append(out, result)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SceneId < out[j].SceneId
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
