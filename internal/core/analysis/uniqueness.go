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
// measures within-category redundancy: how many of a category's scenes are
// genuinely distinct versus near-duplicates of one another.
//
// The computation is O(n^2) pairwise cosine similarity within one category.
// Categories are small relative to the fleet, so the quadratic cost is
// accepted in exchange for an exact distribution.
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
)

// UniquenessConfig holds the similarity thresholds and quality-tier cut
// points. All values are configuration, not law; the defaults below mirror
// the documented design defaults.
type UniquenessConfig struct {
	HighSimilarity   float64 // Pairs at or above this similarity count as near-duplicates.
	MediumSimilarity float64 // Pairs at or above this (but below high) count as related.
	ExcellentCut     float64 // uniqueness >= this => "excellent".
	GoodCut          float64 // uniqueness >= this => "good".
	ModerateCut      float64 // uniqueness >= this => "moderate", else "poor".
}

// DefaultUniquenessConfig returns the documented default thresholds.
func DefaultUniquenessConfig() UniquenessConfig {
	return UniquenessConfig{
		HighSimilarity:   0.92,
		MediumSimilarity: 0.75,
		ExcellentCut:     0.8,
		GoodCut:          0.6,
		ModerateCut:      0.4,
	}
}

// UniquenessAnalyzer derives a category's similarity distribution,
// uniqueness score, and quality tier from its members' combined vectors.
type UniquenessAnalyzer struct {
	cfg UniquenessConfig
}

// NewUniquenessAnalyzer creates an analyzer with the given thresholds.
func NewUniquenessAnalyzer(cfg UniquenessConfig) *UniquenessAnalyzer {
	return &UniquenessAnalyzer{cfg: cfg}
}

// Analyze fills in the redundancy fields of one category.
//
// The uniqueness score is 1 minus the proportion of member pairs above the
// high-similarity threshold: it decreases monotonically as near-duplicate
// pairs come to dominate, reaches ~1 for fully distinct categories, and is
// defined as 1 for categories with fewer than two members.
//
// Inputs:
//   - vectors: The members' combined vectors (same order as the category's
//     scene ids).
//
// Outputs:
//   - distribution: Counts of high/medium/low-similarity pairs.
//   - uniqueness: The uniqueness score in [0, 1].
//   - quality: The thresholded tier name.
func (a *UniquenessAnalyzer) Analyze(vectors [][]float64) (distribution model.SimilarityDistribution, uniqueness float64, quality string) {
	n := len(vectors)
	if n < 2 {
		return model.SimilarityDistribution{}, 1.0, a.Quality(1.0)
	}

	units := make([][]float64, n)
	for i, v := range vectors {
		u := make([]float64, len(v))
		copy(u, v)
		if norm := floats.Norm(u, 2); norm > 0 {
			floats.Scale(1/norm, u)
		}
		units[i] = u
	}

	total := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			total++
			switch sim := floats.Dot(units[i], units[j]); {
			case sim >= a.cfg.HighSimilarity:
				distribution.High++
			case sim >= a.cfg.MediumSimilarity:
				distribution.Medium++
			default:
				distribution.Low++
			}
		}
	}

	uniqueness = 1 - float64(distribution.High)/float64(total)
	return distribution, uniqueness, a.Quality(uniqueness)
}

// Quality maps a uniqueness score to its configured tier name.
func (a *UniquenessAnalyzer) Quality(uniqueness float64) string {
	switch {
	case uniqueness >= a.cfg.ExcellentCut:
		return model.UniquenessExcellent
	case uniqueness >= a.cfg.GoodCut:
		return model.UniquenessGood
	case uniqueness >= a.cfg.ModerateCut:
		return model.UniquenessModerate
	default:
		return model.UniquenessPoor
	}
}

// EstimatedUniqueScenes converts a uniqueness score into a scene count.
func EstimatedUniqueScenes(totalScenes int, uniqueness float64) int {
	return int(math.Round(float64(totalScenes) * uniqueness))
}
