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

// This file exercises the within-category redundancy measurement: the
// pairwise similarity distribution, the uniqueness score, and the quality
// tiers.
package analysis_test

import (
	"testing"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/analysis"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
	"github.com/stretchr/testify/assert"
)

// TestUniquenessIdenticalMembers verifies that a category of near-duplicate
// scenes scores zero uniqueness and the poorest quality tier.
func TestUniquenessIdenticalMembers(t *testing.T) {
	a := analysis.NewUniquenessAnalyzer(analysis.DefaultUniquenessConfig())

	vectors := [][]float64{
		{1, 0, 0},
		{1, 0, 0},
		{2, 0, 0}, // Same direction, so cosine 1 despite the magnitude.
	}
	distribution, uniqueness, quality := a.Analyze(vectors)
	assert.Equal(t, model.SimilarityDistribution{High: 3}, distribution)
	assert.Equal(t, 0.0, uniqueness)
	assert.Equal(t, model.UniquenessPoor, quality)
}

// TestUniquenessDistinctMembers verifies that mutually orthogonal members
// score full uniqueness.
func TestUniquenessDistinctMembers(t *testing.T) {
	a := analysis.NewUniquenessAnalyzer(analysis.DefaultUniquenessConfig())

	vectors := [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	distribution, uniqueness, quality := a.Analyze(vectors)
	assert.Equal(t, model.SimilarityDistribution{Low: 3}, distribution)
	assert.Equal(t, 1.0, uniqueness)
	assert.Equal(t, model.UniquenessExcellent, quality)
}

// TestUniquenessMediumBand verifies that related-but-distinct pairs land in
// the medium bucket without dragging the uniqueness score down.
func TestUniquenessMediumBand(t *testing.T) {
	a := analysis.NewUniquenessAnalyzer(analysis.DefaultUniquenessConfig())

	// cosine([1,0], [1,0.5]) = 1/sqrt(1.25) ~ 0.894: medium, not high.
	distribution, uniqueness, _ := a.Analyze([][]float64{{1, 0}, {1, 0.5}})
	assert.Equal(t, model.SimilarityDistribution{Medium: 1}, distribution)
	assert.Equal(t, 1.0, uniqueness)
}

// TestUniquenessSmallCategories verifies the degenerate boundary: fewer
// than two members means no pairs, so uniqueness is defined as 1.
func TestUniquenessSmallCategories(t *testing.T) {
	a := analysis.NewUniquenessAnalyzer(analysis.DefaultUniquenessConfig())

	for _, vectors := range [][][]float64{nil, {{1, 0, 0}}} {
		distribution, uniqueness, quality := a.Analyze(vectors)
		assert.Equal(t, model.SimilarityDistribution{}, distribution)
		assert.Equal(t, 1.0, uniqueness)
		assert.Equal(t, model.UniquenessExcellent, quality)
	}
}

// TestQualityTiers verifies the configured tier cut points, including the
// at-boundary cases which belong to the higher tier.
func TestQualityTiers(t *testing.T) {
	a := analysis.NewUniquenessAnalyzer(analysis.DefaultUniquenessConfig())

	cases := []struct {
		uniqueness float64
		want       string
	}{
		{1.0, model.UniquenessExcellent},
		{0.8, model.UniquenessExcellent},
		{0.79, model.UniquenessGood},
		{0.6, model.UniquenessGood},
		{0.59, model.UniquenessModerate},
		{0.4, model.UniquenessModerate},
		{0.39, model.UniquenessPoor},
		{0.0, model.UniquenessPoor},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, a.Quality(tc.uniqueness), "uniqueness %v", tc.uniqueness)
	}
}

// TestEstimatedUniqueScenes verifies the rounding rule for converting a
// uniqueness score into a scene count.
func TestEstimatedUniqueScenes(t *testing.T) {
	assert.Equal(t, 30, analysis.EstimatedUniqueScenes(100, 0.3))
	assert.Equal(t, 1, analysis.EstimatedUniqueScenes(3, 0.34))
	assert.Equal(t, 3, analysis.EstimatedUniqueScenes(3, 1.0))
	assert.Equal(t, 0, analysis.EstimatedUniqueScenes(0, 0.5))
}
