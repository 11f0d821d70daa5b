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

// This file exercises the safety-weighted cost policy. The central property
// is the safety override: no amount of redundancy may reduce retention for a
// category that holds a critical-risk scene.
package analysis_test

import (
	"testing"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/analysis"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func price(t *testing.T, totalScenes int, uniqueness float64, riskScores []float64) *model.OddCategory {
	t.Helper()
	o := analysis.NewCostOptimizer(analysis.DefaultCostConfig())
	category := &model.OddCategory{TotalScenes: totalScenes, UniquenessScore: uniqueness}
	o.Price(category, riskScores)
	return category
}

// TestPriceCriticalOverridesRedundancy verifies the safety override: one
// critical-risk scene forces full retention of its category no matter how
// redundant the category is.
func TestPriceCriticalOverridesRedundancy(t *testing.T) {
	category := price(t, 50, 0.1, []float64{0.2, 0.3, 0.95})

	assert.Equal(t, model.RiskBandCritical, category.RiskBand)
	assert.Equal(t, 1.0, category.RetainedFraction)
	assert.Equal(t, category.Cost.NaiveCost, category.Cost.IntelligentCost)
	assert.Equal(t, 0.0, category.Cost.Savings)
	assert.Equal(t, 0.0, category.Cost.EfficiencyGainPercent)
}

// TestPriceHighRiskFloor verifies the high band's retention floor and that
// uniqueness can raise retention above the floor but never below it.
func TestPriceHighRiskFloor(t *testing.T) {
	floored := price(t, 10, 0.3, []float64{0.6})
	assert.Equal(t, model.RiskBandHigh, floored.RiskBand)
	assert.Equal(t, 0.8, floored.RetainedFraction)

	raised := price(t, 10, 0.9, []float64{0.6})
	assert.Equal(t, model.RiskBandHigh, raised.RiskBand)
	assert.Equal(t, 0.9, raised.RetainedFraction)
}

// TestPriceRoutineTracksUniqueness verifies that routine categories retain
// exactly their unique fraction.
func TestPriceRoutineTracksUniqueness(t *testing.T) {
	category := price(t, 100, 0.3, []float64{0.2, 0.1})

	assert.Equal(t, model.RiskBandRoutine, category.RiskBand)
	assert.Equal(t, 0.3, category.RetainedFraction)
	assert.InDelta(t, 1250.0, category.Cost.NaiveCost, 1e-9)
	assert.InDelta(t, 375.0, category.Cost.IntelligentCost, 1e-9)
	assert.InDelta(t, 875.0, category.Cost.Savings, 1e-9)
	assert.InDelta(t, 70.0, category.Cost.EfficiencyGainPercent, 1e-9)
}

// TestPriceBandBoundaries verifies the band edges: the critical band is
// strictly above its threshold, the high band is inclusive of its own.
func TestPriceBandBoundaries(t *testing.T) {
	assert.Equal(t, model.RiskBandHigh, price(t, 5, 0.0, []float64{0.8}).RiskBand)
	assert.Equal(t, model.RiskBandCritical, price(t, 5, 0.0, []float64{0.81}).RiskBand)
	assert.Equal(t, model.RiskBandHigh, price(t, 5, 0.0, []float64{0.5}).RiskBand)
	assert.Equal(t, model.RiskBandRoutine, price(t, 5, 0.0, []float64{0.49}).RiskBand)
	assert.Equal(t, model.RiskBandRoutine, price(t, 5, 0.0, nil).RiskBand)
}

// TestPriceMonotonicity verifies that intelligent cost never decreases as
// uniqueness rises, and never exceeds the naive cost.
func TestPriceMonotonicity(t *testing.T) {
	prev := -1.0
	for _, u := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1.0} {
		category := price(t, 40, u, []float64{0.2})
		assert.GreaterOrEqual(t, category.Cost.IntelligentCost, prev)
		assert.LessOrEqual(t, category.Cost.IntelligentCost, category.Cost.NaiveCost)
		prev = category.Cost.IntelligentCost
	}
}

// TestAggregate verifies the fleet-level rollup and its zero-denominator
// boundary.
func TestAggregate(t *testing.T) {
	categories := []*model.OddCategory{
		{Cost: model.CostEstimate{NaiveCost: 1000, IntelligentCost: 300}},
		{Cost: model.CostEstimate{NaiveCost: 500, IntelligentCost: 500}},
	}
	total := analysis.Aggregate(categories)
	assert.InDelta(t, 1500.0, total.NaiveCost, 1e-9)
	assert.InDelta(t, 800.0, total.IntelligentCost, 1e-9)
	assert.InDelta(t, 700.0, total.Savings, 1e-9)
	assert.InDelta(t, 700.0/1500.0*100, total.EfficiencyGainPercent, 1e-9)

	empty := analysis.Aggregate(nil)
	assert.Equal(t, 0.0, empty.EfficiencyGainPercent)
}
