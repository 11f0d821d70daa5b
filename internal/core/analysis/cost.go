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
// implements the safety-weighted cost optimizer: the policy that decides how
// many scenes in a category must actually be retained for HIL testing and
// what that retention costs.
//
// The safety rules are a hard invariant of the policy, not a tunable
// heuristic: cost-saving logic must never override safety-critical
// retention. A category holding any critical-risk scene is retained in full
// regardless of how redundant it is.
//
// The policy is applied per category: one critical scene forces 100%
// retention of its whole category. Whether retention should instead be
// decided per scene is an open product question recorded in DESIGN.md.
package analysis

import (
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
)

// CostConfig carries the pricing and risk-band parameters.
type CostConfig struct {
	UnitCostPerScene  float64 // DTO cost of transferring one scene, USD.
	CriticalRisk      float64 // risk > this => critical band, zero-skip.
	HighRisk          float64 // risk >= this (and not critical) => high band.
	HighRiskRetention float64 // Minimum retained fraction for the high band.
}

// DefaultCostConfig returns the documented default policy parameters.
func DefaultCostConfig() CostConfig {
	return CostConfig{
		UnitCostPerScene:  12.50,
		CriticalRisk:      0.8,
		HighRisk:          0.5,
		HighRiskRetention: 0.8,
	}
}

// CostOptimizer prices categories under the safety-weighted retention policy.
type CostOptimizer struct {
	cfg CostConfig
}

// NewCostOptimizer creates an optimizer with the given policy parameters.
func NewCostOptimizer(cfg CostConfig) *CostOptimizer {
	return &CostOptimizer{cfg: cfg}
}

// riskBand classifies the highest member risk score into a policy band.
func (o *CostOptimizer) riskBand(maxRisk float64) (band string, multiplier float64) {
	switch {
	case maxRisk > o.cfg.CriticalRisk:
		// Zero-skip: every scene in a critical category is retained.
		return model.RiskBandCritical, 1.0
	case maxRisk >= o.cfg.HighRisk:
		return model.RiskBandHigh, o.cfg.HighRiskRetention
	default:
		return model.RiskBandRoutine, 0.0
	}
}

// Price fills in the retention and cost fields of one category.
//
// retained_fraction = max(uniqueness_score, safety_multiplier(risk_band)),
// so uniqueness can only ever raise retention above the safety floor, never
// lower it below.
//
// Inputs:
//   - category: The category to price; UniquenessScore and TotalScenes must
//     already be populated.
//   - riskScores: The members' risk scores, in any order.
func (o *CostOptimizer) Price(category *model.OddCategory, riskScores []float64) {
	maxRisk := 0.0
	for _, r := range riskScores {
		if r > maxRisk {
			maxRisk = r
		}
	}

	band, multiplier := o.riskBand(maxRisk)
	retained := category.UniquenessScore
	if multiplier > retained {
		retained = multiplier
	}

	n := float64(category.TotalScenes)
	naive := n * o.cfg.UnitCostPerScene
	intelligent := n * retained * o.cfg.UnitCostPerScene

	category.RiskBand = band
	category.RetainedFraction = retained
	category.DtoValueEstimate = naive
	category.Cost = model.CostEstimate{
		NaiveCost:             naive,
		IntelligentCost:       intelligent,
		Savings:               naive - intelligent,
		EfficiencyGainPercent: efficiencyGain(naive, naive-intelligent),
	}
}

// Aggregate sums per-category estimates into one fleet-level estimate.
func Aggregate(categories []*model.OddCategory) model.CostEstimate {
	var out model.CostEstimate
	for _, c := range categories {
		out.NaiveCost += c.Cost.NaiveCost
		out.IntelligentCost += c.Cost.IntelligentCost
	}
	out.Savings = out.NaiveCost - out.IntelligentCost
	out.EfficiencyGainPercent = efficiencyGain(out.NaiveCost, out.Savings)
	return out
}

// efficiencyGain guards the zero-denominator boundary: an empty population
// reports a 0% gain rather than a division error.
func efficiencyGain(naive, savings float64) float64 {
	if naive == 0 {
		return 0
	}
	return savings / naive * 100
}
