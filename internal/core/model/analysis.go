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

// Package model defines the core data structures for the application.
// This file contains the analysis model: the operating-domain categories
// discovered by density clustering, the per-category uniqueness and cost
// figures derived from them, and the immutable snapshot that bundles one
// complete analysis run.
//
// A snapshot is recomputed wholesale on every run and published atomically;
// readers always see either the previous complete snapshot or the new one,
// never a mixture.
package model

import "time"

// Uniqueness quality tiers, thresholded from the uniqueness score. The cut
// points live in configuration; these are only the tier names.
const (
	UniquenessExcellent = "excellent"
	UniquenessGood      = "good"
	UniquenessModerate  = "moderate"
	UniquenessPoor      = "poor"
)

// Risk bands used by the safety-weighted retention policy.
const (
	RiskBandCritical = "critical"
	RiskBandHigh     = "high"
	RiskBandRoutine  = "routine"
)

// SimilarityDistribution is a coarse histogram of the pairwise similarities
// inside one category: how many member pairs sit above the high threshold,
// between the medium and high thresholds, and below the medium threshold.
type SimilarityDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// CostEstimate holds the monetary effect of the retention policy, either for
// one category or aggregated over a whole snapshot. All values are USD.
type CostEstimate struct {
	NaiveCost             float64 `json:"naive_cost_usd"`          // Cost of transferring every scene.
	IntelligentCost       float64 `json:"intelligent_cost_usd"`    // Cost after the safety-weighted retention policy.
	Savings               float64 `json:"estimated_savings_usd"`   // NaiveCost - IntelligentCost.
	EfficiencyGainPercent float64 `json:"efficiency_gain_percent"` // Savings as a percentage of NaiveCost; 0 when NaiveCost is 0.
}

// OddCategory is one discovered operating-domain category: a density cluster
// of scenes in the combined embedding space, together with its redundancy
// analysis and retention pricing. Categories are rebuilt from scratch on
// every analysis run, never mutated incrementally.
type OddCategory struct {
	Id                     int                    `json:"category"`                // The cluster identifier within its snapshot.
	Description            string                 `json:"description"`             // Human-readable label derived from member tags.
	SceneIds               []string               `json:"-"`                       // Member scene identifiers.
	TotalScenes            int                    `json:"total_scenes"`            // Number of member scenes.
	EstimatedUniqueScenes  int                    `json:"estimated_unique_scenes"` // round(TotalScenes * UniquenessScore).
	UniquenessScore        float64                `json:"uniqueness_score"`        // Estimated fraction of members that are not near-duplicates.
	RedundancyRatio        float64                `json:"redundancy_ratio"`        // 1 - UniquenessScore.
	UniquenessQuality      string                 `json:"uniqueness_quality"`      // Tier name thresholded from UniquenessScore.
	SimilarityDistribution SimilarityDistribution `json:"similarity_distribution"` // Pairwise similarity histogram.
	DtoValueEstimate       float64                `json:"dto_value_estimate"`      // Estimated data-transfer-out value of the full category, USD.
	RiskBand               string                 `json:"risk_band"`               // The category's risk band under the retention policy.
	RetainedFraction       float64                `json:"retained_fraction"`       // Fraction of scenes the policy keeps; 1.0 for critical.
	Cost                   CostEstimate           `json:"cost"`                    // Per-category cost figures.
}

// AnalysisSnapshot is the immutable result of one complete analysis run:
// discovery, uniqueness analysis, and cost optimization over the full indexed
// scene population at a point in time.
type AnalysisSnapshot struct {
	Id            string         `json:"id"`                   // Unique snapshot identifier.
	CreatedAt     time.Time      `json:"created_at"`           // When the run completed.
	Categories    []*OddCategory `json:"categories"`           // The discovered categories.
	NoiseSceneIds []string       `json:"noise_scene_ids"`      // Scenes in low-density regions, excluded from uniqueness analysis.
	Savings       CostEstimate   `json:"dto_savings_estimate"` // Aggregate cost figures across all categories.
}

// SceneCount reports the total number of scenes covered by the snapshot,
// clustered members plus the noise bucket.
func (s *AnalysisSnapshot) SceneCount() int {
	n := len(s.NoiseSceneIds)
	for _, c := range s.Categories {
		n += c.TotalScenes
	}
	return n
}
