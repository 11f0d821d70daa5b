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

// This file exercises the deterministic tag-voting rules that turn a
// category's member tags into its description.
package analysis_test

import (
	"testing"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/analysis"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func tagged(tags map[string]string) *model.Scene {
	return &model.Scene{Tags: tags}
}

// TestDescribeMajorityVote verifies that the most frequent value wins per
// tag key and winners join in the fixed key order.
func TestDescribeMajorityVote(t *testing.T) {
	members := []*model.Scene{
		tagged(map[string]string{"environment_type": "highway", "weather_condition": "rain"}),
		tagged(map[string]string{"environment_type": "highway", "weather_condition": "clear"}),
		tagged(map[string]string{"environment_type": "urban_intersection", "weather_condition": "rain"}),
	}
	assert.Equal(t, "highway, rain", analysis.Describe(members))
}

// TestDescribeTieBreak verifies that frequency ties resolve to the
// lexicographically smaller value, keeping the description stable across
// runs.
func TestDescribeTieBreak(t *testing.T) {
	members := []*model.Scene{
		tagged(map[string]string{"weather_condition": "snow"}),
		tagged(map[string]string{"weather_condition": "fog"}),
	}
	assert.Equal(t, "fog", analysis.Describe(members))
}

// TestDescribeSkipsAbsentKeys verifies that keys no member carries simply
// drop out rather than leaving empty segments.
func TestDescribeSkipsAbsentKeys(t *testing.T) {
	members := []*model.Scene{
		tagged(map[string]string{"time_of_day": "night", "maneuver": "lane_change"}),
		tagged(map[string]string{"time_of_day": "night"}),
	}
	assert.Equal(t, "night, lane_change", analysis.Describe(members))
}

// TestDescribeFallback verifies the label used when no member carries any
// known tag key.
func TestDescribeFallback(t *testing.T) {
	assert.Equal(t, analysis.DescribeFallback, analysis.Describe(nil))
	assert.Equal(t, analysis.DescribeFallback, analysis.Describe([]*model.Scene{
		tagged(nil),
		tagged(map[string]string{"unrelated": "value"}),
	}))
}

// TestDescribeIgnoresEmptyValues verifies that empty tag values do not
// participate in the vote.
func TestDescribeIgnoresEmptyValues(t *testing.T) {
	members := []*model.Scene{
		tagged(map[string]string{"environment_type": ""}),
		tagged(map[string]string{"environment_type": "rural_road"}),
	}
	assert.Equal(t, "rural_road", analysis.Describe(members))
}
