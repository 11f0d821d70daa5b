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
// derives a human-readable description for a discovered category from the
// majority tag values of its member scenes.
//
// The description is a label of convenience for dashboards, not part of the
// clustering objective. It is computed by a fixed, versioned rule set so the
// output is deterministic and testable without any model in the loop:
// for each tag key in DescribeTagKeys (in order), take the most frequent
// value among members that carry the key, breaking frequency ties by
// lexicographic order, and join the winners with ", ".
package analysis

import (
	"sort"
	"strings"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
)

// DescribeRuleVersion identifies the description rule set. Bump it whenever
// DescribeTagKeys or the voting rule changes, so stored reports can record
// which rules produced them.
const DescribeRuleVersion = 1

// DescribeTagKeys lists the tag keys that contribute to a description, in
// the order their winners appear.
var DescribeTagKeys = []string{
	"environment_type",
	"weather_condition",
	"time_of_day",
	"maneuver",
}

// DescribeFallback is used when no member carries any known tag key.
const DescribeFallback = "uncategorized driving scenarios"

// Describe builds the category description from its member scenes.
//
// Inputs:
//   - members: The category's member scenes.
//
// Outputs:
//   - string: The derived description, or DescribeFallback.
func Describe(members []*model.Scene) string {
	parts := make([]string, 0, len(DescribeTagKeys))
	for _, key := range DescribeTagKeys {
		if winner := majorityTag(members, key); winner != "" {
			parts = append(parts, winner)
		}
	}
	if len(parts) == 0 {
		return DescribeFallback
	}
	return strings.Join(parts, ", ")
}

// majorityTag returns the most frequent value of one tag key among members,
// ties broken lexicographically, or "" when no member carries the key.
func majorityTag(members []*model.Scene, key string) string {
	counts := make(map[string]int)
	for _, m := range members {
		if v, ok := m.Tags[key]; ok && v != "" {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return ""
	}

	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Strings(values)

	winner := values[0]
	for _, v := range values[1:] {
		if counts[v] > counts[winner] {
			winner = v
		}
	}
	return winner
}
