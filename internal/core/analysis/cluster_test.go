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

// Package analysis_test contains the test suite for the analysis package.
// This file exercises the density-based clustering pass: category discovery,
// the noise bucket, undersized-cluster dissolution, and cancellation.
package analysis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClusterDiscoversGroupsAndNoise verifies that two tight groups become
// two clusters while an isolated point lands in the noise bucket.
func TestClusterDiscoversGroupsAndNoise(t *testing.T) {
	c, err := analysis.NewClusterer(analysis.ClusterConfig{
		Epsilon:        0.3,
		MinSamples:     3,
		MinClusterSize: 3,
	})
	require.NoError(t, err)

	vectors := [][]float64{
		{1, 0, 0, 0},    // 0: group A
		{1, 0.05, 0, 0}, // 1: group A
		{1, 0, 0.05, 0}, // 2: group A
		{0, 1, 0, 0},    // 3: group B
		{0.05, 1, 0, 0}, // 4: group B
		{0, 1, 0.05, 0}, // 5: group B
		{0, 0, 0, 1},    // 6: isolated
	}

	clusters, noise, err := c.Cluster(context.Background(), vectors)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.ElementsMatch(t, []int{0, 1, 2}, clusters[0])
	assert.ElementsMatch(t, []int{3, 4, 5}, clusters[1])
	assert.Equal(t, []int{6}, noise)
}

// TestClusterPartitionProperty verifies that every input index lands in
// exactly one cluster or the noise bucket, with nothing lost or duplicated.
func TestClusterPartitionProperty(t *testing.T) {
	c, err := analysis.NewClusterer(analysis.ClusterConfig{
		Epsilon:        0.25,
		MinSamples:     2,
		MinClusterSize: 2,
	})
	require.NoError(t, err)

	vectors := [][]float64{
		{1, 0, 0}, {1, 0.1, 0}, {1, 0, 0.1},
		{0, 1, 0}, {0, 1, 0.1},
		{0, 0, 1},
		{0.5, 0.5, 0.5},
	}

	clusters, noise, err := c.Cluster(context.Background(), vectors)
	require.NoError(t, err)

	seen := make(map[int]int)
	for _, members := range clusters {
		for _, i := range members {
			seen[i]++
		}
	}
	for _, i := range noise {
		seen[i]++
	}
	require.Len(t, seen, len(vectors))
	for i := range vectors {
		assert.Equal(t, 1, seen[i], "index %d must appear exactly once", i)
	}
}

// TestClusterDissolvesUndersized verifies that a dense pair below the
// minimum cluster size is dissolved into noise instead of surfacing as a
// tiny category.
func TestClusterDissolvesUndersized(t *testing.T) {
	c, err := analysis.NewClusterer(analysis.ClusterConfig{
		Epsilon:        0.3,
		MinSamples:     2,
		MinClusterSize: 3,
	})
	require.NoError(t, err)

	vectors := [][]float64{
		{1, 0, 0}, {1, 0.05, 0}, // dense pair, but under the size floor
		{0, 0, 1},
	}

	clusters, noise, err := c.Cluster(context.Background(), vectors)
	require.NoError(t, err)
	assert.Empty(t, clusters)
	assert.Equal(t, []int{0, 1, 2}, noise)
}

// TestClusterEmptyInput verifies the empty-population boundary.
func TestClusterEmptyInput(t *testing.T) {
	c, err := analysis.NewClusterer(analysis.ClusterConfig{Epsilon: 0.3, MinSamples: 2, MinClusterSize: 2})
	require.NoError(t, err)

	clusters, noise, err := c.Cluster(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, clusters)
	assert.Empty(t, noise)
}

// TestClusterCancellation verifies that a cancelled run returns the
// sentinel and discards partial results.
func TestClusterCancellation(t *testing.T) {
	c, err := analysis.NewClusterer(analysis.ClusterConfig{Epsilon: 0.3, MinSamples: 2, MinClusterSize: 2})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clusters, noise, err := c.Cluster(ctx, [][]float64{{1, 0}, {0, 1}})
	assert.True(t, errors.Is(err, analysis.ErrClusteringCancelled))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, clusters)
	assert.Nil(t, noise)
}

// TestNewClustererRejectsBadEpsilon verifies validation of the radius.
func TestNewClustererRejectsBadEpsilon(t *testing.T) {
	_, err := analysis.NewClusterer(analysis.ClusterConfig{Epsilon: 0})
	assert.Error(t, err)
}
