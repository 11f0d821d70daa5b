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
// implements the density-based clustering step that discovers operating-
// domain categories from scene embeddings without any predefined taxonomy.
//
// The algorithm is DBSCAN over cosine distance in the combined embedding
// space. Points in low-density regions land in a separate noise bucket
// instead of being forced into the nearest cluster; clusters that end up
// smaller than the configured minimum size are dissolved into noise as well.
//
// Determinism: given the same vectors and the same configuration the
// partition structure is identical. Cluster numbering follows the order the
// seeds are visited, so reordering the input may renumber clusters while
// leaving the partition itself unchanged. That is a documented property of
// the procedure, not a defect.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ErrClusteringCancelled is returned when an analysis run is cancelled
// before the clustering pass completes. Partial results are discarded.
var ErrClusteringCancelled = errors.New("clustering cancelled before completion")

// ClusterConfig carries the density parameters. All three are configuration
// inputs, never hardcoded: changing them changes the discovered category
// count.
type ClusterConfig struct {
	Epsilon        float64 // Neighborhood radius in cosine distance.
	MinSamples     int     // Minimum neighborhood size for a core point (the point itself counts).
	MinClusterSize int     // Clusters smaller than this are dissolved into noise.
}

// Clusterer partitions scene vectors into density-based clusters.
type Clusterer struct {
	cfg ClusterConfig
}

// NewClusterer validates the configuration and returns a Clusterer.
func NewClusterer(cfg ClusterConfig) (*Clusterer, error) {
	if cfg.Epsilon <= 0 {
		return nil, fmt.Errorf("clustering epsilon must be positive, got %v", cfg.Epsilon)
	}
	if cfg.MinSamples < 1 {
		cfg.MinSamples = 1
	}
	if cfg.MinClusterSize < 1 {
		cfg.MinClusterSize = 1
	}
	return &Clusterer{cfg: cfg}, nil
}

// Cluster partitions the given vectors.
//
// Inputs:
//   - ctx: Cancellation is checked between distance computations; a
//     cancelled run returns ErrClusteringCancelled and publishes nothing.
//   - vectors: One combined vector per scene, all the same length.
//
// Outputs:
//   - clusters: Slices of input indexes, one per discovered cluster.
//   - noise: Input indexes assigned to the low-density bucket.
//   - error: ErrClusteringCancelled (wrapping the context error) or nil.
func (c *Clusterer) Cluster(ctx context.Context, vectors [][]float64) (clusters [][]int, noise []int, err error) {
	n := len(vectors)
	clusters = make([][]int, 0)
	noise = make([]int, 0)
	if n == 0 {
		return clusters, noise, nil
	}

	// Unit-normalize once so cosine distance reduces to 1 - dot.
	units := make([][]float64, n)
	for i, v := range vectors {
		u := make([]float64, len(v))
		copy(u, v)
		if norm := floats.Norm(u, 2); norm > 0 {
			floats.Scale(1/norm, u)
		}
		units[i] = u
	}

	const (
		unvisited = 0
		inNoise   = -1
	)
	// labels[i]: 0 unvisited, -1 noise, >0 cluster number.
	labels := make([]int, n)
	next := 0

	neighbors := func(i int) ([]int, error) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrClusteringCancelled, err)
		}
		out := make([]int, 0)
		for j := 0; j < n; j++ {
			if 1-floats.Dot(units[i], units[j]) <= c.cfg.Epsilon {
				out = append(out, j)
			}
		}
		return out, nil
	}

	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		nb, err := neighbors(i)
		if err != nil {
			return nil, nil, err
		}
		if len(nb) < c.cfg.MinSamples {
			labels[i] = inNoise
			continue
		}

		// Found a new core point: grow its cluster breadth-first.
		next++
		labels[i] = next
		queue := append([]int(nil), nb...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == inNoise {
				// Border point previously marked noise joins the cluster.
				labels[j] = next
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = next
			jnb, err := neighbors(j)
			if err != nil {
				return nil, nil, err
			}
			if len(jnb) >= c.cfg.MinSamples {
				queue = append(queue, jnb...)
			}
		}
	}

	// Collect members per label, then dissolve undersized clusters.
	members := make(map[int][]int)
	for i, label := range labels {
		if label == inNoise {
			noise = append(noise, i)
			continue
		}
		members[label] = append(members[label], i)
	}
	for label := 1; label <= next; label++ {
		m := members[label]
		if len(m) < c.cfg.MinClusterSize {
			noise = append(noise, m...)
			continue
		}
		clusters = append(clusters, m)
	}
	sort.Ints(noise)
	return clusters, noise, nil
}
