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

// Package analysis implements the batch side of the engine: operating-domain
// discovery, redundancy measurement, and the safety-weighted cost policy.
// This file defines the combination rule that turns a scene's embeddings in
// both spaces into the single representative vector the clustering operates
// on.
//
// Combination rule (fixed, versioned with the code): the scene-level
// behavioral vector is normalized to unit length; the per-camera visual
// vectors are each normalized, averaged, and the mean renormalized; the two
// unit vectors are then concatenated. A scene missing one side contributes a
// zero block for it, which places the scene at the origin of that subspace
// rather than inventing values for it.
package analysis

import (
	"gonum.org/v1/gonum/floats"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
)

// CombineSceneVector builds the representative vector for one scene.
//
// Inputs:
//   - behavioral: The scene-level behavioral embedding, or nil when absent.
//   - visuals: The per-camera visual embeddings; may be empty.
//   - behavioralDim, visualDim: The configured dimensionality of each space,
//     used to size zero blocks for missing sides.
//
// Outputs:
//   - []float64: The combined vector of length behavioralDim + visualDim.
func CombineSceneVector(behavioral *model.Embedding, visuals []*model.Embedding, behavioralDim, visualDim int) []float64 {
	out := make([]float64, behavioralDim+visualDim)

	if behavioral != nil && len(behavioral.Vector) == behavioralDim {
		copyUnit(out[:behavioralDim], behavioral.Vector)
	}

	if len(visuals) > 0 {
		mean := out[behavioralDim:]
		scratch := make([]float64, visualDim)
		counted := 0
		for _, v := range visuals {
			if len(v.Vector) != visualDim {
				continue
			}
			copyUnit(scratch, v.Vector)
			floats.Add(mean, scratch)
			counted++
		}
		if counted > 0 {
			floats.Scale(1/float64(counted), mean)
			if norm := floats.Norm(mean, 2); norm > 0 {
				floats.Scale(1/norm, mean)
			}
		}
	}
	return out
}

// copyUnit writes the unit-length version of src into dst.
func copyUnit(dst []float64, src []float32) {
	for i, v := range src {
		dst[i] = float64(v)
	}
	if norm := floats.Norm(dst, 2); norm > 0 {
		floats.Scale(1/norm, dst)
	}
}
