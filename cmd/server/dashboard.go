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

// Package main contains the API route definitions for the server. This file
// defines the dashboard statistics endpoint.
//
// Functions:
//   - Dashboard: Sets up a route group for statistics-related endpoints. The
//     `/stats` endpoint reports the live index sizes and a one-line summary of
//     the most recent analysis snapshot.
package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Dashboard configures the API routes for the operations dashboard.
// It creates a new route group "/stats" nested under the main API router group.
//
// Inputs:
//   - r: A *gin.RouterGroup to which the new "/stats" route group will be added.
//
// Outputs:
//   - This function does not return any value. It modifies the provided *gin.RouterGroup
//     by adding a new route handler.
func Dashboard(r *gin.RouterGroup) {
	// Create a new router group for any statistics-related endpoints, prefixed with "/stats".
	stats := r.Group("/stats")
	{
		// Register a handler for a GET request to the "/stats" endpoint.
		stats.GET("", func(c *gin.Context) {
			indexed := make(map[string]int, len(state.indexes))
			for space, idx := range state.indexes {
				indexed[string(space)] = idx.Len()
			}
			body := gin.H{"indexed_embeddings": indexed}

			// The analysis summary is absent until the first run publishes.
			if snapshot := state.runner.Current(); snapshot != nil {
				body["analysis"] = gin.H{
					"snapshot_id":           snapshot.Id,
					"created_at":            snapshot.CreatedAt,
					"categories":            len(snapshot.Categories),
					"noise_scenes":          len(snapshot.NoiseSceneIds),
					"estimated_savings_usd": snapshot.Savings.Savings,
				}
			}
			c.JSON(http.StatusOK, body)
		})
	}
}
