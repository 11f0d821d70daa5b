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

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/cloud"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/services"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/store"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/telemetry"
)

func main() {
	// Deployed runtimes log structured JSON for Cloud Logging; everything
	// else gets the readable console handler.
	switch os.Getenv(cloud.EnvConfigRuntime) {
	case "", "local", "test":
		telemetry.SetupLocalLogging()
	default:
		telemetry.SetupLogging()
	}
	slog.Info("Logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := GetConfig()

	_, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	InitState(ctx)
	slog.Info("Initialized State")

	r := gin.Default()

	// Add OpenTelemetry middleware
	r.Use(otelgin.Middleware("fleet-scene-search-server"))

	// Allow all origins, methods, and headers. The server sits behind an
	// internal load balancer; the dashboard runs on a different origin.
	r.Use(cors.Default())

	// Create the "/api/v1" group
	apiV1 := r.Group("/api/v1")
	{
		SearchRouter(apiV1)
		AnalysisRouter(apiV1)
		SceneRouter(apiV1)
		Dashboard(apiV1)
	}
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	port := config.Application.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}

	// Start the server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen", "error", err)
		}
	}()
	slog.Info("Server Ready", "port", port)

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Server ...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed:", "error", err)
	}
	state.cloud.Close()
	if err := state.sceneStore.Close(); err != nil {
		slog.Error("failed to close scene store", "error", err)
	}

	log.Println("Server exiting")
}

// SearchRouter sets up the twin-engine search endpoint. The request body is a
// JSON SearchQuery; the reply carries the reconciled results plus which
// engines served them. Sentinel errors from the service map onto explicit
// HTTP statuses so callers can distinguish a bad request from a degraded
// backend.
func SearchRouter(r *gin.RouterGroup) {
	r.POST("/search", func(c *gin.Context) {
		var query model.SearchQuery
		if err := c.ShouldBindJSON(&query); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed search request: " + err.Error()})
			return
		}

		resp, err := state.searchService.FindScenes(c.Request.Context(), &query)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrInvalidQuery):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, services.ErrQueryEmbeddingFailed):
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			case errors.Is(err, services.ErrIndexUnavailable):
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			default:
				slog.Error("search failed", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
			}
			return
		}
		c.JSON(http.StatusOK, resp)
	})
}

// AnalysisRouter sets up the ODD analysis reporting endpoints. GET serves the
// most recently published immutable snapshot; POST /refresh runs a fresh
// analysis synchronously, which is how operators re-analyze after a large
// ingest batch instead of waiting for the background timer.
func AnalysisRouter(r *gin.RouterGroup) {
	analysisGroup := r.Group("/analysis")
	{
		analysisGroup.GET("", func(c *gin.Context) {
			snapshot := state.runner.Current()
			if snapshot == nil {
				// No run has completed yet. Serve an empty snapshot so
				// dashboards can poll unconditionally instead of special
				// casing a 404.
				snapshot = &model.AnalysisSnapshot{
					Categories:    []*model.OddCategory{},
					NoiseSceneIds: []string{},
				}
			}
			c.JSON(http.StatusOK, snapshot)
		})

		analysisGroup.POST("/refresh", func(c *gin.Context) {
			snapshot, err := state.runner.Run(c.Request.Context())
			if err != nil {
				slog.Error("on-demand analysis failed", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis run failed"})
				return
			}
			c.JSON(http.StatusOK, snapshot)
		})
	}
}

// SceneRouter sets up scene retrieval. The returned scene carries signed,
// time-limited playback URLs for each camera channel.
func SceneRouter(r *gin.RouterGroup) {
	scenes := r.Group("/scenes")
	{
		scenes.GET("/:id", func(c *gin.Context) {
			id := c.Param("id")
			scene, err := state.sceneService.GetWithPlayback(c.Request.Context(), id)
			if err != nil {
				if errors.Is(err, store.ErrSceneNotFound) {
					c.JSON(http.StatusNotFound, gin.H{"error": "scene not found"})
					return
				}
				slog.Error("failed to load scene", "scene_id", id, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load scene"})
				return
			}
			c.JSON(http.StatusOK, scene)
		})
	}
}
