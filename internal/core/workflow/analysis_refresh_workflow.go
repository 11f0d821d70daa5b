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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements the
// background process that periodically re-discovers ODD categories and
// recomputes redundancy and cost figures over the full fleet.
package workflow

import (
	goctx "context"
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/cloud"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/analysis"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/commands"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// AnalysisRefreshWorkflow defines a background job that periodically reruns
// the full ODD discovery and cost analysis over every ingested scene. Each
// successful run swaps in a fresh immutable snapshot that the API serves, and
// optionally streams the per-category figures into BigQuery for fleet
// analytics. This implements the cor.Command interface, allowing it to be
// part of a larger chain, although it's designed to run independently as a
// background task.
type AnalysisRefreshWorkflow struct {
	cor.BaseCommand
	runner  *analysis.Runner
	report  cor.Command   // Optional BigQuery report sink, nil when disabled.
	refresh time.Duration // How often the background timer reruns the analysis.
}

// StartTimer kicks off the background process for the workflow. It creates a
// time.Ticker that fires at the configured refresh interval. On each tick,
// it executes the analysis within a new trace span for observability.
// This function runs indefinitely in a separate goroutine until the
// application is shut down.
func (m *AnalysisRefreshWorkflow) StartTimer() {
	// Obtain a tracer for creating spans.
	tracer := otel.Tracer("analysis-refresh")
	ticker := time.NewTicker(m.refresh)
	// A channel to signal when the ticker should be stopped (for graceful shutdown).
	closeTicker := make(chan struct{})

	// Start a new goroutine to handle the timed execution.
	go func(m *AnalysisRefreshWorkflow) {
		for {
			select {
			// This case is triggered each time the ticker fires.
			case <-ticker.C:
				// Start a new OpenTelemetry trace span for this execution run.
				traceCtx, span := tracer.Start(goctx.Background(), "odd-analysis")
				// Create a fresh context for this run of the workflow.
				chainCtx := cor.NewBaseContext()
				chainCtx.SetContext(traceCtx)

				// Execute the main logic of the workflow.
				m.Execute(chainCtx)

				// Check if any errors occurred during execution and update the span status.
				if chainCtx.HasErrors() {
					span.SetStatus(codes.Error, "failed to refresh analysis")
				} else {
					span.SetStatus(codes.Ok, "analysis refreshed")
				}
				// End the span for this execution.
				span.End()
			// This case would be triggered if a value is sent to the closeTicker channel.
			case <-closeTicker:
				ticker.Stop()
				return
			}
		}
	}(m)
}

// IsExecutable determines if the command can be run. For this workflow, it
// always returns true because it's a self-contained background job that
// doesn't depend on prior outputs in a chain context.
func (m *AnalysisRefreshWorkflow) IsExecutable(_ cor.Context) bool {
	return true
}

// Execute contains the core logic for the workflow. It runs the full ODD
// discovery over the current fleet, and on success hands the fresh snapshot
// to the BigQuery report sink when one is configured.
//
// A failed run leaves the previously published snapshot in place, so the API
// keeps serving the last good analysis.
//
// Inputs:
//   - context: The chain of responsibility context, used for passing state and errors.
func (m *AnalysisRefreshWorkflow) Execute(context cor.Context) {
	snapshot, err := m.runner.Run(context.GetContext())
	if err != nil {
		m.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(m.GetName(), err)
		return
	}

	m.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.Info("analysis snapshot published",
		"snapshot_id", snapshot.Id,
		"categories", len(snapshot.Categories),
		"noise_scenes", len(snapshot.NoiseSceneIds))

	if m.report != nil {
		context.Add(m.report.GetInputParam(), snapshot)
		m.report.Execute(context)
	}
}

// NewAnalysisRefreshWorkflow is the constructor for the analysis workflow.
// It wires the analysis runner to the refresh schedule and, when the
// BigQuery data source is enabled in the configuration, attaches the report
// persistence command.
//
// Inputs:
//   - config: The application's overall configuration object.
//   - serviceClients: A struct containing all the initialized Google Cloud service clients.
//   - runner: The analysis runner that owns snapshot computation and publication.
//
// Returns:
//   - A pointer to a newly created and configured AnalysisRefreshWorkflow.
func NewAnalysisRefreshWorkflow(
	config *cloud.Config,
	serviceClients *cloud.ServiceClients,
	runner *analysis.Runner) *AnalysisRefreshWorkflow {

	var report cor.Command
	if config.BigQueryDataSource.Enabled {
		report = commands.NewReportPersistToBigQuery(
			"write-analysis-report",
			serviceClients.BigQueryClient,
			config.BigQueryDataSource.DatasetName,
			config.BigQueryDataSource.ReportTable)
	}

	return &AnalysisRefreshWorkflow{
		BaseCommand: *cor.NewBaseCommand("analysis-refresh"),
		runner:      runner,
		report:      report,
		refresh:     time.Duration(config.Clustering.RefreshIntervalInSeconds) * time.Second,
	}
}
