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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// command responsible for persisting redundancy analysis results to BigQuery.
//
// Logic Flow:
// Each completed analysis run produces an immutable snapshot of ODD categories
// with their uniqueness and cost figures. This command flattens the snapshot
// into one row per category and streams the rows into a BigQuery table, where
// fleet analysts can track redundancy and projected savings over time.
//
//  1. It retrieves the `model.AnalysisSnapshot` from the context.
//  2. It maps each ODD category to an `AnalysisReportRow`, carrying the
//     snapshot id and timestamp so rows from one run can be grouped.
//  3. It uses a BigQuery `Inserter` to stream the rows into the table. The Go
//     client library marshals the struct fields into table columns based on
//     the `bigquery` struct tags.
//  4. It performs error handling and updates telemetry counters.
package commands

import (
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/cor"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
)

// AnalysisReportRow is the flattened, per-category form of an analysis
// snapshot as it lands in BigQuery.
type AnalysisReportRow struct {
	SnapshotId            string    `bigquery:"snapshot_id"`
	CreatedAt             time.Time `bigquery:"created_at"`
	CategoryId            int       `bigquery:"category_id"`
	Description           string    `bigquery:"description"`
	TotalScenes           int       `bigquery:"total_scenes"`
	EstimatedUniqueScenes int       `bigquery:"estimated_unique_scenes"`
	UniquenessScore       float64   `bigquery:"uniqueness_score"`
	RedundancyRatio       float64   `bigquery:"redundancy_ratio"`
	UniquenessQuality     string    `bigquery:"uniqueness_quality"`
	RiskBand              string    `bigquery:"risk_band"`
	RetainedFraction      float64   `bigquery:"retained_fraction"`
	NaiveCostUsd          float64   `bigquery:"naive_cost_usd"`
	IntelligentCostUsd    float64   `bigquery:"intelligent_cost_usd"`
	SavingsUsd            float64   `bigquery:"savings_usd"`
	EfficiencyGainPercent float64   `bigquery:"efficiency_gain_percent"`
}

// ReportPersistToBigQuery is a command that saves an analysis snapshot to a
// BigQuery table, one row per ODD category.
type ReportPersistToBigQuery struct {
	cor.BaseCommand
	client  *bigquery.Client // The client for interacting with the BigQuery service.
	dataset string           // The name of the BigQuery dataset.
	table   string           // The name of the target table within the dataset.
}

// NewReportPersistToBigQuery is the constructor for the ReportPersistToBigQuery command.
//
// Inputs:
//   - name: A string name for this command instance.
//   - client: An initialized *bigquery.Client.
//   - dataset: The name of the BigQuery dataset.
//   - table: The name of the target table.
//
// Outputs:
//   - *ReportPersistToBigQuery: A pointer to the newly instantiated command.
func NewReportPersistToBigQuery(name string, client *bigquery.Client, dataset string, table string) *ReportPersistToBigQuery {
	return &ReportPersistToBigQuery{BaseCommand: *cor.NewBaseCommand(name), client: client, dataset: dataset, table: table}
}

// IsExecutable overrides the default behavior to ensure that a snapshot to
// persist exists in the context before execution.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
//
// Outputs:
//   - bool: True if the snapshot exists in the context, otherwise false.
func (s *ReportPersistToBigQuery) IsExecutable(context cor.Context) bool {
	return context != nil && context.Get(s.GetInputParam()) != nil
}

// Execute contains the core logic for writing the report rows to BigQuery.
//
// Inputs:
//   - context: The shared `cor.Context` for this workflow execution.
func (s *ReportPersistToBigQuery) Execute(context cor.Context) {
	snapshot := context.Get(s.GetInputParam()).(*model.AnalysisSnapshot)

	rows := make([]*AnalysisReportRow, 0, len(snapshot.Categories))
	for _, category := range snapshot.Categories {
		rows = append(rows, &AnalysisReportRow{
			SnapshotId:            snapshot.Id,
			CreatedAt:             snapshot.CreatedAt,
			CategoryId:            category.Id,
			Description:           category.Description,
			TotalScenes:           category.TotalScenes,
			EstimatedUniqueScenes: category.EstimatedUniqueScenes,
			UniquenessScore:       category.UniquenessScore,
			RedundancyRatio:       category.RedundancyRatio,
			UniquenessQuality:     category.UniquenessQuality,
			RiskBand:              category.RiskBand,
			RetainedFraction:      category.RetainedFraction,
			NaiveCostUsd:          category.Cost.NaiveCost,
			IntelligentCostUsd:    category.Cost.IntelligentCost,
			SavingsUsd:            category.Cost.Savings,
			EfficiencyGainPercent: category.Cost.EfficiencyGainPercent,
		})
	}
	if len(rows) == 0 {
		// A run over an empty or all-noise fleet has nothing to report.
		s.GetSuccessCounter().Add(context.GetContext(), 1)
		context.Add(s.GetOutputParam(), snapshot)
		return
	}

	// Get an Inserter for the target table. This provides a streaming
	// interface for inserting rows, which is more efficient than individual
	// INSERT statements.
	i := s.client.Dataset(s.dataset).Table(s.table).Inserter()
	if err := i.Put(context.GetContext(), rows); err != nil {
		slog.Error("failed to write analysis report to BigQuery", "snapshot_id", snapshot.Id, "error", err)
		s.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(s.GetName(), fmt.Errorf("bigquery insert failed for snapshot %s: %w", snapshot.Id, err))
		return
	}

	s.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.Info("persisted analysis report", "snapshot_id", snapshot.Id, "categories", len(rows))
	context.Add(s.GetOutputParam(), snapshot)
}
