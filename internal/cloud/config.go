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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files, plus the clients for the Google Cloud services the
// engine depends on.
//
// This file centralizes all configuration-related structs. Every tunable the
// engine exposes lives here: search thresholds, index backend selection,
// density-clustering parameters, uniqueness tiers, the retention cost
// policy, and the Pub/Sub and BigQuery wiring at the system's boundaries.
//
// Structs:
//   - SearchConfig: The twin-engine similarity threshold and default limit.
//   - SpaceConfig: Per-space embedding dimensionality and encoder model.
//   - IndexConfig: Vector index backend selection (memory or pgvector).
//   - StorageConfig: The scene database path and payload bucket.
//   - ClusteringConfig: Density parameters and the refresh interval.
//   - UniquenessConfig: Similarity thresholds and quality-tier cut points.
//   - CostConfig: Unit DTO cost and the safety-band parameters.
//   - BigQueryDataSource: Optional fleet-analytics sink for analysis runs.
//   - TopicSubscription: Configuration for one Pub/Sub subscription.
//   - Config: The top-level aggregate.
//
// Functions:
//   - NewConfig: Constructor that initializes a new Config with empty maps.
package cloud

// SearchConfig holds the twin-engine search tunables. The minimum similarity
// threshold is a design default tuned empirically, not a hard law; it is
// configuration precisely so it can be retuned without a release.
type SearchConfig struct {
	MinSimilarity float64 `toml:"min_similarity"` // Scores below this are filtered; also the consensus floor.
	DefaultLimit  int     `toml:"default_limit"`  // Result limit applied when the caller sends none.
}

// SpaceConfig describes one embedding space.
type SpaceConfig struct {
	Dimension            int    `toml:"dimension"`               // The fixed vector dimensionality of the space.
	Model                string `toml:"model"`                   // The text-encoder model used to embed queries into the space.
	MaxRequestsPerMinute int    `toml:"max_requests_per_minute"` // Encoder quota; enforced by the quota-aware wrapper.
}

// IndexConfig selects and parameterizes the vector index backend.
type IndexConfig struct {
	Backend     string `toml:"backend"`      // "memory" (default) or "pgvector".
	PostgresDSN string `toml:"postgres_dsn"` // Connection string, pgvector backend only.
}

// StorageConfig locates the durable stores.
type StorageConfig struct {
	SceneDatabasePath string `toml:"scene_database_path"` // Path to the SQLite scene/embedding database.
	PayloadBucket     string `toml:"payload_bucket"`      // GCS bucket where the extraction pipeline writes scene payloads.
}

// ClusteringConfig holds the density-clustering inputs. Minimum cluster size
// and minimum samples are configuration, not constants: changing them
// changes the discovered category count.
type ClusteringConfig struct {
	Epsilon                  float64 `toml:"epsilon"`                     // Neighborhood radius in cosine distance.
	MinSamples               int     `toml:"min_samples"`                 // Core-point density requirement.
	MinClusterSize           int     `toml:"min_cluster_size"`            // Smaller clusters dissolve into the noise bucket.
	RefreshIntervalInSeconds int     `toml:"refresh_interval_in_seconds"` // How often the analysis workflow re-runs.
}

// UniquenessConfig holds the redundancy thresholds and quality-tier cuts.
type UniquenessConfig struct {
	HighSimilarity   float64 `toml:"high_similarity"`   // Pairs at/above this count as near-duplicates.
	MediumSimilarity float64 `toml:"medium_similarity"` // Pairs at/above this count as related.
	ExcellentCut     float64 `toml:"excellent_cut"`     // uniqueness >= this => excellent.
	GoodCut          float64 `toml:"good_cut"`          // uniqueness >= this => good.
	ModerateCut      float64 `toml:"moderate_cut"`      // uniqueness >= this => moderate, else poor.
}

// CostConfig holds the retention pricing policy parameters.
type CostConfig struct {
	UnitCostPerScene  float64 `toml:"unit_cost_per_scene"` // DTO cost of one scene, USD.
	CriticalRisk      float64 `toml:"critical_risk"`       // risk > this => zero-skip retention.
	HighRisk          float64 `toml:"high_risk"`           // risk >= this => high band.
	HighRiskRetention float64 `toml:"high_risk_retention"` // Retention floor for the high band.
}

// BigQueryDataSource configures the optional fleet-analytics sink that
// receives one row per category per analysis run.
type BigQueryDataSource struct {
	Enabled     bool   `toml:"enabled"`      // When false, analysis runs are not exported.
	DatasetName string `toml:"dataset"`      // The BigQuery dataset name.
	ReportTable string `toml:"report_table"` // The table receiving category report rows.
}

// TopicSubscription represents the configuration for a Pub/Sub topic
// subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // The subscription timeout in seconds.
}

// Config represents the overall configuration for the application, loaded
// from TOML files. It acts as the root container for all other
// configuration structs.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`                         // The name of the application.
		GoogleProjectId           string `toml:"google_project_id"`            // The Google Cloud project ID.
		GoogleLocation            string `toml:"location"`                     // The Google Cloud location.
		Port                      int    `toml:"port"`                         // The HTTP listen port.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"` // The service account used for signing video URLs.
	} `toml:"application"`
	Search             SearchConfig                 `toml:"search"`                // Twin-engine search tunables.
	Spaces             map[string]SpaceConfig       `toml:"spaces"`                // Embedding spaces keyed by name ("behavioral", "visual").
	Index              IndexConfig                  `toml:"index"`                 // Vector index backend selection.
	Storage            StorageConfig                `toml:"storage"`               // Durable store locations.
	Clustering         ClusteringConfig             `toml:"clustering"`            // ODD discovery parameters.
	Uniqueness         UniquenessConfig             `toml:"uniqueness"`            // Redundancy thresholds.
	Cost               CostConfig                   `toml:"cost"`                  // Retention cost policy.
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"` // Optional analysis export sink.
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"`   // Pub/Sub subscriptions keyed by logical name (e.g. "SceneReady").
}

// NewConfig creates a new, initialized Config instance. The maps must be
// initialized up front so the configuration loader can populate them without
// nil checks.
//
// Outputs:
//   - *Config: A pointer to a new Config struct with its map fields initialized.
func NewConfig() *Config {
	return &Config{
		Spaces:             make(map[string]SpaceConfig),
		TopicSubscriptions: make(map[string]TopicSubscription),
	}
}
