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

// Package cloud provides components for interacting with Google Cloud services.
// This file is central to the application's architecture, as it's responsible for
// initializing and holding all the client objects needed to communicate with
// various Google Cloud services. It acts as a dependency injection container,
// creating a single, shared `ServiceClients` struct that can be passed throughout
// the application.
//
// Logic Flow:
//  1. The `NewCloudServiceClients` function is called at application startup.
//  2. It takes the application's configuration (`Config`) and a `context.Context`.
//  3. It iteratively initializes clients for Storage, Pub/Sub, GenAI, IAM, and BigQuery.
//  4. It then reads the configuration to create and configure specific service wrappers,
//     like Pub/Sub listeners and per-space quota-aware text embedders, storing them in maps.
//  5. All initialized clients and services are bundled into a single `ServiceClients` struct.
//  6. This struct is then used by other parts of the application (like API handlers and workflows)
//     to perform their tasks.
//
// Structs:
//   - ServiceClients: A container struct holding all initialized Google Cloud service clients
//     and service wrappers, acting as a central state manager for external connections.
//
// Functions:
//   - Close: A convenience method to gracefully shut down all client connections.
//   - NewCloudServiceClients: A factory function that creates and configures all necessary
//     Google Cloud clients based on the application's configuration.
package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/genai"
)

// ServiceClients is a struct that acts as a central container for all the clients
// that interact with external Google Cloud services. This pattern is a form of
// dependency injection, making it easy to manage and share these client connections
// across the entire application.
type ServiceClients struct {
	StorageClient   *storage.Client                   // Client for Google Cloud Storage (GCS), where scene payloads and camera footage live.
	PubsubClient    *pubsub.Client                    // Client for Google Cloud Pub/Sub, the ingest trigger channel.
	GenAIClient     *genai.Client                     // Client for Google's Generative AI services (Vertex AI).
	BigQueryClient  *bigquery.Client                  // Client for Google Cloud BigQuery, the fleet analytics sink.
	IAMClient       *credentials.IamCredentialsClient // Client for IAM to sign things like GCS URLs.
	PubSubListeners map[string]*PubSubListener        // A map of active Pub/Sub listeners, keyed by a logical name from the config.
	Encoders        map[string]*QuotaAwareEmbedder    // A map of quota-aware text embedders, keyed by search space name.
}

// Close is a utility method to gracefully shut down all the active client connections.
// While client connections are typically managed by the application's root context,
// this method provides an explicit way to release resources, which is especially
// useful in tests or for controlled shutdowns.
func (c *ServiceClients) Close() {
	_ = c.StorageClient.Close()
	_ = c.PubsubClient.Close()
	_ = c.BigQueryClient.Close()
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
}

// NewCloudServiceClients is a factory function that initializes all required Google Cloud
// service clients based on the provided configuration. It serves as the main entry point
// for setting up the application's external dependencies.
//
// Inputs:
//   - ctx: The root context.Context for the application, used to manage the lifecycle of the clients.
//   - config: A pointer to the loaded application configuration (`Config`).
//
// Outputs:
//   - *ServiceClients: A pointer to the fully initialized ServiceClients struct.
//   - error: An error if any of the clients fail to initialize.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	// Create a new Google Cloud Storage client.
	sc, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	// Create a new Google Cloud Pub/Sub client for the specified project.
	pc, err := pubsub.NewClient(ctx, config.Application.GoogleProjectId)
	if err != nil {
		return nil, err
	}

	// Create a new Generative AI client backed by Vertex AI.
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  config.Application.GoogleProjectId,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		slog.Error("error creating genai client", "error", err)
		return nil, err
	}

	// Create a new Google Cloud BigQuery client.
	bc, err := bigquery.NewClient(ctx, config.Application.GoogleProjectId)
	if err != nil {
		return nil, err
	}

	// Create the IAM credentials client used to sign GCS URLs for camera
	// footage playback.
	ic, err := credentials.NewIamCredentialsClient(ctx)
	if err != nil {
		return nil, err
	}

	// Iterate through the subscription configurations and create a PubSubListener for each one.
	// The command is initially set to `nil` because it will be attached later when the workflows are built.
	subscriptions := make(map[string]*PubSubListener)
	for subKey := range config.TopicSubscriptions {
		values := config.TopicSubscriptions[subKey]
		actual, err := NewPubSubListener(pc, values.Name, nil)
		if err != nil {
			return nil, err
		}
		subscriptions[subKey] = actual
	}

	// Iterate through the search space configurations and create a quota-aware
	// text embedder for each. The behavioral and visual spaces typically point
	// at different models with different output dimensionalities, so each space
	// carries its own wrapper and rate limiter.
	encoders := make(map[string]*QuotaAwareEmbedder)
	for spaceKey := range config.Spaces {
		values := config.Spaces[spaceKey]
		encoders[spaceKey] = NewQuotaAwareEmbedder(gc.Models, values.Model, int32(values.Dimension), values.MaxRequestsPerMinute)
	}

	// Assemble the final ServiceClients struct with all the initialized clients and wrappers.
	cloud = &ServiceClients{
		StorageClient:   sc,
		PubsubClient:    pc,
		GenAIClient:     gc,
		BigQueryClient:  bc,
		IAMClient:       ic,
		PubSubListeners: subscriptions,
		Encoders:        encoders,
	}

	return cloud, err
}
