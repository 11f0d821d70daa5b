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

// Package services contains the business logic for interacting with data
// sources. This file, `scenes.go`, defines the SceneService, which retrieves
// scene metadata from the durable store and generates secure, time-limited
// URLs for streaming camera footage stored in Google Cloud Storage (GCS).
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/store"
)

// SceneService is a struct that encapsulates the clients and configuration
// needed to serve scene lookups. It acts as a data access layer, abstracting
// the details of the durable store and GCS.
type SceneService struct {
	Store         *store.SceneStore                 // Durable scene and embedding storage.
	StorageClient *storage.Client                   // Client for interacting with Google Cloud Storage.
	IAMClient     *credentials.IamCredentialsClient // Client for interacting with IAM, used for signing URLs.
	SignerEmail   string                            // The service account email used to sign URLs.
	UrlLifetime   time.Duration                     // How long generated playback URLs stay valid.
}

// Get retrieves a single scene from the durable store by its unique ID.
//
// Inputs:
//   - ctx: The context for the request, used for cancellation and tracing.
//   - id: The unique identifier of the scene to retrieve.
//
// Outputs:
//   - *model.Scene: A pointer to the retrieved scene.
//   - error: store.ErrSceneNotFound when the id is unknown, or a query failure.
func (s *SceneService) Get(ctx context.Context, id string) (*model.Scene, error) {
	return s.Store.GetScene(ctx, id)
}

// GetWithPlayback retrieves a scene and rewrites each camera channel's video
// locator into a signed, time-limited URL suitable for direct playback from a
// browser. Channels whose locator cannot be signed keep the raw locator, so a
// signing outage degrades playback rather than hiding the scene.
//
// Inputs:
//   - ctx: The context for the request.
//   - id: The unique identifier of the scene to retrieve.
//
// Outputs:
//   - *model.Scene: A copy of the scene with playback URLs substituted.
//   - error: store.ErrSceneNotFound when the id is unknown, or a query failure.
func (s *SceneService) GetWithPlayback(ctx context.Context, id string) (*model.Scene, error) {
	scene, err := s.Store.GetScene(ctx, id)
	if err != nil {
		return nil, err
	}

	cameras := make([]model.CameraChannel, len(scene.Cameras))
	copy(cameras, scene.Cameras)
	for i := range cameras {
		signed, err := s.GenerateSignedURL(ctx, cameras[i].VideoUri, s.UrlLifetime)
		if err != nil {
			slog.Warn("failed to sign camera footage url",
				"scene_id", id,
				"camera", cameras[i].Camera,
				"error", err)
			continue
		}
		cameras[i].VideoUri = signed
	}
	signedScene := *scene
	signedScene.Cameras = cameras
	return &signedScene, nil
}

// GenerateSignedURL creates a time-limited, secure URL to access a private GCS
// object. This allows clients (like a web browser) to stream camera footage
// directly from GCS without needing their own credentials. The URL is signed
// using the credentials of the service account specified in `s.SignerEmail`.
//
// Inputs:
//   - ctx: The context for the request.
//   - gcsURI: The locator of the GCS object (e.g., "gs://bucket/scene/front.mp4").
//   - expires: The duration for which the URL will be valid.
//
// Outputs:
//   - string: The generated signed URL.
//   - error: An error if parsing the URI or signing the URL fails.
func (s *SceneService) GenerateSignedURL(ctx context.Context, gcsURI string, expires time.Duration) (string, error) {
	// ---- 1. Parse the GCS URI ----
	// The locator needs to be broken down into its bucket and object
	// components. Example: gs://my-bucket/scene-42/front.mp4
	const prefix = "gs://"
	if !strings.HasPrefix(gcsURI, prefix) {
		return "", fmt.Errorf("invalid GCS URI format: %s", gcsURI)
	}
	// Remove the prefix to get "my-bucket/scene-42/front.mp4"
	path := strings.TrimPrefix(gcsURI, prefix)
	// Split the remaining path by the first slash.
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 {
		return "", fmt.Errorf("invalid GCS URI: unable to determine bucket and object from %s", gcsURI)
	}
	bucketName := parts[0]
	objectName := parts[1]

	// ---- 2. Define Signing Options ----
	// Configure the parameters for the V4 signing process. The SignBytes
	// callback delegates the actual signature to the IAM Credentials API,
	// which avoids distributing service account key files with the server.
	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4, // Use the modern and more secure V4 signing scheme.
		Method:         "GET",                   // The URL will only be valid for GET requests.
		Expires:        time.Now().Add(expires), // Set the expiration time.
		GoogleAccessID: s.SignerEmail,
	}

	// ---- 3. Generate and Return the URL ----
	// Call the GCS client library's SignedURL method with the object details
	// and signing options.
	u, err := s.StorageClient.Bucket(bucketName).SignedURL(objectName, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).Object(%q).SignedURL: %w", bucketName, objectName, err)
	}
	return u, nil
}
