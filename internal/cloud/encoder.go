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
// This file implements a wrapper around the standard Generative AI embedding
// client. The wrapper uses the Decorator design pattern to add extra
// functionality to an existing object without altering its code. Specifically,
// it adds rate limiting and a retry mechanism around embedding requests.
//
// Why this is important:
//   - Rate Limiting: Services like Vertex AI have quotas on how many requests
//     you can make per minute. The wrapper prevents the application from
//     exceeding those limits, which would otherwise result in errors.
//   - Retry Logic: Network requests can sometimes fail for transient reasons.
//     The wrapper automatically retries a failed request, making the
//     application more resilient and reliable.
//
// Structs:
//   - QuotaAwareEmbedder: Wraps the base `genai.Models` handle with a rate
//     limiter and a fixed model name and output dimensionality.
//
// Functions:
//   - NewQuotaAwareEmbedder: A constructor to create a new instance of the
//     wrapped embedder.
//   - Embed: Converts a text query into a vector, enforcing rate limiting
//     and retries.
package cloud

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// maxEmbedRetries bounds how many times a transient embedding failure is
// retried before the error is surfaced to the caller.
const maxEmbedRetries = 3

// QuotaAwareEmbedder is a decorator struct that wraps the `genai.Models`
// handle to add rate-limiting capabilities for embedding calls. Each search
// space gets its own embedder so that the behavioral and visual encoders can
// use different models, dimensions, and quotas independently.
type QuotaAwareEmbedder struct {
	ModelName   string
	Dimension   int32
	ModelHandle *genai.Models
	RateLimit   rate.Limiter // Controls request frequency against the service quota.
}

// NewQuotaAwareEmbedder is a constructor function that creates a new
// QuotaAwareEmbedder. It takes the shared model handle, the embedding model
// name, the expected output dimensionality, and a per-minute request quota,
// and returns the enhanced, quota-aware embedder.
//
// Inputs:
//   - models: The shared *genai.Models handle used to issue embedding calls.
//   - modelName: The name of the embedding model, e.g. "text-embedding-005".
//   - dimension: The output dimensionality to request from the model.
//   - requestsPerMinute: The maximum number of API calls allowed per minute.
//
// Outputs:
//   - *QuotaAwareEmbedder: A pointer to the newly created wrapper.
func NewQuotaAwareEmbedder(models *genai.Models, modelName string, dimension int32, requestsPerMinute int) *QuotaAwareEmbedder {
	return &QuotaAwareEmbedder{
		ModelName:   modelName,
		Dimension:   dimension,
		ModelHandle: models,
		// Replenishes the token bucket evenly across the minute while
		// allowing a burst of `requestsPerMinute` events.
		RateLimit: *rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
	}
}

// Embed converts a free-text query into a dense vector in this embedder's
// space. This is where the rate-limiting and retry logic is implemented.
//
// Logic Flow:
//  1. Wait for the rate limiter to admit the request.
//  2. Call the embedding model.
//  3. If the call fails, wait briefly and retry, up to maxEmbedRetries times.
//  4. Return the vector from the first (and only) embedding in the response.
//
// Inputs:
//   - ctx: The context for the request, honored while waiting on the limiter
//     and between retries.
//   - text: The natural-language query to encode.
//
// Outputs:
//   - []float32: The embedding vector if successful.
//   - error: An error if the request fails after all retries.
func (q *QuotaAwareEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	config := &genai.EmbedContentConfig{OutputDimensionality: &q.Dimension}

	var lastErr error
	for attempt := 0; attempt <= maxEmbedRetries; attempt++ {
		// Wait blocks until the limiter allows the request or the context
		// is cancelled, so queued requests back off instead of spinning.
		if err := q.RateLimit.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := q.ModelHandle.EmbedContent(ctx, q.ModelName, contents, config)
		if err == nil {
			if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
				return nil, errors.New("embedding response contained no vector")
			}
			return resp.Embeddings[0].Values, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second * 5):
		}
	}
	return nil, errors.New("failed embedding on max retries: " + lastErr.Error())
}
