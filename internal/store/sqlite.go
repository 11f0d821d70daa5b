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

// Package store owns the durable scene/embedding data and the per-space
// nearest-neighbor indexes. This file implements SceneStore, the durable
// mapping from (scene, camera, space) to embedding vectors plus the scene
// metadata records, backed by an embedded SQLite database.
//
// The store is append-only from the ingest pipeline's point of view: puts
// insert or overwrite whole rows, and nothing here mutates a vector in
// place. Vectors are serialized as little-endian float32 blobs; tags and
// camera lists are serialized as JSON.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jaycherian/gcp-go-fleet-scene-search/internal/core/model"
)

const sceneStoreSchema = `
CREATE TABLE IF NOT EXISTS scene (
	id           TEXT PRIMARY KEY,
	risk_score   REAL NOT NULL DEFAULT 0,
	safety_score REAL NOT NULL DEFAULT 0,
	summary      TEXT NOT NULL DEFAULT '',
	tags         TEXT NOT NULL DEFAULT '{}',
	cameras      TEXT NOT NULL DEFAULT '[]',
	created_at   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS embedding (
	scene_id  TEXT NOT NULL,
	camera_id TEXT NOT NULL,
	space     TEXT NOT NULL,
	dim       INTEGER NOT NULL,
	vector    BLOB NOT NULL,
	norm      REAL NOT NULL,
	PRIMARY KEY (scene_id, camera_id, space)
);
CREATE INDEX IF NOT EXISTS idx_embedding_space ON embedding (space);
`

// SceneStore is the durable store for scenes and their embeddings. It also
// enforces each space's configured dimensionality at the write boundary so a
// malformed vector can never reach an index.
type SceneStore struct {
	db   *sql.DB
	dims map[model.Space]int
}

// NewSceneStore opens (creating if necessary) the SQLite database at path
// and applies the schema.
//
// Inputs:
//   - path: Filesystem path for the database file (":memory:" works for tests).
//   - dims: The configured vector dimensionality per embedding space.
//
// Outputs:
//   - *SceneStore: The ready-to-use store.
//   - error: An error if the database could not be opened or migrated.
func NewSceneStore(path string, dims map[model.Space]int) (*SceneStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene database %q: %w", path, err)
	}
	// modernc sqlite serializes writes internally; a single connection
	// avoids SQLITE_BUSY churn under concurrent ingest.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sceneStoreSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply scene store schema: %w", err)
	}
	return &SceneStore{db: db, dims: dims}, nil
}

// Close releases the underlying database handle.
func (s *SceneStore) Close() error {
	return s.db.Close()
}

// Dimension returns the configured dimensionality for a space, or 0 when the
// space has no configured dimension.
func (s *SceneStore) Dimension(space model.Space) int {
	return s.dims[space]
}

// PutScene inserts or replaces one scene record.
func (s *SceneStore) PutScene(ctx context.Context, scene *model.Scene) error {
	tags, err := json.Marshal(scene.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags for scene %s: %w", scene.Id, err)
	}
	cameras, err := json.Marshal(scene.Cameras)
	if err != nil {
		return fmt.Errorf("failed to encode cameras for scene %s: %w", scene.Id, err)
	}
	createdAt := scene.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO scene (id, risk_score, safety_score, summary, tags, cameras, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scene.Id, scene.RiskScore, scene.SafetyScore, scene.Summary, string(tags), string(cameras), createdAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to persist scene %s: %w", scene.Id, err)
	}
	return nil
}

// GetScene loads one scene by id, returning ErrSceneNotFound when absent.
func (s *SceneStore) GetScene(ctx context.Context, id string) (*model.Scene, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, risk_score, safety_score, summary, tags, cameras, created_at FROM scene WHERE id = ?`, id)
	scene, err := scanScene(row)
	if err == sql.ErrNoRows {
		return nil, ErrSceneNotFound
	}
	return scene, err
}

// ListScenes returns every stored scene ordered by id, which keeps analysis
// runs deterministic for a given store state.
func (s *SceneStore) ListScenes(ctx context.Context) ([]*model.Scene, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, risk_score, safety_score, summary, tags, cameras, created_at FROM scene ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	defer rows.Close()

	out := make([]*model.Scene, 0)
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, scene)
	}
	return out, rows.Err()
}

// rowScanner lets scanScene work for both QueryRow and Query results.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanScene(r rowScanner) (*model.Scene, error) {
	var (
		scene     model.Scene
		tags      string
		cameras   string
		createdAt int64
	)
	if err := r.Scan(&scene.Id, &scene.RiskScore, &scene.SafetyScore, &scene.Summary, &tags, &cameras, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &scene.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags for scene %s: %w", scene.Id, err)
	}
	if err := json.Unmarshal([]byte(cameras), &scene.Cameras); err != nil {
		return nil, fmt.Errorf("failed to decode cameras for scene %s: %w", scene.Id, err)
	}
	scene.CreatedAt = time.Unix(0, createdAt).UTC()
	return &scene, nil
}

// PutEmbedding stores or overwrites one embedding. The vector's
// dimensionality must match the space's configured dimension; violations are
// rejected with ErrInvalidVector so they can be logged and the scene skipped
// rather than silently zero-padded.
func (s *SceneStore) PutEmbedding(ctx context.Context, e *model.Embedding) error {
	dim, ok := s.dims[e.Space]
	if !ok || len(e.Vector) != dim {
		return fmt.Errorf("scene %s camera %q space %s: got %d values, want %d: %w",
			e.SceneId, e.CameraId, e.Space, len(e.Vector), dim, ErrInvalidVector)
	}
	norm := e.Norm
	if norm == 0 {
		norm = Norm(e.Vector)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embedding (scene_id, camera_id, space, dim, vector, norm)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.SceneId, e.CameraId, string(e.Space), dim, encodeVector(e.Vector), norm)
	if err != nil {
		return fmt.Errorf("failed to persist embedding for scene %s: %w", e.SceneId, err)
	}
	return nil
}

// GetEmbedding loads one embedding by its (scene, camera, space) key,
// returning ErrEmbeddingNotFound when absent.
func (s *SceneStore) GetEmbedding(ctx context.Context, sceneId, cameraId string, space model.Space) (*model.Embedding, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT scene_id, camera_id, space, vector, norm FROM embedding
		 WHERE scene_id = ? AND camera_id = ? AND space = ?`, sceneId, cameraId, string(space))
	e, err := scanEmbedding(row)
	if err == sql.ErrNoRows {
		return nil, ErrEmbeddingNotFound
	}
	return e, err
}

// ListEmbeddings returns every embedding in one space ordered by (scene,
// camera). Index rebuilds on boot and analysis runs both read through here.
func (s *SceneStore) ListEmbeddings(ctx context.Context, space model.Space) ([]*model.Embedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scene_id, camera_id, space, vector, norm FROM embedding
		 WHERE space = ? ORDER BY scene_id, camera_id`, string(space))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s embeddings: %w", space, err)
	}
	defer rows.Close()

	out := make([]*model.Embedding, 0)
	for rows.Next() {
		e, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmbedding(r rowScanner) (*model.Embedding, error) {
	var (
		e     model.Embedding
		space string
		blob  []byte
	)
	if err := r.Scan(&e.SceneId, &e.CameraId, &space, &blob, &e.Norm); err != nil {
		return nil, err
	}
	e.Space = model.Space(space)
	e.Vector = decodeVector(blob)
	return &e, nil
}

// encodeVector serializes a vector as a little-endian float32 blob.
func encodeVector(in []float32) []byte {
	out := make([]byte, 4*len(in))
	for i, v := range in {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

// decodeVector reverses encodeVector.
func decodeVector(in []byte) []float32 {
	out := make([]float32, len(in)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(in[4*i:]))
	}
	return out
}
