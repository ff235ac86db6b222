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

// Package services contains the business logic for interacting with data sources.
// This file defines PostgresVideoStore, the metadata store for stored videos.
// Every write is a single auto-committed statement.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
)

// PostgresVideoStore keeps video records in the `video` table.
type PostgresVideoStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresVideoStore wraps a shared connection pool.
func NewPostgresVideoStore(db *sql.DB) *PostgresVideoStore {
	return &PostgresVideoStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// The video_status enum stores upper-case labels.
func statusToDB(s model.VideoStatus) string {
	return strings.ToUpper(string(s))
}

func statusFromDB(s string) (model.VideoStatus, error) {
	status := model.VideoStatus(strings.ToLower(s))
	if !status.Valid() {
		return "", fmt.Errorf("unknown video status %q", s)
	}
	return status, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*model.VideoRecord, error) {
	var (
		v      model.VideoRecord
		title  sql.NullString
		status string
	)
	if err := row.Scan(&v.ID, &v.OwnerID, &v.Location.Bucket, &v.Location.Key, &title, &status, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	v.Title = title.String
	s, err := statusFromDB(status)
	if err != nil {
		return nil, err
	}
	v.Status = s
	return &v, nil
}

// Create inserts a record and returns it with its assigned id.
func (s *PostgresVideoStore) Create(ctx context.Context, ownerID string, location model.ObjectLocation, title string, status model.VideoStatus) (*model.VideoRecord, error) {
	if !status.Valid() {
		return nil, model.Errorf(model.ErrInvalidInput, "unknown status %q", status)
	}
	row := s.db.QueryRowContext(ctx, QryInsertVideo,
		ownerID, location.Bucket, location.Key,
		sql.NullString{String: title, Valid: title != ""},
		statusToDB(status), s.now())
	v, err := scanVideo(row)
	if err != nil {
		return nil, model.Errorf(model.ErrStorage, "inserting video %s: %w", location.Key, err)
	}
	return v, nil
}

// GetByID returns the record or an error wrapping model.ErrNotFound.
func (s *PostgresVideoStore) GetByID(ctx context.Context, id int64) (*model.VideoRecord, error) {
	v, err := scanVideo(s.db.QueryRowContext(ctx, QryFindVideoById, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.Errorf(model.ErrNotFound, "video %d not found", id)
	}
	if err != nil {
		return nil, model.Errorf(model.ErrStorage, "reading video %d: %w", id, err)
	}
	return v, nil
}

// ListByOwner returns the owner's records, newest first.
func (s *PostgresVideoStore) ListByOwner(ctx context.Context, ownerID string) ([]*model.VideoRecord, error) {
	rows, err := s.db.QueryContext(ctx, QryListVideosByOwner, ownerID)
	if err != nil {
		return nil, model.Errorf(model.ErrStorage, "listing videos: %w", err)
	}
	defer rows.Close()

	out := make([]*model.VideoRecord, 0)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, model.Errorf(model.ErrStorage, "scanning video: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Errorf(model.ErrStorage, "listing videos: %w", err)
	}
	return out, nil
}

// UpdateStatus moves a record to status.
func (s *PostgresVideoStore) UpdateStatus(ctx context.Context, id int64, status model.VideoStatus) (*model.VideoRecord, error) {
	v, err := scanVideo(s.db.QueryRowContext(ctx, QryUpdateVideoStatus, id, statusToDB(status), s.now()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.Errorf(model.ErrNotFound, "video %d not found", id)
	}
	if err != nil {
		return nil, model.Errorf(model.ErrStorage, "updating video %d: %w", id, err)
	}
	return v, nil
}

// FailStaleProcessing marks PROCESSING records last updated before olderThan
// as FAILED and returns how many changed.
func (s *PostgresVideoStore) FailStaleProcessing(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, QryFailStaleProcessing,
		statusToDB(model.VideoStatusFailed), s.now(),
		statusToDB(model.VideoStatusProcessing), olderThan)
	if err != nil {
		return 0, model.Errorf(model.ErrStorage, "failing stale videos: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks the connection.
func (s *PostgresVideoStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
