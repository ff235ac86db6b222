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

// Package model defines the core data structures for the application.
// This file holds the structures that outlive a single request: the video
// metadata row kept in Postgres, its JSON views and the audit row streamed
// to BigQuery.
package model

import (
	"strconv"
	"time"

	"cloud.google.com/go/bigquery"
)

// VideoStatus is the lifecycle state of a stored video.
type VideoStatus string

const (
	VideoStatusDraft      VideoStatus = "draft"
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusReady      VideoStatus = "ready"
	VideoStatusFailed     VideoStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s VideoStatus) Valid() bool {
	switch s {
	case VideoStatusDraft, VideoStatusProcessing, VideoStatusReady, VideoStatusFailed:
		return true
	}
	return false
}

// ObjectLocation identifies a stored object. Key is unique across all
// records and is never reused.
type ObjectLocation struct {
	Bucket string `json:"bucket"`
	Key    string `json:"s3_key"`
}

// VideoRecord is one row of the video table.
type VideoRecord struct {
	ID        int64          // Assigned by the store on create, immutable.
	OwnerID   string         // Subject claim of the caller that created the record.
	Location  ObjectLocation // Where the bytes live.
	Title     string         // Optional human label, empty when absent.
	Status    VideoStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IDString renders the numeric id the way the HTTP layer exposes it.
func (v *VideoRecord) IDString() string {
	return strconv.FormatInt(v.ID, 10)
}

// VideoRead is the JSON view of a record.
type VideoRead struct {
	ID        int64       `json:"id"`
	OwnerID   string      `json:"owner_id"`
	Bucket    string      `json:"bucket"`
	Key       string      `json:"s3_key"`
	Title     *string     `json:"title"`
	Status    VideoStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// VideoReadWithURL adds a time-limited playback URL to VideoRead.
type VideoReadWithURL struct {
	VideoRead
	PlaybackURL string `json:"playback_url"`
}

// NewVideoRead builds the JSON view for v. An empty title is rendered as null.
func NewVideoRead(v *VideoRecord) VideoRead {
	out := VideoRead{
		ID:        v.ID,
		OwnerID:   v.OwnerID,
		Bucket:    v.Location.Bucket,
		Key:       v.Location.Key,
		Status:    v.Status,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
	if v.Title != "" {
		title := v.Title
		out.Title = &title
	}
	return out
}

// GenerationOutcome is the final classification of one generation attempt.
type GenerationOutcome string

const (
	OutcomeCompleted GenerationOutcome = "completed"
	OutcomeDegraded  GenerationOutcome = "degraded"
	OutcomeFailed    GenerationOutcome = "failed"
	OutcomeRejected  GenerationOutcome = "rejected"
)

// GenerationAudit is the analytics row written once per generation attempt.
type GenerationAudit struct {
	WorkID          string             `bigquery:"work_id"`
	OwnerID         string             `bigquery:"owner_id"`
	DurationSeconds int                `bigquery:"duration_seconds"`
	SegmentCount    int                `bigquery:"segment_count"`
	HasImage        bool               `bigquery:"has_image"`
	Outcome         string             `bigquery:"outcome"`
	Error           string             `bigquery:"error"`
	VideoID         bigquery.NullInt64 `bigquery:"video_id"`
	ElapsedMillis   int64              `bigquery:"elapsed_ms"`
	StartedAt       time.Time          `bigquery:"started_at"`
}
