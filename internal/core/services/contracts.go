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

// Package services contains the collaborators the generation pipeline and the
// HTTP layer depend on. This file declares the narrow contracts they are
// consumed through so commands and handlers can be tested against fakes.
package services

import (
	"context"
	"io"
	"time"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
)

// VideoGenerator produces one clip for a prompt and writes it to outputPath.
// A nil image means text-only generation.
type VideoGenerator interface {
	GenerateSegment(ctx context.Context, prompt string, outputPath string, image *ImageInput) error
}

// ImageInput is a reference image already saved locally.
type ImageInput struct {
	Path     string
	MIMEType string
}

// Concatenator joins two or more local clips into outputPath in order.
type Concatenator interface {
	Concatenate(ctx context.Context, orderedPaths []string, outputPath string) error
}

// ObjectStore stores bytes under caller supplied keys and mints signed URLs.
type ObjectStore interface {
	Bucket() string
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Sign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// VideoStore persists video records.
type VideoStore interface {
	Create(ctx context.Context, ownerID string, location model.ObjectLocation, title string, status model.VideoStatus) (*model.VideoRecord, error)
	GetByID(ctx context.Context, id int64) (*model.VideoRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.VideoRecord, error)
	UpdateStatus(ctx context.Context, id int64, status model.VideoStatus) (*model.VideoRecord, error)
	FailStaleProcessing(ctx context.Context, olderThan time.Time) (int64, error)
	Ping(ctx context.Context) error
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, event any) error
}

// AuditSink records one row per generation attempt.
type AuditSink interface {
	Write(ctx context.Context, audit *model.GenerationAudit) error
}
