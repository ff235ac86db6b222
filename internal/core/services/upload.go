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

package services

import (
	"context"
	"io"
	"log/slog"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/cloud"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
)

// DefaultUploadContentType is used when the client sends none.
const DefaultUploadContentType = "application/octet-stream"

// UploadService stores user supplied videos and records them as READY.
type UploadService struct {
	Media  *MediaService
	Prefix string
}

// NewUploadService is the constructor for UploadService.
func NewUploadService(media *MediaService, prefix string) *UploadService {
	return &UploadService{Media: media, Prefix: prefix}
}

// Upload stores r under a fresh key, creates the record and returns it with a
// playback URL.
func (s *UploadService) Upload(ctx context.Context, ownerID string, filename string, contentType string, r io.Reader, title string) (*model.VideoReadWithURL, error) {
	if ownerID == "" {
		return nil, model.Errorf(model.ErrUnauthorized, "owner is required")
	}
	if contentType == "" {
		contentType = DefaultUploadContentType
	}
	key := cloud.UploadObjectKey(s.Prefix, filename)
	if err := s.Media.Objects.Put(ctx, key, r, contentType); err != nil {
		return nil, err
	}

	location := model.ObjectLocation{Bucket: s.Media.Objects.Bucket(), Key: key}
	record, err := s.Media.Store.Create(ctx, ownerID, location, title, model.VideoStatusReady)
	if err != nil {
		slog.ErrorContext(ctx, "stored upload has no record", "key", key, "error", err)
		return nil, err
	}
	slog.InfoContext(ctx, "video uploaded", "video_id", record.ID, "key", key)
	return s.Media.withURL(ctx, record)
}
