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
// This file, `media.go`, defines the MediaService, which reads video records
// from the metadata store and attaches time-limited playback URLs minted by
// the object store.
package services

import (
	"context"
	"time"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
)

// MediaService is the read side of stored videos.
type MediaService struct {
	Store   VideoStore
	Objects ObjectStore
	URLTTL  time.Duration // Lifetime of playback URLs.
}

// NewMediaService is the constructor for MediaService.
func NewMediaService(store VideoStore, objects ObjectStore, ttl time.Duration) *MediaService {
	return &MediaService{Store: store, Objects: objects, URLTTL: ttl}
}

// Get returns one record with a playback URL. A missing record wraps
// model.ErrNotFound; a signing failure wraps model.ErrStorage.
func (s *MediaService) Get(ctx context.Context, id int64) (*model.VideoReadWithURL, error) {
	v, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withURL(ctx, v)
}

// List returns the owner's records, newest first.
func (s *MediaService) List(ctx context.Context, ownerID string) ([]model.VideoRead, error) {
	records, err := s.Store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]model.VideoRead, 0, len(records))
	for _, v := range records {
		out = append(out, model.NewVideoRead(v))
	}
	return out, nil
}

// ListWithURLs is List with a playback URL per record. Any signing failure
// fails the whole call.
func (s *MediaService) ListWithURLs(ctx context.Context, ownerID string) ([]*model.VideoReadWithURL, error) {
	records, err := s.Store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]*model.VideoReadWithURL, 0, len(records))
	for _, v := range records {
		item, err := s.withURL(ctx, v)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *MediaService) withURL(ctx context.Context, v *model.VideoRecord) (*model.VideoReadWithURL, error) {
	u, err := s.Objects.Sign(ctx, v.Location.Key, s.URLTTL)
	if err != nil {
		return nil, err
	}
	return &model.VideoReadWithURL{VideoRead: model.NewVideoRead(v), PlaybackURL: u}, nil
}
