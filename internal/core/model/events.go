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
// This file holds the events published to Pub/Sub.
package model

import "time"

// EventVideoReady is the event type attribute of VideoReadyEvent messages.
const EventVideoReady = "video.ready"

// VideoReadyEvent announces a READY record.
type VideoReadyEvent struct {
	VideoID   int64     `json:"video_id"`
	OwnerID   string    `json:"owner_id"`
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// NewVideoReadyEvent builds the event for v.
func NewVideoReadyEvent(v *VideoRecord) *VideoReadyEvent {
	return &VideoReadyEvent{
		VideoID:   v.ID,
		OwnerID:   v.OwnerID,
		Bucket:    v.Location.Bucket,
		Key:       v.Location.Key,
		CreatedAt: v.CreatedAt,
	}
}
