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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the step
// that records the stored artifact and builds the generation result.
//
// Logic Flow:
//   - Upload failed: no READY record is created; a provisional record, if
//     any, moves to FAILED. The result is degraded and carries no record.
//   - Upload succeeded: the provisional record moves to READY, or a READY
//     record is created. A playback URL is signed; a signing failure only
//     degrades the result.
//
// A metadata store error after a successful upload fails the request.
package commands

import (
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
)

// VideoRecordFinalize records the artifact and publishes ParamResult.
type VideoRecordFinalize struct {
	cor.BaseCommand
	store   services.VideoStore
	objects services.ObjectStore
	ttl     time.Duration
}

// NewVideoRecordFinalize is the constructor for VideoRecordFinalize.
func NewVideoRecordFinalize(name string, store services.VideoStore, objects services.ObjectStore, ttl time.Duration) *VideoRecordFinalize {
	out := &VideoRecordFinalize{BaseCommand: *cor.NewBaseCommand(name), store: store, objects: objects, ttl: ttl}
	out.InputParamName = ParamArtifact
	out.OutputParamName = ParamResult
	return out
}

func (c *VideoRecordFinalize) Execute(context cor.Context) {
	ctx := context.GetContext()
	req := context.Get(ParamRequest).(*model.GenerationRequest)
	workID := context.Get(ParamWorkID).(string)
	location, _ := context.Get(ParamLocation).(*model.ObjectLocation)
	provisional, _ := context.Get(ParamProvisional).(*model.VideoRecord)

	result := &model.GenerationResult{WorkID: workID, Outcome: model.OutcomeCompleted}

	if location == nil {
		result.Outcome = model.OutcomeDegraded
		if provisional != nil {
			if _, err := c.store.UpdateStatus(ctx, provisional.ID, model.VideoStatusFailed); err != nil {
				slog.WarnContext(ctx, "could not fail provisional record", "work_id", workID, "video_id", provisional.ID, "error", err)
			}
		}
		c.GetSuccessCounter().Add(ctx, 1)
		context.Add(c.GetOutputParam(), result)
		return
	}

	var (
		record *model.VideoRecord
		err    error
	)
	if provisional != nil {
		record, err = c.store.UpdateStatus(ctx, provisional.ID, model.VideoStatusReady)
	} else {
		record, err = c.store.Create(ctx, req.OwnerID, *location, req.Title, model.VideoStatusReady)
	}
	if err != nil {
		slog.ErrorContext(ctx, "stored artifact has no ready record", "work_id", workID, "key", location.Key, "error", err)
		c.GetErrorCounter().Add(ctx, 1)
		context.AddError(c.GetName(), err)
		return
	}
	result.Record = record

	url, err := c.objects.Sign(ctx, location.Key, c.ttl)
	if err != nil {
		slog.WarnContext(ctx, "could not sign playback url", "work_id", workID, "video_id", record.ID, "error", err)
		result.Outcome = model.OutcomeDegraded
	} else {
		result.PlaybackURL = url
	}

	slog.InfoContext(ctx, "video recorded", "work_id", workID, "video_id", record.ID, "key", location.Key)
	c.GetSuccessCounter().Add(ctx, 1)
	context.Add(c.GetOutputParam(), result)
}
