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

package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/cloud"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
)

// VideoRecordProvision writes a PROCESSING record for the key the artifact is
// about to be uploaded to, so a crash between upload and record leaves a row
// the stale sweeper can fail.
type VideoRecordProvision struct {
	cor.BaseCommand
	store   services.VideoStore
	bucket  string
	prefix  string
	enabled bool
}

// NewVideoRecordProvision is the constructor for VideoRecordProvision. When
// enabled is false the command does nothing.
func NewVideoRecordProvision(name string, store services.VideoStore, bucket string, prefix string, enabled bool) *VideoRecordProvision {
	out := &VideoRecordProvision{
		BaseCommand: *cor.NewBaseCommand(name),
		store:       store,
		bucket:      bucket,
		prefix:      prefix,
		enabled:     enabled,
	}
	out.InputParamName = ParamArtifact
	out.OutputParamName = ParamProvisional
	return out
}

func (c *VideoRecordProvision) Execute(context cor.Context) {
	if !c.enabled {
		return
	}
	req := context.Get(ParamRequest).(*model.GenerationRequest)
	workID := context.Get(ParamWorkID).(string)
	location := model.ObjectLocation{Bucket: c.bucket, Key: cloud.GeneratedObjectKey(c.prefix, workID)}

	record, err := c.store.Create(context.GetContext(), req.OwnerID, location, req.Title, model.VideoStatusProcessing)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}
	slog.InfoContext(context.GetContext(), "provisional record created", "work_id", workID, "video_id", record.ID)
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), record)
}
