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
// Responsibility (COR) pattern's Command interface. This file defines the
// command that uploads the final artifact to the object store.
//
// An upload failure does not fail the chain: the video was generated, so the
// request degrades to a response without a stored artifact. The failure is
// logged and left under ParamUploadError for the record step.
package commands

import (
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/cloud"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
)

// ArtifactContentType is stored on every generated object.
const ArtifactContentType = "video/mp4"

// ArtifactUpload stores the artifact under <prefix>/<work id>.mp4.
type ArtifactUpload struct {
	cor.BaseCommand
	objects services.ObjectStore
	prefix  string
}

// NewArtifactUpload is the constructor for ArtifactUpload.
func NewArtifactUpload(name string, objects services.ObjectStore, prefix string) *ArtifactUpload {
	out := &ArtifactUpload{BaseCommand: *cor.NewBaseCommand(name), objects: objects, prefix: prefix}
	out.InputParamName = ParamArtifact
	out.OutputParamName = ParamLocation
	return out
}

func (c *ArtifactUpload) Execute(context cor.Context) {
	path := context.Get(c.GetInputParam()).(string)
	workID := context.Get(ParamWorkID).(string)
	key := cloud.GeneratedObjectKey(c.prefix, workID)

	dat, err := os.Open(path)
	if err != nil {
		c.degrade(context, workID, key, model.Errorf(model.ErrStorage, "opening artifact: %w", err))
		return
	}
	defer dat.Close()

	if err = c.objects.Put(context.GetContext(), key, dat, ArtifactContentType); err != nil {
		c.degrade(context, workID, key, err)
		return
	}

	slog.InfoContext(context.GetContext(), "artifact uploaded", "work_id", workID, "bucket", c.objects.Bucket(), "key", key)
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), &model.ObjectLocation{Bucket: c.objects.Bucket(), Key: key})
}

func (c *ArtifactUpload) degrade(context cor.Context, workID string, key string, err error) {
	slog.WarnContext(context.GetContext(), "artifact upload failed, returning without a stored video",
		"work_id", workID, "key", key, "error", err)
	c.GetErrorCounter().Add(context.GetContext(), 1)
	context.Add(ParamUploadError, err)
}
