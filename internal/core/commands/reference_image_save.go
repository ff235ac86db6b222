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
// command that writes the caller's reference image into the work directory so
// every segment job can read it.
//
// Logic Flow:
//  1. Skip when the request carries no image.
//  2. Write the bytes to <work dir>/<work id>_reference<ext> and track the file.
//  3. Detect the MIME type from the content, falling back to the extension.
//  4. Publish the local path and MIME type under ParamImage.
//
// A write failure is fatal to the request.
package commands

import (
	"log/slog"
	"os"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
)

var imageMIMEByExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ReferenceImageSave persists the reference image locally.
type ReferenceImageSave struct {
	cor.BaseCommand
}

// NewReferenceImageSave is the constructor for ReferenceImageSave.
func NewReferenceImageSave(name string) *ReferenceImageSave {
	out := &ReferenceImageSave{BaseCommand: *cor.NewBaseCommand(name)}
	out.InputParamName = ParamRequest
	out.OutputParamName = ParamImage
	return out
}

func (c *ReferenceImageSave) Execute(context cor.Context) {
	req := context.Get(c.GetInputParam()).(*model.GenerationRequest)
	if req.Image == nil {
		return
	}
	workID := context.Get(ParamWorkID).(string)

	path, err := workPath(context, model.ReferenceFileName(workID, req.Image.Extension()))
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), model.Errorf(model.ErrProcessingFailed, "saving reference image: %w", err))
		return
	}
	context.AddTempFile(path)
	if err = os.WriteFile(path, req.Image.Data, 0o644); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), model.Errorf(model.ErrProcessingFailed, "saving reference image: %w", err))
		return
	}

	mimeType := imageMIMEByExtension[req.Image.Extension()]
	if kind, err := filetype.Match(req.Image.Data); err == nil && kind != filetype.Unknown {
		mimeType = kind.MIME.Value
	}

	slog.InfoContext(context.GetContext(), "reference image saved",
		"work_id", workID, "path", path, "mime_type", mimeType, "bytes", len(req.Image.Data))
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), &services.ImageInput{Path: path, MIMEType: mimeType})
}
