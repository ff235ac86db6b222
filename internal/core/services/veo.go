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
// This file defines VeoClient, the video generation client. A segment is one
// long-running model operation: submit, poll on a fixed interval until done,
// then download the clip to a local path.
//
// Failure mapping:
//   - the deadline from video_model.timeout_seconds expires: model.ErrTimeout.
//   - the model rejects the job, reports an operation error, returns no video
//     or returns empty bytes: model.ErrGenerationFailed.
//   - the clip cannot be written locally: model.ErrGenerationFailed.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/cloud"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"google.golang.org/genai"
)

// VideoOperations is the slice of the GenAI SDK the client uses.
type VideoOperations interface {
	GenerateVideos(ctx context.Context, model string, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
	GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
	Download(ctx context.Context, video *genai.Video) ([]byte, error)
}

// GenAIVideoOperations implements VideoOperations on a genai.Client.
type GenAIVideoOperations struct {
	Client        *genai.Client
	StorageClient *storage.Client // Reads gs:// results when Vertex writes to a bucket.
}

func (o *GenAIVideoOperations) GenerateVideos(ctx context.Context, model string, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return o.Client.Models.GenerateVideos(ctx, model, prompt, image, config)
}

func (o *GenAIVideoOperations) GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return o.Client.Operations.GetVideosOperation(ctx, op, nil)
}

// Download returns the clip bytes. Vertex inlines them or writes them to a
// bucket; the Gemini API serves them from the files endpoint.
func (o *GenAIVideoOperations) Download(ctx context.Context, video *genai.Video) ([]byte, error) {
	if len(video.VideoBytes) > 0 {
		return video.VideoBytes, nil
	}
	if strings.HasPrefix(video.URI, "gs://") {
		obj, err := cloud.ParseGSURI(video.URI)
		if err != nil {
			return nil, err
		}
		reader, err := o.StorageClient.Bucket(obj.Bucket).Object(obj.Name).NewReader(ctx)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", video.URI, err)
		}
		defer reader.Close()
		return io.ReadAll(reader)
	}
	return o.Client.Files.Download(ctx, genai.NewDownloadURIFromVideo(video), nil)
}

// VeoClient generates single segments.
type VeoClient struct {
	ops          VideoOperations
	model        string
	aspectRatio  string
	outputGCSURI string
	pollInterval time.Duration
	timeout      time.Duration
}

// NewVeoClient creates a client from the video model settings.
func NewVeoClient(ops VideoOperations, cfg cloud.VideoModel) *VeoClient {
	return &VeoClient{
		ops:          ops,
		model:        cfg.Model,
		aspectRatio:  cfg.AspectRatio,
		outputGCSURI: cfg.OutputGCSURI,
		pollInterval: cfg.PollInterval(),
		timeout:      cfg.Timeout(),
	}
}

// GenerateSegment runs one model job to completion and writes the clip to
// outputPath.
func (v *VeoClient) GenerateSegment(ctx context.Context, prompt string, outputPath string, image *ImageInput) error {
	var img *genai.Image
	if image != nil {
		data, err := os.ReadFile(image.Path)
		if err != nil {
			return model.Errorf(model.ErrGenerationFailed, "reading reference image: %w", err)
		}
		img = &genai.Image{ImageBytes: data, MIMEType: image.MIMEType}
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	config := &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    v.aspectRatio,
		OutputGCSURI:   v.outputGCSURI,
	}
	op, err := v.ops.GenerateVideos(ctx, v.model, prompt, img, config)
	if err != nil {
		return v.failure(ctx, "submitting video job", err)
	}
	slog.InfoContext(ctx, "video job submitted", "operation", op.Name, "model", v.model, "has_image", img != nil)

	op, err = v.wait(ctx, op)
	if err != nil {
		return err
	}
	if len(op.Error) > 0 {
		return model.Errorf(model.ErrGenerationFailed, "operation %s failed: %v", op.Name, op.Error)
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		if op.Response != nil && op.Response.RAIMediaFilteredCount > 0 {
			return model.Errorf(model.ErrGenerationFailed, "operation %s filtered: %s",
				op.Name, strings.Join(op.Response.RAIMediaFilteredReasons, "; "))
		}
		return model.Errorf(model.ErrGenerationFailed, "operation %s returned no video", op.Name)
	}

	data, err := v.ops.Download(ctx, op.Response.GeneratedVideos[0].Video)
	if err != nil {
		return v.failure(ctx, "downloading video", err)
	}
	if len(data) == 0 {
		return model.Errorf(model.ErrGenerationFailed, "operation %s returned an empty video", op.Name)
	}
	if err = os.WriteFile(outputPath, data, 0o644); err != nil {
		return model.Errorf(model.ErrGenerationFailed, "writing %s: %w", outputPath, err)
	}
	if info, err := os.Stat(outputPath); err != nil || info.Size() == 0 {
		return model.Errorf(model.ErrGenerationFailed, "video file %s missing after generation", outputPath)
	}
	slog.InfoContext(ctx, "video segment saved", "operation", op.Name, "path", outputPath, "bytes", len(data))
	return nil
}

// wait polls op every pollInterval until it is done or ctx ends.
func (v *VeoClient) wait(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	timer := time.NewTimer(v.pollInterval)
	defer timer.Stop()

	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, v.failure(ctx, fmt.Sprintf("waiting for operation %s", op.Name), ctx.Err())
		case <-timer.C:
		}
		next, err := v.ops.GetVideosOperation(ctx, op)
		if err != nil {
			return nil, v.failure(ctx, fmt.Sprintf("polling operation %s", op.Name), err)
		}
		op = next
		slog.DebugContext(ctx, "video job polled", "operation", op.Name, "done", op.Done)
		timer.Reset(v.pollInterval)
	}
	return op, nil
}

// failure classifies err, reporting an expired deadline as a timeout.
func (v *VeoClient) failure(ctx context.Context, action string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return model.Errorf(model.ErrTimeout, "%s: %w", action, err)
	}
	return model.Errorf(model.ErrGenerationFailed, "%s: %w", action, err)
}
