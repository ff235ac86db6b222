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
// segment generation step: one video model job per segment.
//
// With a concurrency of 1 segments run strictly in index order and the first
// failure stops the loop. A higher value runs up to that many jobs at once;
// the first failure cancels the rest. Either way the published segment list
// is in index order, which is the order the clips are joined in.
package commands

import (
	goctx "context"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// SegmentGenerate drives the video generator for every segment of a request.
type SegmentGenerate struct {
	cor.BaseCommand
	generator   services.VideoGenerator
	concurrency int
}

// NewSegmentGenerate is the constructor for SegmentGenerate. A concurrency
// below 1 is treated as 1.
func NewSegmentGenerate(name string, generator services.VideoGenerator, concurrency int) *SegmentGenerate {
	if concurrency < 1 {
		concurrency = 1
	}
	out := &SegmentGenerate{BaseCommand: *cor.NewBaseCommand(name), generator: generator, concurrency: concurrency}
	out.InputParamName = ParamRequest
	out.OutputParamName = ParamSegments
	return out
}

func (c *SegmentGenerate) Execute(context cor.Context) {
	req := context.Get(c.GetInputParam()).(*model.GenerationRequest)
	workID := context.Get(ParamWorkID).(string)
	image, _ := context.Get(ParamImage).(*services.ImageInput)

	count := req.SegmentCount()
	segments := make([]*model.Segment, count)
	for i := range segments {
		path, err := workPath(context, model.SegmentFileName(workID, i))
		if err != nil {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			context.AddError(c.GetName(), model.Errorf(model.ErrProcessingFailed, "planning segments: %w", err))
			return
		}
		segments[i] = &model.Segment{Index: i, Prompt: req.SegmentPrompt(i), Path: path}
		context.AddTempFile(path)
	}

	var err error
	if c.concurrency == 1 || count == 1 {
		err = c.sequential(context, workID, segments, image)
	} else {
		err = c.parallel(context, workID, segments, image)
	}
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), segments)
}

func (c *SegmentGenerate) sequential(context cor.Context, workID string, segments []*model.Segment, image *services.ImageInput) error {
	for _, seg := range segments {
		if err := c.generate(context, workID, len(segments), seg, image); err != nil {
			return err
		}
	}
	return nil
}

func (c *SegmentGenerate) parallel(context cor.Context, workID string, segments []*model.Segment, image *services.ImageInput) error {
	g, gctx := errgroup.WithContext(context.GetContext())
	g.SetLimit(c.concurrency)
	for _, seg := range segments {
		g.Go(func() error {
			slog.InfoContext(gctx, "generating segment", "work_id", workID, "segment", seg.Index+1, "of", len(segments))
			if err := c.generator.GenerateSegment(gctx, seg.Prompt, seg.Path, image); err != nil {
				return err
			}
			return c.complete(gctx, workID, seg)
		})
	}
	return g.Wait()
}

func (c *SegmentGenerate) generate(context cor.Context, workID string, total int, seg *model.Segment, image *services.ImageInput) error {
	ctx := context.GetContext()
	slog.InfoContext(ctx, "generating segment", "work_id", workID, "segment", seg.Index+1, "of", total)
	if err := c.generator.GenerateSegment(ctx, seg.Prompt, seg.Path, image); err != nil {
		return err
	}
	return c.complete(ctx, workID, seg)
}

// complete checks the clip is on disk before marking the segment done.
func (c *SegmentGenerate) complete(ctx goctx.Context, workID string, seg *model.Segment) error {
	if info, err := os.Stat(seg.Path); err != nil || info.Size() == 0 {
		return model.Errorf(model.ErrGenerationFailed, "segment %d file missing after generation", seg.Index+1)
	}
	seg.Completed = true
	telemetry.RecordSegment()
	slog.InfoContext(ctx, "segment generated", "work_id", workID, "segment", seg.Index+1, "path", seg.Path)
	return nil
}
