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
// that turns the generated segments into the final local artifact.
//
// Logic Flow:
//  1. One segment: the clip is moved to <work dir>/<work id>.mp4.
//  2. Two or more: the concatenator joins them, in index order, into that path.
//  3. The artifact path is tracked for cleanup and published under ParamArtifact.
package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
)

// SegmentAssemble produces the final artifact from the ordered segments.
type SegmentAssemble struct {
	cor.BaseCommand
	concatenator services.Concatenator
}

// NewSegmentAssemble is the constructor for SegmentAssemble.
func NewSegmentAssemble(name string, concatenator services.Concatenator) *SegmentAssemble {
	out := &SegmentAssemble{BaseCommand: *cor.NewBaseCommand(name), concatenator: concatenator}
	out.InputParamName = ParamSegments
	out.OutputParamName = ParamArtifact
	return out
}

func (c *SegmentAssemble) Execute(context cor.Context) {
	segments := context.Get(c.GetInputParam()).([]*model.Segment)
	workID := context.Get(ParamWorkID).(string)

	artifact, err := workPath(context, model.ArtifactFileName(workID))
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), model.Errorf(model.ErrProcessingFailed, "assembling: %w", err))
		return
	}
	context.AddTempFile(artifact)

	paths := make([]string, 0, len(segments))
	for _, seg := range segments {
		paths = append(paths, seg.Path)
	}

	switch len(paths) {
	case 0:
		err = model.Errorf(model.ErrProcessingFailed, "no segments to assemble")
	case 1:
		if err = MoveFile(paths[0], artifact); err != nil {
			err = model.Errorf(model.ErrProcessingFailed, "moving segment to %s: %w", artifact, err)
		}
	default:
		err = c.concatenator.Concatenate(context.GetContext(), paths, artifact)
	}
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}

	slog.InfoContext(context.GetContext(), "artifact assembled", "work_id", workID, "segments", len(paths), "path", artifact)
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), artifact)
}

// MoveFile renames sourcePath to destPath, copying across file systems when a
// rename is not possible.
func MoveFile(sourcePath, destPath string) error {
	if err := os.Rename(sourcePath, destPath); err == nil {
		return nil
	}

	inputFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("could not open source file: %w", err)
	}
	defer inputFile.Close()

	outputFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("could not open dest file: %w", err)
	}
	_, err = io.Copy(outputFile, inputFile)
	if closeErr := outputFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("could not copy to dest from source: %w", err)
	}

	_ = inputFile.Close()
	if err = os.Remove(sourcePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not remove source file: %w", err)
	}
	return nil
}
