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
// This file defines FFMpegConcatenator, which joins generated segments into
// one clip with the ffmpeg concat demuxer. Inputs are re-encoded to a common
// profile since segments may differ in encoding parameters.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
)

// concatArgs follow the list file and precede the output path.
var concatArgs = []string{
	"-c:v", "libx264",
	"-c:a", "aac",
	"-b:v", "5M",
	"-b:a", "192k",
	"-preset", "medium",
	"-y",
}

const (
	ConcatListPattern = "concat-*.txt"
	stderrTailBytes   = 2048
)

// FFMpegConcatenator runs the ffmpeg binary at CommandPath.
type FFMpegConcatenator struct {
	CommandPath string
}

// NewFFMpegConcatenator is the constructor for FFMpegConcatenator.
func NewFFMpegConcatenator(commandPath string) *FFMpegConcatenator {
	if commandPath == "" {
		commandPath = "ffmpeg"
	}
	return &FFMpegConcatenator{CommandPath: commandPath}
}

// Concatenate writes orderedPaths, in order, to outputPath.
//
// Errors:
//   - fewer than two inputs: model.ErrInvalidInput.
//   - an input does not exist: model.ErrNotFound.
//   - ffmpeg fails or leaves a missing or empty output: model.ErrProcessingFailed.
//
// The list file handed to ffmpeg is removed on every path.
func (c *FFMpegConcatenator) Concatenate(ctx context.Context, orderedPaths []string, outputPath string) error {
	if len(orderedPaths) < 2 {
		return model.Errorf(model.ErrInvalidInput, "concatenation needs at least 2 inputs, got %d", len(orderedPaths))
	}
	absPaths := make([]string, 0, len(orderedPaths))
	for _, p := range orderedPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return model.Errorf(model.ErrProcessingFailed, "resolving %s: %w", p, err)
		}
		if _, err := os.Stat(abs); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return model.Errorf(model.ErrNotFound, "segment %s does not exist", p)
			}
			return model.Errorf(model.ErrProcessingFailed, "checking %s: %w", p, err)
		}
		absPaths = append(absPaths, abs)
	}

	listFile, err := os.CreateTemp(filepath.Dir(outputPath), ConcatListPattern)
	if err != nil {
		return model.Errorf(model.ErrProcessingFailed, "creating concat list: %w", err)
	}
	defer func(name string) {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove concat list", "path", name, "error", err)
		}
	}(listFile.Name())

	var list strings.Builder
	for _, p := range absPaths {
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(p, "'", `'\''`))
	}
	_, err = listFile.WriteString(list.String())
	if closeErr := listFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return model.Errorf(model.ErrProcessingFailed, "writing concat list: %w", err)
	}

	args := append([]string{"-f", "concat", "-safe", "0", "-i", listFile.Name()}, concatArgs...)
	args = append(args, outputPath)
	cmd := exec.CommandContext(ctx, c.CommandPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.InfoContext(ctx, "concatenating segments", "inputs", len(absPaths), "output", outputPath)
	if err := cmd.Run(); err != nil {
		return model.Errorf(model.ErrProcessingFailed, "ffmpeg concat failed: %w: %s", err, tail(stderr.Bytes()))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return model.Errorf(model.ErrProcessingFailed, "concat output %s missing: %w", outputPath, err)
	}
	if info.Size() == 0 {
		return model.Errorf(model.ErrProcessingFailed, "concat output %s is empty", outputPath)
	}
	return nil
}

func tail(b []byte) string {
	if len(b) > stderrTailBytes {
		b = b[len(b)-stderrTailBytes:]
	}
	return strings.TrimSpace(string(b))
}
