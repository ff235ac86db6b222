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
// This file, `transient.go`, contains the structures that only live for the
// duration of one generation request. They are built from inbound input,
// passed between the commands of the generation chain and dropped once the
// response is written.
package model

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// SegmentSeconds is the length of one generated clip.
const SegmentSeconds = 8

// SupportedDurations lists the total lengths a caller may ask for.
var SupportedDurations = []int{SegmentSeconds, 2 * SegmentSeconds, 3 * SegmentSeconds}

// AllowedImageExtensions lists the reference image formats accepted by the
// video model.
var AllowedImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// ReferenceImage is an uploaded image that seeds every segment.
type ReferenceImage struct {
	Filename string // Original client file name, used for the extension check.
	Data     []byte
}

// Extension returns the lower-cased extension of the original file name.
func (r *ReferenceImage) Extension() string {
	return strings.ToLower(filepath.Ext(r.Filename))
}

// GenerationRequest is a single ask for a generated ad. It has no identity of
// its own and is discarded after the response is produced.
type GenerationRequest struct {
	OwnerID         string
	Prompt          string   // Base prompt shared by every segment.
	Prompts         []string // Optional per-segment prompts, one per segment.
	DurationSeconds int
	Title           string
	Image           *ReferenceImage
}

// SegmentCount is DurationSeconds divided by the segment length. It is only
// meaningful after Validate succeeds.
func (r *GenerationRequest) SegmentCount() int {
	return r.DurationSeconds / SegmentSeconds
}

// Validate checks the request without touching the file system.
func (r *GenerationRequest) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return Errorf(ErrInvalidInput, "owner is required")
	}
	if !slices.Contains(SupportedDurations, r.DurationSeconds) {
		return Errorf(ErrInvalidInput, "duration must be 8, 16, or 24 seconds, got %d", r.DurationSeconds)
	}
	if len(r.Prompts) > 0 {
		if len(r.Prompts) != r.SegmentCount() {
			return Errorf(ErrInvalidInput, "expected %d prompt(s) for %ds duration, got %d",
				r.SegmentCount(), r.DurationSeconds, len(r.Prompts))
		}
		for i, p := range r.Prompts {
			if strings.TrimSpace(p) == "" {
				return Errorf(ErrInvalidInput, "prompt %d is empty", i+1)
			}
		}
	} else if strings.TrimSpace(r.Prompt) == "" {
		return Errorf(ErrInvalidInput, "prompt is required")
	}
	if r.Image != nil {
		if !slices.Contains(AllowedImageExtensions, r.Image.Extension()) {
			return Errorf(ErrInvalidInput, "invalid image format %q, allowed: %s",
				r.Image.Extension(), strings.Join(AllowedImageExtensions, ", "))
		}
		if len(r.Image.Data) == 0 {
			return Errorf(ErrInvalidInput, "image is empty")
		}
	}
	return nil
}

// SegmentPrompt derives the prompt sent to the model for segment index i.
func (r *GenerationRequest) SegmentPrompt(i int) string {
	base := r.Prompt
	if len(r.Prompts) > i {
		base = r.Prompts[i]
	}
	return fmt.Sprintf("Focus only on part %d of %d of this video ad. %s", i+1, r.SegmentCount(), strings.TrimSpace(base))
}

// Segment is one unit of generation work.
type Segment struct {
	Index     int
	Prompt    string
	Path      string // Deterministic local output path.
	Completed bool   // Set once Path holds the downloaded clip.
}

// SegmentFileName is the local name of segment i for a work id.
func SegmentFileName(workID string, i int) string {
	return fmt.Sprintf("%s_segment_%d.mp4", workID, i)
}

// ArtifactFileName is the local name of the final clip for a work id.
func ArtifactFileName(workID string) string {
	return workID + ".mp4"
}

// ReferenceFileName is the local name of the saved reference image.
func ReferenceFileName(workID, ext string) string {
	return workID + "_reference" + ext
}

// GenerationResult is what the orchestrator reports back to the caller.
type GenerationResult struct {
	WorkID      string
	Outcome     GenerationOutcome
	Record      *VideoRecord // Nil when the upload failed.
	PlaybackURL string       // Empty when the upload or signing failed.
}

// VideoID is the record id when a record exists, otherwise the work id.
func (g *GenerationResult) VideoID() string {
	if g.Record != nil {
		return g.Record.IDString()
	}
	return g.WorkID
}

// VideoGenerationResponse is the JSON body returned by the generate endpoint.
type VideoGenerationResponse struct {
	Message  string  `json:"message"`
	VideoID  string  `json:"video_id"`
	Status   string  `json:"status"`
	VideoURL *string `json:"video_url"`
}
