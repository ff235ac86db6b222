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

// Package model defines the data structures for the application. This file,
// `examples.go`, provides factory functions for well-formed example instances
// of the models. Tests across the repository start from these and mutate the
// field under test.
package model

import "time"

// ExampleOwnerID is a subject claim in the shape the identity provider issues.
const ExampleOwnerID = "7d0c5f0e-3b1a-4c7e-9a51-2f3b9c1d8e40"

// GetExampleGenerationRequest returns a valid 16 second request with a base
// prompt and no reference image.
func GetExampleGenerationRequest() *GenerationRequest {
	return &GenerationRequest{
		OwnerID:         ExampleOwnerID,
		Prompt:          "A sunrise over a coffee farm, steam rising from a fresh cup, warm cinematic light.",
		DurationSeconds: 2 * SegmentSeconds,
		Title:           "Morning Roast",
	}
}

// GetExampleReferenceImage returns a tiny PNG image. The bytes carry a real
// PNG signature so MIME sniffing resolves to image/png.
func GetExampleReferenceImage() *ReferenceImage {
	return &ReferenceImage{
		Filename: "product.png",
		Data: []byte{
			0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
			0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
			0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
			0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
			0x89,
		},
	}
}

// GetExampleVideoRecord returns a READY record stored under the generated
// prefix.
func GetExampleVideoRecord() *VideoRecord {
	created := time.Date(2024, 10, 11, 3, 4, 8, 0, time.UTC)
	return &VideoRecord{
		ID:      42,
		OwnerID: ExampleOwnerID,
		Location: ObjectLocation{
			Bucket: "ad-videos",
			Key:    "generated-videos/3f1e2d4c-5b6a-4978-8c9d-0e1f2a3b4c5d.mp4",
		},
		Title:     "Morning Roast",
		Status:    VideoStatusReady,
		CreatedAt: created,
		UpdatedAt: created,
	}
}
