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
// first step of the queued generation chain: decoding the Pub/Sub payload.
//
// The raw message body arrives as a string under the default input key and
// leaves as a *model.GenerationRequest under ParamRequest. A body that does
// not decode is InvalidInput, so the listener drops it instead of waiting for
// a redelivery that would fail the same way.
package commands

import (
	"encoding/json"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/cloud"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
)

// GenerationJobReader turns a job message into a generation request.
type GenerationJobReader struct {
	cor.BaseCommand
}

// NewGenerationJobReader is the constructor for GenerationJobReader.
func NewGenerationJobReader(name string) *GenerationJobReader {
	return &GenerationJobReader{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *GenerationJobReader) Execute(context cor.Context) {
	in := context.Get(c.GetInputParam()).(string)

	var job cloud.GenerationJob
	if err := json.Unmarshal([]byte(in), &job); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), model.Errorf(model.ErrInvalidInput, "failed to unmarshal generation job: %w", err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	req := job.Request()
	context.Add(ParamRequest, req)
	context.Add(c.GetOutputParam(), req)
}
