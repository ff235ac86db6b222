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
// first step of the generation chain: request validation. It touches no
// external collaborator and no file, so a rejected request leaves nothing
// behind.
package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
)

// ValidateGenerationRequest rejects malformed requests with model.ErrInvalidInput.
type ValidateGenerationRequest struct {
	cor.BaseCommand
}

// NewValidateGenerationRequest is the constructor for ValidateGenerationRequest.
func NewValidateGenerationRequest(name string) *ValidateGenerationRequest {
	out := &ValidateGenerationRequest{BaseCommand: *cor.NewBaseCommand(name)}
	out.InputParamName = ParamRequest
	return out
}

func (c *ValidateGenerationRequest) Execute(context cor.Context) {
	req := context.Get(c.GetInputParam()).(*model.GenerationRequest)
	if err := req.Validate(); err != nil {
		slog.WarnContext(context.GetContext(), "rejected generation request",
			"work_id", context.Get(ParamWorkID), "owner_id", req.OwnerID, "error", err)
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}
	c.GetSuccessCounter().Add(context.GetContext(), 1)
}
