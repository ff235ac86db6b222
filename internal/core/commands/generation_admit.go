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

package commands

import (
	"log/slog"
	"sync"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/cloud"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/telemetry"
)

// GenerationAdmit waits for the generation gate. The release function is
// stored under ParamRelease; the owner of the context must call it.
type GenerationAdmit struct {
	cor.BaseCommand
	gate *cloud.GenerationGate
}

// NewGenerationAdmit is the constructor for GenerationAdmit.
func NewGenerationAdmit(name string, gate *cloud.GenerationGate) *GenerationAdmit {
	out := &GenerationAdmit{BaseCommand: *cor.NewBaseCommand(name), gate: gate}
	out.InputParamName = ParamRequest
	return out
}

func (c *GenerationAdmit) Execute(context cor.Context) {
	release, err := c.gate.Acquire(context.GetContext())
	if err != nil {
		slog.WarnContext(context.GetContext(), "generation not admitted", "work_id", context.Get(ParamWorkID), "error", err)
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), err)
		return
	}
	telemetry.InflightGenerations.Inc()
	context.Add(ParamRelease, sync.OnceFunc(func() {
		release()
		telemetry.InflightGenerations.Dec()
	}))
	c.GetSuccessCounter().Add(context.GetContext(), 1)
}
