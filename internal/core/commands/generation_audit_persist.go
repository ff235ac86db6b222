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
// command that persists the audit row of a generation attempt.
//
// Logic Flow:
// The audit runs once per attempt, whatever its outcome, after the
// generation chain has finished. The row is streamed through the audit sink
// (BigQuery in production). An audit failure never changes the response, so
// it is logged and counted but not recorded on the chain.
package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
)

// GenerationAuditPersist writes the audit row found under ParamAudit.
type GenerationAuditPersist struct {
	cor.BaseCommand
	sink services.AuditSink
}

// NewGenerationAuditPersist is the constructor for GenerationAuditPersist.
func NewGenerationAuditPersist(name string, sink services.AuditSink) *GenerationAuditPersist {
	out := &GenerationAuditPersist{BaseCommand: *cor.NewBaseCommand(name), sink: sink}
	out.InputParamName = ParamAudit
	return out
}

// IsExecutable requires a sink and an audit row.
func (s *GenerationAuditPersist) IsExecutable(context cor.Context) bool {
	return s.sink != nil && s.BaseCommand.IsExecutable(context)
}

func (s *GenerationAuditPersist) Execute(context cor.Context) {
	audit := context.Get(s.GetInputParam()).(*model.GenerationAudit)
	if err := s.sink.Write(context.GetContext(), audit); err != nil {
		slog.WarnContext(context.GetContext(), "generation audit not persisted", "work_id", audit.WorkID, "error", err)
		s.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}
	s.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.DebugContext(context.GetContext(), "generation audit persisted", "work_id", audit.WorkID, "outcome", audit.Outcome)
}
