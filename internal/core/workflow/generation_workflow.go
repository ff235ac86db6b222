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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements
// the video ad generation workflow.
//
// Chain, in order:
//  1. validate the request (no side effects on rejection).
//  2. wait for the generation gate.
//  3. create the per-request work directory.
//  4. save the reference image, if any.
//  5. generate every segment.
//  6. move or concatenate the segments into the artifact.
//  7. write a provisional record (records.provisional only).
//  8. upload the artifact; a failure degrades the result.
//  9. record the artifact and sign a playback URL.
//  10. publish video.ready.
//
// Whatever happens, the work directory and every file under it are removed,
// the gate slot is released, metrics are recorded and one audit row is written.
package workflow

import (
	goctx "context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/cloud"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/commands"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/telemetry"
)

// GenerationDependencies are the collaborators of the generation workflow.
// Publisher and Audit may be nil.
type GenerationDependencies struct {
	Gate         *cloud.GenerationGate
	Generator    services.VideoGenerator
	Concatenator services.Concatenator
	Objects      services.ObjectStore
	Store        services.VideoStore
	Publisher    services.EventPublisher
	Audit        services.AuditSink
}

// GenerationWorkflow orchestrates one generation request end to end.
type GenerationWorkflow struct {
	cor.BaseCommand
	config *cloud.Config
	deps   GenerationDependencies
	chain  cor.Chain
	audit  cor.Command
	now    func() time.Time
}

// NewGenerationWorkflow is the constructor for the GenerationWorkflow. It
// builds the command chain from config and deps.
func NewGenerationWorkflow(config *cloud.Config, deps GenerationDependencies) *GenerationWorkflow {
	if deps.Gate == nil {
		deps.Gate = cloud.NewGenerationGate(0, 0)
	}
	out := &GenerationWorkflow{
		BaseCommand: *cor.NewBaseCommand("generation-workflow"),
		config:      config,
		deps:        deps,
		now:         time.Now,
	}
	out.InputParamName = commands.ParamRequest
	out.initializeChain()
	return out
}

func (w *GenerationWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewValidateGenerationRequest("generation-validate"))
	out.AddCommand(commands.NewGenerationAdmit("generation-admit", w.deps.Gate))
	out.AddCommand(commands.NewWorkspacePrepare("generation-workspace", w.config.Application.TempDir))
	out.AddCommand(commands.NewReferenceImageSave("reference-image-save"))
	out.AddCommand(commands.NewSegmentGenerate("segment-generate", w.deps.Generator, w.config.VideoModel.SegmentConcurrency))
	out.AddCommand(commands.NewSegmentAssemble("segment-assemble", w.deps.Concatenator))
	out.AddCommand(commands.NewVideoRecordProvision("video-record-provision", w.deps.Store,
		w.deps.Objects.Bucket(), w.config.Storage.GeneratedPrefix, w.config.Records.Provisional))
	out.AddCommand(commands.NewArtifactUpload("artifact-upload", w.deps.Objects, w.config.Storage.GeneratedPrefix))
	out.AddCommand(commands.NewVideoRecordFinalize("video-record-finalize", w.deps.Store, w.deps.Objects, w.config.Storage.PlaybackURLTTL()))
	out.AddCommand(commands.NewVideoReadyPublish("video-ready-publish", w.deps.Publisher))
	w.chain = out
	w.audit = commands.NewGenerationAuditPersist("generation-audit", w.deps.Audit)
}

// Execute runs one generation against context. The request is read from
// commands.ParamRequest; the result is left under commands.ParamResult.
func (w *GenerationWorkflow) Execute(context cor.Context) {
	started := w.now()
	req := context.Get(commands.ParamRequest).(*model.GenerationRequest)
	workID := uuid.NewString()
	context.Add(commands.ParamWorkID, workID)

	defer context.Close()
	defer func() {
		if release, ok := context.Get(commands.ParamRelease).(func()); ok {
			release()
		}
	}()

	slog.InfoContext(context.GetContext(), "generation started",
		"work_id", workID, "owner_id", req.OwnerID, "duration", req.DurationSeconds, "has_image", req.Image != nil)
	w.chain.Execute(context)

	elapsed := w.now().Sub(started)
	outcome := classify(context)
	telemetry.RecordGeneration(string(outcome), elapsed)
	w.writeAudit(context, req, workID, outcome, started, elapsed)

	if context.HasErrors() {
		w.GetErrorCounter().Add(context.GetContext(), 1)
		if outcome == model.OutcomeRejected {
			slog.WarnContext(context.GetContext(), "generation rejected",
				"work_id", workID, "outcome", outcome, "error", context.Err())
			return
		}
		slog.ErrorContext(context.GetContext(), "generation failed",
			"work_id", workID, "outcome", outcome, "elapsed", elapsed, "error", context.Err())
		return
	}
	w.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.InfoContext(context.GetContext(), "generation finished", "work_id", workID, "outcome", outcome, "elapsed", elapsed)
}

// Generate is the synchronous entry point used by the HTTP layer.
func (w *GenerationWorkflow) Generate(ctx goctx.Context, req *model.GenerationRequest) (*model.GenerationResult, error) {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(commands.ParamRequest, req)
	w.Execute(chainCtx)

	if err := chainCtx.Err(); err != nil {
		return nil, err
	}
	result, ok := chainCtx.Get(commands.ParamResult).(*model.GenerationResult)
	if !ok {
		return nil, model.Errorf(model.ErrProcessingFailed, "generation produced no result")
	}
	return result, nil
}

func classify(context cor.Context) model.GenerationOutcome {
	if err := context.Err(); err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			return model.OutcomeRejected
		}
		return model.OutcomeFailed
	}
	if result, ok := context.Get(commands.ParamResult).(*model.GenerationResult); ok {
		return result.Outcome
	}
	return model.OutcomeFailed
}

func (w *GenerationWorkflow) writeAudit(context cor.Context, req *model.GenerationRequest, workID string, outcome model.GenerationOutcome, started time.Time, elapsed time.Duration) {
	audit := &model.GenerationAudit{
		WorkID:          workID,
		OwnerID:         req.OwnerID,
		DurationSeconds: req.DurationSeconds,
		SegmentCount:    req.SegmentCount(),
		HasImage:        req.Image != nil,
		Outcome:         string(outcome),
		ElapsedMillis:   elapsed.Milliseconds(),
		StartedAt:       started.UTC(),
	}
	if err := context.Err(); err != nil {
		audit.Error = err.Error()
	} else if err, ok := context.Get(commands.ParamUploadError).(error); ok {
		audit.Error = err.Error()
	}
	if result, ok := context.Get(commands.ParamResult).(*model.GenerationResult); ok && result.Record != nil {
		audit.VideoID.Int64 = result.Record.ID
		audit.VideoID.Valid = true
	}
	context.Add(commands.ParamAudit, audit)
	if w.audit.IsExecutable(context) {
		w.audit.Execute(context)
	}
}

// NewQueuedGeneration wraps w in a chain that first decodes a Pub/Sub job
// body found under cor.CtxIn.
func NewQueuedGeneration(w *GenerationWorkflow) cor.Chain {
	return cor.NewBaseChain("queued-generation").
		AddCommand(commands.NewGenerationJobReader("generation-job-reader")).
		AddCommand(w)
}
