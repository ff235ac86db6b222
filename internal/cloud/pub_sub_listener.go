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

// Package cloud provides components for interacting with Google Cloud services.
// This file implements the listener for queued generation jobs. The body of
// each message on the job subscription is handed, as a string under
// cor.CtxIn, to a chain command that decodes it and runs the generation
// workflow.
//
// Acknowledgement policy:
//   - the command finished without errors: ack.
//   - the command reports model.ErrInvalidInput: ack, since a
//     redelivery would fail the same way.
//   - any other failure: no ack, the message is redelivered after its
//     acknowledgement deadline according to the subscription retry policy.
package cloud

import (
	"context"
	"errors"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// GenerationJob is the JSON payload of a queued generation request.
type GenerationJob struct {
	OwnerID  string   `json:"owner_id"`
	Prompt   string   `json:"prompt"`
	Prompts  []string `json:"prompts,omitempty"`
	Duration int      `json:"duration"`
	Title    string   `json:"title,omitempty"`
}

// Request converts the job into a generation request.
func (j *GenerationJob) Request() *model.GenerationRequest {
	return &model.GenerationRequest{
		OwnerID:         j.OwnerID,
		Prompt:          j.Prompt,
		Prompts:         j.Prompts,
		DurationSeconds: j.Duration,
		Title:           j.Title,
	}
}

// PubSubListener pulls generation jobs from one subscription.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	command      cor.Command // Executed once per message with the body under cor.CtxIn.
}

// NewPubSubListener creates a listener for subscriptionID. The command may be
// attached later with SetCommand once the workflows are built.
func NewPubSubListener(
	pubsubClient *pubsub.Client,
	subscriptionID string,
	command cor.Command,
) (cmd *PubSubListener, err error) {
	sub := pubsubClient.Subscription(subscriptionID)
	cmd = &PubSubListener{
		client:       pubsubClient,
		subscription: sub,
		command:      command,
	}
	return cmd, nil
}

// SetCommand attaches the command if none is set yet.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// Listen starts receiving in a background goroutine until ctx is cancelled.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.Info("listening for generation jobs", "subscription", m.subscription.String())

	go func() {
		err := m.subscription.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
			if Handle(ctx, m.command, msg.Data) {
				msg.Ack()
			}
		})
		if err != nil {
			slog.Error("error receiving generation jobs", "error", err)
		}
	}()
}

// Handle runs one message body through command and reports whether the
// message should be acknowledged.
func Handle(ctx context.Context, command cor.Command, data []byte) (ack bool) {
	tracer := otel.Tracer("generation-job-listener")
	spanCtx, span := tracer.Start(ctx, "receive-generation-job")
	defer span.End()
	span.SetAttributes(attribute.Int("msg.bytes", len(data)))

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(spanCtx)
	chainCtx.Add(cor.CtxIn, string(data))
	command.Execute(chainCtx)

	if !chainCtx.HasErrors() {
		span.SetStatus(codes.Ok, "success")
		return true
	}

	err := chainCtx.Err()
	span.SetStatus(codes.Error, "failed")
	if errors.Is(err, model.ErrInvalidInput) {
		slog.WarnContext(spanCtx, "dropping invalid generation job", "error", err)
		return true
	}
	slog.ErrorContext(spanCtx, "generation job failed, leaving for redelivery", "error", err)
	return false
}
