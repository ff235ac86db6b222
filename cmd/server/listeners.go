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

// Package main contains the logic for starting the Pub/Sub job listener.
// Queued generation jobs run through the same workflow as HTTP requests.
package main

import (
	"context"
	"fmt"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/cloud"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/workflow"
)

// SetupListeners starts the job listener when a subscription is configured.
func SetupListeners(ctx context.Context, config *cloud.Config, cloudClients *cloud.ServiceClients) error {
	if config.Events.JobSubscription == "" {
		return nil
	}
	listener, err := cloud.NewPubSubListener(cloudClients.PubsubClient, config.Events.JobSubscription,
		workflow.NewQueuedGeneration(state.generation))
	if err != nil {
		return fmt.Errorf("creating job listener: %w", err)
	}
	listener.Listen(ctx)
	return nil
}
