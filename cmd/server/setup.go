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

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/api"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/cloud"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/workflow"
)

// StateManager holds the long-lived components of the process.
type StateManager struct {
	config     *cloud.Config
	cloud      *cloud.ServiceClients
	store      *services.PostgresVideoStore
	media      *services.MediaService
	uploads    *services.UploadService
	generation *workflow.GenerationWorkflow
	publisher  *cloud.PubSubEventPublisher
	sweeper    *workflow.StaleRecordSweeper
}

var state = &StateManager{}

// SetupOS defaults the configuration location to ./configs with the local
// runtime unless the environment already says otherwise.
func SetupOS() error {
	if _, ok := os.LookupEnv(cloud.EnvConfigFilePrefix); !ok {
		if err := os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if _, ok := os.LookupEnv(cloud.EnvConfigRuntime); !ok {
		return os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return nil
}

// GetConfig loads and validates the configuration once.
func GetConfig() (*cloud.Config, error) {
	if state.config != nil {
		return state.config, nil
	}
	if err := SetupOS(); err != nil {
		return nil, fmt.Errorf("failed to setup os: %w", err)
	}
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		return nil, err
	}
	if err := cloud.ApplyEnvironment(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	state.config = config
	return config, nil
}

// InitState creates the clients, services and workflows.
func InitState(ctx context.Context, config *cloud.Config) error {
	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = cloudClients

	objects := services.NewGCSObjectStore(cloudClients.StorageClient, cloudClients.IAMClient,
		config.Application.SignerServiceAccountEmail, config.Storage)
	state.store = services.NewPostgresVideoStore(cloudClients.DB)
	state.media = services.NewMediaService(state.store, objects, config.Storage.PlaybackURLTTL())
	state.uploads = services.NewUploadService(state.media, config.Storage.UploadPrefix)

	deps := workflow.GenerationDependencies{
		Gate:         cloudClients.Gate,
		Generator:    services.NewVeoClient(&services.GenAIVideoOperations{Client: cloudClients.GenAIClient, StorageClient: cloudClients.StorageClient}, config.VideoModel),
		Concatenator: services.NewFFMpegConcatenator(config.Ffmpeg.Path),
		Objects:      objects,
		Store:        state.store,
	}
	if config.Events.Topic != "" {
		state.publisher = cloud.NewPubSubEventPublisher(cloudClients.PubsubClient, config.Events.Topic)
		deps.Publisher = state.publisher
	}
	if config.Analytics.Enabled() {
		deps.Audit = services.NewBigQueryAuditSink(cloudClients.BigQueryClient, config.Analytics.Dataset, config.Analytics.Table)
	}
	state.generation = workflow.NewGenerationWorkflow(config, deps)

	if config.Records.Provisional {
		state.sweeper = workflow.NewStaleRecordSweeper(state.store,
			time.Duration(config.Records.StaleAfterMinutes)*time.Minute,
			time.Duration(config.Records.SweepIntervalSeconds)*time.Second)
		state.sweeper.StartTimer()
	}

	return SetupListeners(ctx, config, cloudClients)
}

// Handlers returns the collaborators of the HTTP routes.
func Handlers(config *cloud.Config) api.Handlers {
	return api.Handlers{
		Auth:      api.NewAuthenticator(config.Auth.JWTSecret),
		Generator: state.generation,
		Media:     state.media,
		Uploads:   state.uploads,
		DB:        state.store,
	}
}

// CloseState stops background work and closes the clients.
func CloseState() {
	if state.sweeper != nil {
		state.sweeper.Stop()
	}
	if state.publisher != nil {
		state.publisher.Stop()
	}
	if state.cloud != nil {
		state.cloud.Close()
	}
}
