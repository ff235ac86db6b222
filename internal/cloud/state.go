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
// This file initializes and holds every external client the service needs. It
// acts as a dependency injection container: one `ServiceClients` value is built
// at startup and passed to the services, workflows and handlers.
//
// Logic Flow:
//  1. `NewCloudServiceClients` is called at application startup with the config.
//  2. The storage client, the GenAI client and the Postgres pool are always created.
//  3. IAM, Pub/Sub and BigQuery clients are created only when the config uses them.
//  4. The generation gate is sized from the video model settings.
//
// Structs:
//   - ServiceClients: Container for the clients and the generation gate.
//
// Functions:
//   - Close: Shuts every client down.
//   - NewCloudServiceClients: Creates the clients from the configuration.
//   - OpenDatabase: Opens the Postgres pool and waits until it answers.
package cloud

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	_ "github.com/lib/pq"
	"google.golang.org/api/option"
	"google.golang.org/genai"
)

// ServiceClients is the central container for external connections.
type ServiceClients struct {
	StorageClient  *storage.Client                   // Client for Google Cloud Storage (GCS).
	GenAIClient    *genai.Client                     // Client for the Veo video model.
	DB             *sql.DB                           // Postgres pool holding video records.
	IAMClient      *credentials.IamCredentialsClient // Signs GCS URLs when a signer account is configured.
	PubsubClient   *pubsub.Client                    // Events and queued jobs, nil when unused.
	BigQueryClient *bigquery.Client                  // Generation audit, nil when unused.
	Gate           *GenerationGate                   // Admission control in front of the model.
}

// Close shuts down every client that was created. A nil receiver is a no-op.
func (c *ServiceClients) Close() {
	if c == nil {
		return
	}
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.BigQueryClient != nil {
		_ = c.BigQueryClient.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}

// NewCloudServiceClients initializes the required clients based on config.
//
// Inputs:
//   - ctx: The root context.Context for the application.
//   - config: The loaded application configuration.
//
// Outputs:
//   - *ServiceClients: The initialized container.
//   - error: The first client that failed to initialize. Clients created before
//     the failure are closed.
func NewCloudServiceClients(ctx context.Context, config *Config) (_ *ServiceClients, err error) {
	out := &ServiceClients{
		Gate: NewGenerationGate(config.VideoModel.RateLimit, config.VideoModel.MaxConcurrentJobs),
	}
	defer func() {
		if err != nil {
			out.Close()
		}
	}()

	var storageOpts []option.ClientOption
	if config.Storage.CredentialsFile != "" {
		storageOpts = append(storageOpts, option.WithCredentialsFile(config.Storage.CredentialsFile))
	}
	if out.StorageClient, err = storage.NewClient(ctx, storageOpts...); err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	if out.GenAIClient, err = NewGenAIClient(ctx, config); err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	if out.DB, err = OpenDatabase(ctx, config.Database); err != nil {
		return nil, err
	}

	if config.Application.SignerServiceAccountEmail != "" {
		if out.IAMClient, err = credentials.NewIamCredentialsClient(ctx); err != nil {
			return nil, fmt.Errorf("creating iam credentials client: %w", err)
		}
	}

	if config.Events.Topic != "" || config.Events.JobSubscription != "" {
		if out.PubsubClient, err = pubsub.NewClient(ctx, config.Application.GoogleProjectId); err != nil {
			return nil, fmt.Errorf("creating pubsub client: %w", err)
		}
	}

	if config.Analytics.Enabled() {
		if out.BigQueryClient, err = bigquery.NewClient(ctx, config.Application.GoogleProjectId); err != nil {
			return nil, fmt.Errorf("creating bigquery client: %w", err)
		}
	}

	return out, nil
}

// NewGenAIClient creates the model client for the configured backend: the
// Gemini API with an API key, or Vertex AI with project and location.
func NewGenAIClient(ctx context.Context, config *Config) (*genai.Client, error) {
	cc := &genai.ClientConfig{}
	switch config.VideoModel.Backend {
	case BackendVertex:
		cc.Backend = genai.BackendVertexAI
		cc.Project = config.Application.GoogleProjectId
		cc.Location = config.Application.GoogleLocation
	default:
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = config.VideoModel.APIKey
	}
	slog.Debug("creating genai client", "backend", config.VideoModel.Backend, "model", config.VideoModel.Model)
	return genai.NewClient(ctx, cc)
}

// OpenDatabase opens the Postgres pool and pings it, retrying with a linear
// backoff up to ConnectRetries times.
func OpenDatabase(ctx context.Context, cfg Database) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	attempts := cfg.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}
	var pingErr error
	for i := 1; i <= attempts; i++ {
		if pingErr = db.PingContext(ctx); pingErr == nil {
			return db, nil
		}
		slog.Warn("database not ready", "attempt", i, "of", attempts, "error", pingErr)
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			pingErr = errors.Join(pingErr, ctx.Err())
			i = attempts
		case <-time.After(time.Duration(i) * time.Second):
		}
	}
	_ = db.Close()
	return nil, fmt.Errorf("connecting to database: %w", pingErr)
}
