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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files and then overridden from the process environment.
// It provides a structured way to manage settings for the video model, the
// object store, the metadata database, authentication and the optional
// Pub/Sub and BigQuery integrations.
//
// Structs:
//   - VideoModel: Veo model, polling and admission settings.
//   - Storage: GCS bucket, key prefixes and signed URL lifetime.
//   - Database: Postgres connection settings.
//   - Auth: Identity provider settings used to verify bearer tokens.
//   - Events: Pub/Sub topic and job subscription.
//   - Analytics: BigQuery dataset and table for the generation audit.
//   - Records: Provisional record and stale sweep settings.
//   - Config: The top-level struct that aggregates all other configuration structs.
package cloud

import (
	"errors"
	"time"
)

// Backend names accepted by VideoModel.Backend.
const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

// VideoModel represents the configuration for the text/image-to-video model.
type VideoModel struct {
	Model               string `toml:"model"`                 // Model name, e.g. "veo-3.0-generate-001".
	Backend             string `toml:"backend"`               // "gemini" (API key) or "vertex" (project/location).
	APIKey              string `toml:"api_key"`               // Gemini API key, normally supplied through GOOGLE_AI_API_KEY.
	AspectRatio         string `toml:"aspect_ratio"`          // Fixed aspect ratio for every segment.
	PollIntervalSeconds int    `toml:"poll_interval_seconds"` // Delay between operation status checks.
	TimeoutSeconds      int    `toml:"timeout_seconds"`       // Upper bound for one segment, 0 disables the bound.
	OutputGCSURI        string `toml:"output_gcs_uri"`        // Vertex only: gs:// prefix the model writes results to.
	RateLimit           int    `toml:"rate_limit"`            // Generation jobs admitted per second.
	MaxConcurrentJobs   int    `toml:"max_concurrent_jobs"`   // Generation jobs allowed in flight at once.
	SegmentConcurrency  int    `toml:"segment_concurrency"`   // Segments generated at once inside one job.
}

// PollInterval returns the configured poll interval as a duration.
func (v VideoModel) PollInterval() time.Duration {
	return time.Duration(v.PollIntervalSeconds) * time.Second
}

// Timeout returns the per-segment deadline, zero when disabled.
func (v VideoModel) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}

// Storage represents the configuration for the artifact bucket.
type Storage struct {
	Bucket                string `toml:"bucket"`                   // Bucket holding every stored video.
	GeneratedPrefix       string `toml:"generated_prefix"`         // Key prefix for generated ads.
	UploadPrefix          string `toml:"upload_prefix"`            // Key prefix for user uploads.
	PlaybackURLTTLSeconds int    `toml:"playback_url_ttl_seconds"` // Lifetime of signed playback URLs.
	CacheControl          string `toml:"cache_control"`            // Cache-Control header stored on objects.
	CredentialsFile       string `toml:"credentials_file"`         // Optional service account key for the storage client.
}

// PlaybackURLTTL returns the signed URL lifetime as a duration.
func (s Storage) PlaybackURLTTL() time.Duration {
	return time.Duration(s.PlaybackURLTTLSeconds) * time.Second
}

// Database holds the Postgres connection settings.
type Database struct {
	URL            string `toml:"url"`
	MaxOpenConns   int    `toml:"max_open_conns"`
	MaxIdleConns   int    `toml:"max_idle_conns"`
	ConnectRetries int    `toml:"connect_retries"`
}

// Auth holds the identity provider settings.
type Auth struct {
	ProviderURL string `toml:"provider_url"`
	JWTSecret   string `toml:"jwt_secret"` // Shared HS256 secret.
}

// Events configures the optional Pub/Sub integration.
type Events struct {
	Topic           string `toml:"topic"`            // Topic receiving video.ready events.
	JobSubscription string `toml:"job_subscription"` // Subscription carrying queued generation jobs.
}

// Analytics configures the optional BigQuery audit sink.
type Analytics struct {
	Dataset string `toml:"dataset"`
	Table   string `toml:"table"`
}

// Enabled reports whether both dataset and table are set.
func (a Analytics) Enabled() bool {
	return a.Dataset != "" && a.Table != ""
}

// Records configures provisional rows and the stale row sweeper.
type Records struct {
	Provisional          bool `toml:"provisional"`
	StaleAfterMinutes    int  `toml:"stale_after_minutes"`
	SweepIntervalSeconds int  `toml:"sweep_interval_seconds"`
}

// Ffmpeg points at the concatenation tool.
type Ffmpeg struct {
	Path string `toml:"path"`
}

// Config represents the overall configuration for the application, loaded from TOML files.
// It acts as the root container for all other configuration structs.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`
		GoogleProjectId           string `toml:"google_project_id"`
		GoogleLocation            string `toml:"location"`
		Host                      string `toml:"host"`
		Port                      int    `toml:"port"`
		Debug                     bool   `toml:"debug"`
		Telemetry                 string `toml:"telemetry"` // "gcp" exports to Cloud Trace and Monitoring.
		TempDir                   string `toml:"temp_dir"`  // Root for per-request work directories.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"`
	} `toml:"application"`
	VideoModel VideoModel `toml:"video_model"`
	Storage    Storage    `toml:"storage"`
	Database   Database   `toml:"database"`
	Auth       Auth       `toml:"auth"`
	Ffmpeg     Ffmpeg     `toml:"ffmpeg"`
	Events     Events     `toml:"events"`
	Analytics  Analytics  `toml:"analytics"`
	Records    Records    `toml:"records"`
}

// NewConfig returns a Config populated with defaults. Files and environment
// variables loaded afterwards override any of these.
func NewConfig() *Config {
	c := &Config{}
	c.Application.Name = "ad-video-generator"
	c.Application.Host = "0.0.0.0"
	c.Application.Port = 8000
	c.VideoModel = VideoModel{
		Model:               "veo-3.0-generate-001",
		Backend:             BackendGemini,
		AspectRatio:         "16:9",
		PollIntervalSeconds: 10,
		TimeoutSeconds:      600,
		RateLimit:           1,
		MaxConcurrentJobs:   4,
		SegmentConcurrency:  1,
	}
	c.Storage = Storage{
		GeneratedPrefix:       "generated-videos",
		UploadPrefix:          "videos",
		PlaybackURLTTLSeconds: 3600,
		CacheControl:          "private, max-age=3600",
	}
	c.Database = Database{MaxOpenConns: 10, MaxIdleConns: 5, ConnectRetries: 5}
	c.Ffmpeg.Path = "ffmpeg"
	c.Records = Records{StaleAfterMinutes: 60, SweepIntervalSeconds: 300}
	return c
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("storage.bucket is required"))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	switch c.VideoModel.Backend {
	case BackendGemini:
		if c.VideoModel.APIKey == "" {
			errs = append(errs, errors.New("video_model.api_key is required for the gemini backend"))
		}
	case BackendVertex:
		if c.Application.GoogleProjectId == "" {
			errs = append(errs, errors.New("application.google_project_id is required for the vertex backend"))
		}
	default:
		errs = append(errs, errors.New("video_model.backend must be gemini or vertex"))
	}
	if c.VideoModel.PollIntervalSeconds <= 0 {
		errs = append(errs, errors.New("video_model.poll_interval_seconds must be positive"))
	}
	if c.Records.Provisional {
		if c.Records.StaleAfterMinutes <= 0 {
			errs = append(errs, errors.New("records.stale_after_minutes must be positive when records.provisional is set"))
		}
		if c.Records.SweepIntervalSeconds <= 0 {
			errs = append(errs, errors.New("records.sweep_interval_seconds must be positive when records.provisional is set"))
		}
	}
	return errors.Join(errs...)
}
