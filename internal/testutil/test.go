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

// Package test provides utility functions and fakes to support the
// application's test suite: loading the test configuration, sample job
// payloads and signed bearer credentials.
package test

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/cloud"
)

// StateManager caches the test configuration across tests.
type StateManager struct {
	config *cloud.Config
}

var state = &StateManager{}

// HandleErr fails the test when err is not nil.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// ConfigDir returns the absolute path of the repository configs directory.
func ConfigDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "configs")
}

// SetupOS points the configuration loader at the test configuration
// (configs/.env.toml overridden by configs/.env.test.toml).
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, ConfigDir())
	if err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// GetConfig loads the test configuration once and returns it.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load test configuration: %v\n", err)
		}
		state.config = config
	}
	return state.config
}

// NewTestConfig returns a copy of the test configuration with TempDir set to
// dir, so each test owns its scratch space.
func NewTestConfig(dir string) *cloud.Config {
	c := *GetConfig()
	c.Application.TempDir = dir
	c.VideoModel.SegmentConcurrency = 1
	c.Records.Provisional = false
	return &c
}

// GetTestJobMessageText returns a queued generation job for a 16 second ad.
func GetTestJobMessageText() string {
	return `{
  "owner_id": "9b2f6a4e-1c3d-4e5f-8a7b-0c1d2e3f4a5b",
  "prompt": "A sunrise over a coffee farm, warm tones, slow pan",
  "duration": 16,
  "title": "Morning roast"
}`
}

// SignToken returns an HS256 bearer credential for sub. An empty sub omits
// the claim; a negative ttl yields an expired token.
func SignToken(t *testing.T, secret string, sub string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"aud": "authenticated",
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Add(-time.Minute).Unix(),
	}
	if sub != "" {
		claims["sub"] = sub
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}
