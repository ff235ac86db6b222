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
// This file contains the configuration loaders.
//
// Functions:
//   - LoadConfig: Implements a hierarchical configuration loader. It first reads a base
//     configuration file and then overwrites values with a second, environment-specific
//     file (e.g., .env.local.toml, .env.test.toml). The environment is determined by
//     an environment variable.
//   - ApplyEnvironment: Loads an optional dotenv file and overrides secrets and
//     deployment values from well-known environment variables.
package cloud

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Cloud Constants define key strings used for configuration loading.
const (
	ConfigFileBaseName  = ".env"              // The base name for configuration files (e.g., ".env.toml").
	ConfigFileExtension = ".toml"             // The file extension for configuration files.
	ConfigSeparator     = "."                 // The separator used in config file names (e.g., ".env.local.toml").
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // The environment variable for specifying the config directory.
	EnvConfigRuntime    = "GCP_RUNTIME"       // The environment variable for specifying the runtime context (e.g., "local", "test", "prod").
	EnvDotenvFile       = "DOTENV_FILE"       // Optional path of a dotenv file, defaults to ".env".
)

// Environment variables that override file configuration.
const (
	EnvGoogleAIAPIKey    = "GOOGLE_AI_API_KEY"
	EnvGoogleProject     = "GOOGLE_CLOUD_PROJECT"
	EnvGoogleLocation    = "GOOGLE_CLOUD_LOCATION"
	EnvVideoBucket       = "VIDEO_BUCKET"
	EnvDatabaseURL       = "DATABASE_URL"
	EnvSupabaseURL       = "SUPABASE_URL"
	EnvSupabaseJWTSecret = "SUPABASE_JWT_SECRET"
	EnvHost              = "HOST"
	EnvPort              = "PORT"
	EnvDebug             = "DEBUG"
)

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig provides a hierarchical configuration loading mechanism. It first loads a
// base configuration file and then merges or overwrites its values with an environment-specific
// configuration file. The paths and environment are determined by environment variables.
// Missing files are skipped; a file that exists but does not decode is an error.
func LoadConfig(baseConfig interface{}) error {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension

	for _, name := range []string{baseConfigFileName, envConfigFileName} {
		if !fileExists(name) {
			slog.Debug("configuration file not found, skipping", "file", name)
			continue
		}
		if _, err := toml.DecodeFile(name, baseConfig); err != nil {
			return fmt.Errorf("failed to decode configuration file %s: %w", name, err)
		}
		slog.Info("loaded configuration file", "file", name)
	}
	return nil
}

// ApplyEnvironment overrides config values from the process environment. A
// dotenv file is loaded first when present; variables already set in the
// environment win over the file.
func ApplyEnvironment(config *Config) error {
	dotenv := os.Getenv(EnvDotenvFile)
	if dotenv == "" {
		dotenv = ".env"
	}
	if fileExists(dotenv) {
		if err := godotenv.Load(dotenv); err != nil {
			return fmt.Errorf("failed to load %s: %w", dotenv, err)
		}
	}

	setString(&config.VideoModel.APIKey, EnvGoogleAIAPIKey)
	setString(&config.Application.GoogleProjectId, EnvGoogleProject)
	setString(&config.Application.GoogleLocation, EnvGoogleLocation)
	setString(&config.Storage.Bucket, EnvVideoBucket)
	setString(&config.Database.URL, EnvDatabaseURL)
	setString(&config.Auth.ProviderURL, EnvSupabaseURL)
	setString(&config.Auth.JWTSecret, EnvSupabaseJWTSecret)
	setString(&config.Application.Host, EnvHost)

	if v, ok := os.LookupEnv(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		config.Application.Port = port
	}
	if v, ok := os.LookupEnv(EnvDebug); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvDebug, v, err)
		}
		config.Application.Debug = debug
	}
	return nil
}

func setString(target *string, env string) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		*target = v
	}
}
