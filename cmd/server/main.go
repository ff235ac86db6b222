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

// Package main is the entry point for the ad video generation server.
//
// Startup loads the configuration, sets up logging and OpenTelemetry, creates
// the cloud clients and the generation workflow, then serves the gin router
// until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/api"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/telemetry"
)

func main() {
	telemetry.SetupLogging(os.Stdout, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config, err := GetConfig()
	if err != nil {
		log.Fatal(err)
	}
	telemetry.SetupLogging(os.Stdout, config.Application.Debug)
	slog.Info("Logging initialized", "debug", config.Application.Debug)

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized", "exporter", config.Application.Telemetry)

	if err := InitState(ctx, config); err != nil {
		CloseState()
		log.Fatal(fmt.Errorf("failed to initialize state: %w", err))
	}
	slog.Info("Initialized State")

	r := api.NewRouter(config.Application.Name, Handlers(config))

	srv := &http.Server{
		Addr:    net.JoinHostPort(config.Application.Host, strconv.Itoa(config.Application.Port)),
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen", "error", err)
			cancel()
		}
	}()
	slog.Info("Server Ready", "addr", srv.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	slog.Info("Shutdown Server ...")

	// In-flight generations can take minutes; give them a bounded grace period.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed", "error", err)
	}
	cancel()
	CloseState()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("failed to shutdown telemetry", "error", err)
	}

	log.Println("Server exiting")
}
