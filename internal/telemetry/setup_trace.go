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

// Package telemetry provides utilities for setting up and configuring
// application observability, including logging, tracing, and metrics.
// This file initializes the OpenTelemetry SDK. Context propagation is always
// installed; spans and command counters are exported to Cloud Trace and Cloud
// Monitoring only when application.telemetry is "gcp".
package telemetry

import (
	"context"
	"errors"
	"log/slog"

	mexporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/metric"
	telemetryexporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/cloud"
	"go.opentelemetry.io/contrib/detectors/gcp"
	"go.opentelemetry.io/contrib/propagators/autoprop"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// TelemetryGCP selects the Google Cloud exporters.
const TelemetryGCP = "gcp"

// SetupOpenTelemetry configures propagation and, for the gcp mode, the trace
// and metric providers. The returned shutdown flushes whatever was installed
// and must be called on exit.
func SetupOpenTelemetry(ctx context.Context, config *cloud.Config) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	otel.SetTextMapPropagator(autoprop.NewTextMapPropagator())

	if config.Application.Telemetry != TelemetryGCP {
		slog.Info("telemetry export disabled", "mode", config.Application.Telemetry)
		return shutdown, nil
	}

	res, err := resource.New(ctx,
		resource.WithDetectors(gcp.NewDetector()),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.Application.Name),
		),
	)
	if errors.Is(err, resource.ErrPartialResource) || errors.Is(err, resource.ErrSchemaURLConflict) {
		slog.Warn("partial resource detection", "error", err)
	} else if err != nil {
		slog.Error("resource.New failed", "error", err)
		return nil, err
	}

	traceExporter, err := telemetryexporter.New(telemetryexporter.WithProjectID(config.Application.GoogleProjectId))
	if err != nil {
		slog.Error("unable to set up trace exporter", "error", err)
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	otel.SetTracerProvider(tp)

	mExporter, err := mexporter.New(mexporter.WithProjectID(config.Application.GoogleProjectId))
	if err != nil {
		slog.Error("unable to set up metric exporter", "error", err)
		return shutdown, err
	}
	mProvider := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(mExporter)),
		metric.WithResource(res),
	)
	shutdownFuncs = append(shutdownFuncs, mProvider.Shutdown)
	otel.SetMeterProvider(mProvider)

	return shutdown, nil
}
