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

// Package cor (Chain of Responsibility) provides the fundamental building blocks
// for creating workflows. This file defines `BaseCommand`, which every pipeline
// step embeds for its name, tracer, meter and success/error counters.
package cor

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// MeterName is the instrumentation scope of the command counters.
const MeterName = "github.com/jaycherian/gcp-go-ad-video-generator"

// BaseCommand is the default implementation of the Command interface.
type BaseCommand struct {
	Name            string              // Command name, used for errors, spans and metrics.
	InputParamName  string              // Context key of the primary input, CtxIn when empty.
	OutputParamName string              // Context key of the primary output, CtxOut when empty.
	Tracer          trace.Tracer        // Tracer named after the command.
	Meter           metric.Meter        // Shared meter.
	SuccessCounter  metric.Int64Counter // Incremented on success.
	ErrorCounter    metric.Int64Counter // Incremented on failure.
}

// NewBaseCommand creates a command named name with its instruments.
func NewBaseCommand(name string) *BaseCommand {
	meter := otel.Meter(MeterName)

	successCounter, err := meter.Int64Counter(fmt.Sprintf("%s.counter.success", name))
	if err != nil {
		slog.Error("error creating success counter", "command", name, "error", err)
	}
	errorCounter, err := meter.Int64Counter(fmt.Sprintf("%s.counter.error", name))
	if err != nil {
		slog.Error("error creating error counter", "command", name, "error", err)
	}

	return &BaseCommand{
		Name:           name,
		Tracer:         otel.Tracer(name),
		Meter:          meter,
		SuccessCounter: successCounter,
		ErrorCounter:   errorCounter,
	}
}

// GetName returns the name of the command.
func (c *BaseCommand) GetName() string {
	return c.Name
}

// IsExecutable reports whether the primary input is present and a Go context is set.
func (c *BaseCommand) IsExecutable(context Context) bool {
	return context != nil && context.Get(c.GetInputParam()) != nil && context.GetContext() != nil
}

// GetInputParam returns the input key, CtxIn by default.
func (c *BaseCommand) GetInputParam() string {
	if len(c.InputParamName) == 0 {
		return CtxIn
	}
	return c.InputParamName
}

// GetOutputParam returns the output key, CtxOut by default.
func (c *BaseCommand) GetOutputParam() string {
	if len(c.OutputParamName) == 0 {
		return CtxOut
	}
	return c.OutputParamName
}

func (c *BaseCommand) GetTracer() trace.Tracer {
	return c.Tracer
}

func (c *BaseCommand) GetMeter() metric.Meter {
	return c.Meter
}

func (c *BaseCommand) GetSuccessCounter() metric.Int64Counter {
	return c.SuccessCounter
}

func (c *BaseCommand) GetErrorCounter() metric.Int64Counter {
	return c.ErrorCounter
}
