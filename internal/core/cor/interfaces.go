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

// Package cor (Chain of Responsibility) provides the building blocks the
// generation pipeline is assembled from: a Context carried through the run,
// Commands that each perform one step, and Chains that run commands in order.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the keys a BaseChain uses to pipe the output of one
// command into the next.
const (
	// CtxIn holds the primary input of the command about to run.
	CtxIn = "__IN__"
	// CtxOut is where a command places its primary output.
	CtxOut = "__OUT__"
)

// Context is the shared state of one pipeline run. It carries named values,
// the errors recorded by commands and the scratch paths to remove when the
// run ends. Implementations must be safe for concurrent use since a command
// may fan work out to several goroutines.
type Context interface {
	// SetContext sets the Go context used for cancellation and tracing.
	SetContext(context context.Context)

	// GetContext returns the current Go context.
	GetContext() context.Context

	// Add stores a value under key.
	Add(key string, value interface{}) Context

	// AddError records err against the command named key.
	AddError(key string, err error)

	// GetErrors returns a copy of the recorded errors keyed by command name.
	GetErrors() map[string]error

	// Err joins the recorded errors in the order they were added, nil when
	// there are none.
	Err() error

	// Get returns the value under key or nil.
	Get(key string) interface{}

	// Remove deletes key.
	Remove(key string)

	// HasErrors reports whether any command recorded an error.
	HasErrors() bool

	// AddTempFile registers a scratch file or directory for removal by Close.
	AddTempFile(path string)

	// GetTempFiles returns the registered scratch paths.
	GetTempFiles() []string

	// Close removes every registered scratch path. Removal failures are
	// logged and never returned. Close is meant to be deferred.
	Close()
}

// Executable is anything with a unit of work to run against a Context.
type Executable interface {
	Execute(context Context)
}

// Command is one step of a pipeline.
type Command interface {
	Executable

	// GetName returns the command name used for errors, spans and metrics.
	GetName() string

	// GetInputParam returns the context key of the primary input.
	GetInputParam() string

	// GetOutputParam returns the context key of the primary output.
	GetOutputParam() string

	// IsExecutable reports whether the context holds what the command needs.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain runs commands in sequence. A Chain is itself a Command so chains nest.
type Chain interface {
	Command

	// ContinueOnFailure makes the chain run the remaining commands after one
	// records an error.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command.
	AddCommand(command Command) Chain
}
