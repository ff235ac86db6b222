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
// This file implements the admission gate placed in front of the video model.
// Every generation job takes a token from a rate limiter and then a slot from
// a weighted semaphore before it may call the model, so both the job start
// rate and the number of jobs in flight stay inside the model quota.
//
// Structs:
//   - GenerationGate: rate limiter plus concurrency bound.
//
// Functions:
//   - NewGenerationGate: A constructor for the gate.
//   - Acquire: Blocks until the job may start or the context ends.
package cloud

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// GenerationGate bounds how fast generation jobs start and how many run at once.
type GenerationGate struct {
	limiter  *rate.Limiter
	slots    *semaphore.Weighted // Nil when concurrency is unbounded.
	inFlight atomic.Int64
}

// NewGenerationGate creates a gate admitting jobsPerSecond new jobs per second
// with at most maxConcurrent running. A non-positive value disables that bound.
//
// Inputs:
//   - jobsPerSecond: Refill rate of the token bucket, also used as its burst.
//   - maxConcurrent: Number of jobs allowed in flight at the same time.
//
// Outputs:
//   - *GenerationGate: The configured gate.
func NewGenerationGate(jobsPerSecond int, maxConcurrent int) *GenerationGate {
	g := &GenerationGate{}
	if jobsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Second/time.Duration(jobsPerSecond)), jobsPerSecond)
	} else {
		g.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if maxConcurrent > 0 {
		g.slots = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return g
}

// Acquire waits for a rate token and a concurrency slot. The returned release
// function frees the slot and is safe to call more than once. When ctx ends
// first the error wraps model.ErrTimeout.
func (g *GenerationGate) Acquire(ctx context.Context) (release func(), err error) {
	if err = g.limiter.Wait(ctx); err != nil {
		return nil, model.Errorf(model.ErrTimeout, "waiting for generation rate token: %w", err)
	}
	if g.slots != nil {
		if err = g.slots.Acquire(ctx, 1); err != nil {
			return nil, model.Errorf(model.ErrTimeout, "waiting for generation slot: %w", err)
		}
	}
	g.inFlight.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			g.inFlight.Add(-1)
			if g.slots != nil {
				g.slots.Release(1)
			}
		})
	}, nil
}

// InFlight returns the number of jobs currently holding a slot.
func (g *GenerationGate) InFlight() int64 {
	return g.inFlight.Load()
}
