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

package workflow

import (
	goctx "context"
	"log/slog"
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// StaleRecordSweeper fails PROCESSING records that have not moved for longer
// than staleAfter. Such rows are left behind when the process dies between
// writing a provisional record and finalizing it.
type StaleRecordSweeper struct {
	cor.BaseCommand
	store      services.VideoStore
	staleAfter time.Duration
	interval   time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewStaleRecordSweeper is the constructor for StaleRecordSweeper.
func NewStaleRecordSweeper(store services.VideoStore, staleAfter time.Duration, interval time.Duration) *StaleRecordSweeper {
	return &StaleRecordSweeper{
		BaseCommand: *cor.NewBaseCommand("stale-record-sweeper"),
		store:       store,
		staleAfter:  staleAfter,
		interval:    interval,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
}

// IsExecutable is always true, the sweeper needs no input.
func (s *StaleRecordSweeper) IsExecutable(_ cor.Context) bool {
	return true
}

// Execute runs one sweep.
func (s *StaleRecordSweeper) Execute(context cor.Context) {
	cutoff := s.now().Add(-s.staleAfter)
	n, err := s.store.FailStaleProcessing(context.GetContext(), cutoff)
	if err != nil {
		s.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(s.GetName(), err)
		return
	}
	if n > 0 {
		slog.WarnContext(context.GetContext(), "failed stale processing records", "count", n, "cutoff", cutoff)
	}
	s.GetSuccessCounter().Add(context.GetContext(), 1)
}

// StartTimer runs a sweep every interval in a background goroutine until Stop
// is called.
func (s *StaleRecordSweeper) StartTimer() {
	tracer := otel.Tracer("stale-record-sweep")
	ticker := time.NewTicker(s.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				traceCtx, span := tracer.Start(goctx.Background(), "stale-record-sweep")
				chainCtx := cor.NewBaseContext()
				chainCtx.SetContext(traceCtx)
				s.Execute(chainCtx)
				if chainCtx.HasErrors() {
					slog.ErrorContext(traceCtx, "stale record sweep failed", "error", chainCtx.Err())
					span.SetStatus(codes.Error, "sweep failed")
				} else {
					span.SetStatus(codes.Ok, "sweep completed")
				}
				span.End()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop ends the background goroutine started by StartTimer.
func (s *StaleRecordSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
