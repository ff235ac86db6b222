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

package test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
)

// FakeGenerator writes "clip:<prompt>" to the output path of every segment.
type FakeGenerator struct {
	mu      sync.Mutex
	Prompts []string
	Images  []*services.ImageInput
	Fail    func(prompt string) error // Optional, checked before writing.
	Delay   time.Duration
	Empty   bool // Write a zero-length file instead of the clip.
}

func (g *FakeGenerator) GenerateSegment(ctx context.Context, prompt string, outputPath string, image *services.ImageInput) error {
	g.mu.Lock()
	g.Prompts = append(g.Prompts, prompt)
	g.Images = append(g.Images, image)
	g.mu.Unlock()

	if g.Delay > 0 {
		select {
		case <-time.After(g.Delay):
		case <-ctx.Done():
			return model.Errorf(model.ErrTimeout, "generation cancelled: %w", ctx.Err())
		}
	}
	if g.Fail != nil {
		if err := g.Fail(prompt); err != nil {
			return err
		}
	}
	if image != nil {
		if _, err := os.Stat(image.Path); err != nil {
			return model.Errorf(model.ErrGenerationFailed, "reference image missing: %w", err)
		}
	}
	data := []byte("clip:" + prompt)
	if g.Empty {
		data = nil
	}
	return os.WriteFile(outputPath, data, 0o644)
}

// Calls returns the number of segments requested so far.
func (g *FakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Prompts)
}

// FakeConcatenator joins the inputs byte for byte, separated by "|".
type FakeConcatenator struct {
	mu    sync.Mutex
	Calls [][]string
	Err   error
}

func (c *FakeConcatenator) Concatenate(_ context.Context, orderedPaths []string, outputPath string) error {
	c.mu.Lock()
	c.Calls = append(c.Calls, append([]string(nil), orderedPaths...))
	c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	var out bytes.Buffer
	for i, p := range orderedPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return model.Errorf(model.ErrNotFound, "input %s: %w", p, err)
		}
		if i > 0 {
			out.WriteString("|")
		}
		out.Write(data)
	}
	return os.WriteFile(outputPath, out.Bytes(), 0o644)
}

// FakeObjectStore keeps objects in memory.
type FakeObjectStore struct {
	mu           sync.Mutex
	BucketName   string
	Objects      map[string][]byte
	ContentTypes map[string]string
	PutErr       error
	SignErr      error
}

// NewFakeObjectStore returns an empty store for bucket.
func NewFakeObjectStore(bucket string) *FakeObjectStore {
	return &FakeObjectStore{BucketName: bucket, Objects: map[string][]byte{}, ContentTypes: map[string]string{}}
}

func (s *FakeObjectStore) Bucket() string { return s.BucketName }

func (s *FakeObjectStore) Put(_ context.Context, key string, r io.Reader, contentType string) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return model.Errorf(model.ErrStorage, "reading body: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Objects[key] = data
	s.ContentTypes[key] = contentType
	return nil
}

func (s *FakeObjectStore) Sign(_ context.Context, key string, ttl time.Duration) (string, error) {
	if s.SignErr != nil {
		return "", s.SignErr
	}
	return fmt.Sprintf("https://storage.example.com/%s/%s?expires=%d", s.BucketName, key, int(ttl.Seconds())), nil
}

// Keys returns the stored keys in sorted order.
func (s *FakeObjectStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.Objects))
	for k := range s.Objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FakeVideoStore is an in-memory VideoStore with a unique key constraint.
type FakeVideoStore struct {
	mu        sync.Mutex
	nextID    int64
	records   map[int64]*model.VideoRecord
	Now       func() time.Time
	CreateErr error
	UpdateErr error
	PingErr   error
}

// NewFakeVideoStore returns an empty store.
func NewFakeVideoStore() *FakeVideoStore {
	return &FakeVideoStore{records: map[int64]*model.VideoRecord{}, Now: time.Now}
}

func (s *FakeVideoStore) Create(_ context.Context, ownerID string, location model.ObjectLocation, title string, status model.VideoStatus) (*model.VideoRecord, error) {
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.Location.Key == location.Key {
			return nil, model.Errorf(model.ErrStorage, "duplicate key %s", location.Key)
		}
	}
	s.nextID++
	now := s.Now().UTC()
	r := &model.VideoRecord{ID: s.nextID, OwnerID: ownerID, Location: location, Title: title, Status: status, CreatedAt: now, UpdatedAt: now}
	s.records[r.ID] = r
	out := *r
	return &out, nil
}

func (s *FakeVideoStore) GetByID(_ context.Context, id int64) (*model.VideoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, model.Errorf(model.ErrNotFound, "video %d", id)
	}
	out := *r
	return &out, nil
}

func (s *FakeVideoStore) ListByOwner(_ context.Context, ownerID string) ([]*model.VideoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.VideoRecord, 0)
	for _, r := range s.records {
		if r.OwnerID == ownerID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *FakeVideoStore) UpdateStatus(_ context.Context, id int64, status model.VideoStatus) (*model.VideoRecord, error) {
	if s.UpdateErr != nil {
		return nil, s.UpdateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, model.Errorf(model.ErrNotFound, "video %d", id)
	}
	r.Status = status
	r.UpdatedAt = s.Now().UTC()
	out := *r
	return &out, nil
}

func (s *FakeVideoStore) FailStaleProcessing(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.records {
		if r.Status == model.VideoStatusProcessing && r.UpdatedAt.Before(olderThan) {
			r.Status = model.VideoStatusFailed
			r.UpdatedAt = s.Now().UTC()
			n++
		}
	}
	return n, nil
}

func (s *FakeVideoStore) Ping(context.Context) error { return s.PingErr }

// All returns every record ordered by id.
func (s *FakeVideoStore) All() []*model.VideoRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.VideoRecord, 0, len(s.records))
	for _, r := range s.records {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FakePublisher records published events.
type FakePublisher struct {
	mu     sync.Mutex
	Types  []string
	Events []any
	Err    error
}

func (p *FakePublisher) Publish(_ context.Context, eventType string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Types = append(p.Types, eventType)
	p.Events = append(p.Events, event)
	return p.Err
}

// FakeAuditSink records audit rows.
type FakeAuditSink struct {
	mu   sync.Mutex
	Rows []*model.GenerationAudit
	Err  error
}

func (a *FakeAuditSink) Write(_ context.Context, audit *model.GenerationAudit) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Rows = append(a.Rows, audit)
	return a.Err
}

// WriteFFmpegStub installs a shell script in dir that behaves like the
// concat invocation: it appends every file named in the -i list to the last
// argument. Every invocation records its arguments, one per line, in
// dir/ffmpeg.args and a copy of the list file in dir/ffmpeg.list. With fail
// set it prints to stderr and exits 1 after recording.
func WriteFFmpegStub(t *testing.T, dir string, fail bool) string {
	t.Helper()
	record := `#!/bin/sh
here="$(dirname "$0")"
printf '%s\n' "$@" > "$here/ffmpeg.args"
`
	script := record + `list=""
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -i) shift; list="$1" ;;
  esac
  out="$1"
  shift
done
cp "$list" "$here/ffmpeg.list"
: > "$out"
sed -n "s/^file '\(.*\)'$/\1/p" "$list" | while IFS= read -r f; do cat "$f" >> "$out"; done
`
	if fail {
		script = record + "echo 'Invalid data found when processing input' >&2\nexit 1\n"
	}
	path := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing ffmpeg stub: %v", err)
	}
	return path
}

// FFmpegArgs returns the arguments of the last invocation of the stub at
// stubPath.
func FFmpegArgs(t *testing.T, stubPath string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(filepath.Dir(stubPath), "ffmpeg.args"))
	if err != nil {
		t.Fatalf("reading ffmpeg stub arguments: %v", err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// FFmpegList returns the concat list file seen by the last invocation of the
// stub at stubPath.
func FFmpegList(t *testing.T, stubPath string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(filepath.Dir(stubPath), "ffmpeg.list"))
	if err != nil {
		t.Fatalf("reading ffmpeg stub list: %v", err)
	}
	return string(data)
}
