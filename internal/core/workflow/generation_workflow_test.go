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

package workflow_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/cloud"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/workflow"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/telemetry"
	test "github.com/jaycherian/gcp-go-ad-video-generator/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.uber.org/goleak"
)

const tName = "github.com/jaycherian/gcp-go-ad-video-generator/tests/workflow"

var logger = otelslog.NewLogger(tName)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type fixture struct {
	config    *cloud.Config
	workDir   string
	generator *test.FakeGenerator
	concat    *test.FakeConcatenator
	objects   *test.FakeObjectStore
	store     *test.FakeVideoStore
	publisher *test.FakePublisher
	audit     *test.FakeAuditSink
	gate      *cloud.GenerationGate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	return &fixture{
		config:    test.NewTestConfig(dir),
		workDir:   dir,
		generator: &test.FakeGenerator{},
		concat:    &test.FakeConcatenator{},
		objects:   test.NewFakeObjectStore("ads-bucket"),
		store:     test.NewFakeVideoStore(),
		publisher: &test.FakePublisher{},
		audit:     &test.FakeAuditSink{},
		gate:      cloud.NewGenerationGate(0, 2),
	}
}

func (f *fixture) workflow() *workflow.GenerationWorkflow {
	return workflow.NewGenerationWorkflow(f.config, workflow.GenerationDependencies{
		Gate:         f.gate,
		Generator:    f.generator,
		Concatenator: f.concat,
		Objects:      f.objects,
		Store:        f.store,
		Publisher:    f.publisher,
		Audit:        f.audit,
	})
}

func (f *fixture) assertWorkDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.workDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch files left behind")
	assert.Equal(t, int64(0), f.gate.InFlight())
}

func request(duration int) *model.GenerationRequest {
	return &model.GenerationRequest{
		OwnerID:         "owner-1",
		Prompt:          "A cold brew can sweating on a summer table",
		DurationSeconds: duration,
		Title:           "Cold brew",
	}
}

func TestGenerateSingleSegment(t *testing.T) {
	f := newFixture(t)
	result, err := f.workflow().Generate(context.Background(), request(8))
	require.NoError(t, err)
	logger.Info("generated", "work_id", result.WorkID)

	assert.Equal(t, model.OutcomeCompleted, result.Outcome)
	require.NotNil(t, result.Record)
	assert.Equal(t, model.VideoStatusReady, result.Record.Status)
	assert.Equal(t, "owner-1", result.Record.OwnerID)
	assert.Equal(t, "Cold brew", result.Record.Title)
	assert.Equal(t, "generated-videos/"+result.WorkID+".mp4", result.Record.Location.Key)
	assert.Equal(t, "ads-bucket", result.Record.Location.Bucket)
	assert.Equal(t, result.Record.IDString(), result.VideoID())
	assert.Contains(t, result.PlaybackURL, result.Record.Location.Key)

	assert.Empty(t, f.concat.Calls, "a single segment is not concatenated")
	assert.Equal(t, []string{"Focus only on part 1 of 1 of this video ad. A cold brew can sweating on a summer table"}, f.generator.Prompts)
	assert.Equal(t, "clip:"+f.generator.Prompts[0], string(f.objects.Objects[result.Record.Location.Key]))
	assert.Equal(t, "video/mp4", f.objects.ContentTypes[result.Record.Location.Key])

	require.Len(t, f.publisher.Events, 1)
	assert.Equal(t, model.EventVideoReady, f.publisher.Types[0])

	require.Len(t, f.audit.Rows, 1)
	assert.Equal(t, string(model.OutcomeCompleted), f.audit.Rows[0].Outcome)
	assert.Equal(t, 1, f.audit.Rows[0].SegmentCount)
	assert.True(t, f.audit.Rows[0].VideoID.Valid)

	f.assertWorkDirEmpty(t)
}

func TestGenerateConcatenatesSegmentsInOrder(t *testing.T) {
	for _, duration := range []int{16, 24} {
		f := newFixture(t)
		result, err := f.workflow().Generate(context.Background(), request(duration))
		require.NoError(t, err)

		count := duration / model.SegmentSeconds
		require.Len(t, f.concat.Calls, 1)
		require.Len(t, f.concat.Calls[0], count)
		for i, p := range f.concat.Calls[0] {
			assert.Equal(t, model.SegmentFileName(result.WorkID, i), filepath.Base(p))
		}

		stored := string(f.objects.Objects[result.Record.Location.Key])
		parts := strings.Split(stored, "|")
		require.Len(t, parts, count)
		for i, part := range parts {
			assert.Contains(t, part, "part "+string(rune('1'+i))+" of "+string(rune('0'+count)))
		}
		f.assertWorkDirEmpty(t)
	}
}

func TestGenerateParallelSegmentsKeepOrder(t *testing.T) {
	f := newFixture(t)
	f.config.VideoModel.SegmentConcurrency = 3
	f.generator.Delay = 10 * time.Millisecond

	result, err := f.workflow().Generate(context.Background(), request(24))
	require.NoError(t, err)

	require.Len(t, f.concat.Calls, 1)
	for i, p := range f.concat.Calls[0] {
		assert.Equal(t, model.SegmentFileName(result.WorkID, i), filepath.Base(p))
	}
	assert.Equal(t, 3, f.generator.Calls())
	f.assertWorkDirEmpty(t)
}

func TestGenerateUsesPerSegmentPrompts(t *testing.T) {
	f := newFixture(t)
	req := request(16)
	req.Prompt = ""
	req.Prompts = []string{"Open on the can", "Close on the logo"}

	_, err := f.workflow().Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Focus only on part 1 of 2 of this video ad. Open on the can",
		"Focus only on part 2 of 2 of this video ad. Close on the logo",
	}, f.generator.Prompts)
}

func TestGenerateRejectsInvalidRequests(t *testing.T) {
	cases := map[string]func(*model.GenerationRequest){
		"duration":       func(r *model.GenerationRequest) { r.DurationSeconds = 10 },
		"image format":   func(r *model.GenerationRequest) { r.Image = &model.ReferenceImage{Filename: "logo.bmp", Data: []byte("BM")} },
		"prompt count":   func(r *model.GenerationRequest) { r.Prompts = []string{"only one"} },
		"missing prompt": func(r *model.GenerationRequest) { r.Prompt = "  " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			req := request(16)
			mutate(req)

			result, err := f.workflow().Generate(context.Background(), req)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, model.ErrInvalidInput)
			assert.Zero(t, f.generator.Calls())
			assert.Empty(t, f.store.All())
			assert.Empty(t, f.objects.Keys())
			require.Len(t, f.audit.Rows, 1)
			assert.Equal(t, string(model.OutcomeRejected), f.audit.Rows[0].Outcome)
			f.assertWorkDirEmpty(t)
		})
	}
}

// captureLogs routes the default logger into a buffer for the rest of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })
	var buf bytes.Buffer
	telemetry.SetupLogging(&buf, false)
	return &buf
}

// entriesWithMessage decodes the JSON log lines whose message is msg.
func entriesWithMessage(t *testing.T, buf *bytes.Buffer, msg string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["message"] == msg {
			out = append(out, entry)
		}
	}
	return out
}

func TestRejectedRequestLogsWarning(t *testing.T) {
	logs := captureLogs(t)
	f := newFixture(t)
	req := request(16)
	req.DurationSeconds = 12

	_, err := f.workflow().Generate(context.Background(), req)
	require.ErrorIs(t, err, model.ErrInvalidInput)

	assert.Empty(t, entriesWithMessage(t, logs, "generation failed"))
	rejected := entriesWithMessage(t, logs, "generation rejected")
	require.Len(t, rejected, 1)
	assert.Equal(t, "WARNING", rejected[0]["severity"])
	assert.Equal(t, string(model.OutcomeRejected), rejected[0]["outcome"])
}

func TestFailedRequestLogsError(t *testing.T) {
	logs := captureLogs(t)
	f := newFixture(t)
	f.concat.Err = model.Errorf(model.ErrProcessingFailed, "ffmpeg exited with status 1")

	_, err := f.workflow().Generate(context.Background(), request(16))
	require.ErrorIs(t, err, model.ErrProcessingFailed)

	failed := entriesWithMessage(t, logs, "generation failed")
	require.Len(t, failed, 1)
	assert.Equal(t, "ERROR", failed[0]["severity"])
	assert.Equal(t, string(model.OutcomeFailed), failed[0]["outcome"])
}

func TestGenerateWithReferenceImage(t *testing.T) {
	f := newFixture(t)
	req := request(16)
	req.Image = &model.ReferenceImage{Filename: "product.PNG", Data: pngHeader}

	_, err := f.workflow().Generate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, f.generator.Images, 2)
	for _, img := range f.generator.Images {
		require.NotNil(t, img)
		assert.Equal(t, "image/png", img.MIMEType)
		assert.True(t, strings.HasSuffix(img.Path, "_reference.png"))
	}
	assert.True(t, f.audit.Rows[0].HasImage)
	f.assertWorkDirEmpty(t)
}

func TestGenerationFailureCleansUp(t *testing.T) {
	f := newFixture(t)
	f.generator.Fail = func(prompt string) error {
		if strings.Contains(prompt, "part 2 of 3") {
			return model.Errorf(model.ErrGenerationFailed, "model returned no video")
		}
		return nil
	}
	req := request(24)
	req.Image = &model.ReferenceImage{Filename: "product.png", Data: pngHeader}

	result, err := f.workflow().Generate(context.Background(), req)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, model.ErrGenerationFailed)
	assert.Equal(t, 2, f.generator.Calls(), "generation stops at the first failed segment")
	assert.Empty(t, f.concat.Calls)
	assert.Empty(t, f.store.All())
	assert.Empty(t, f.objects.Keys())
	assert.Empty(t, f.publisher.Events)
	assert.Equal(t, string(model.OutcomeFailed), f.audit.Rows[0].Outcome)
	assert.NotEmpty(t, f.audit.Rows[0].Error)
	f.assertWorkDirEmpty(t)
}

func TestConcatenationFailureFails(t *testing.T) {
	f := newFixture(t)
	f.concat.Err = model.Errorf(model.ErrProcessingFailed, "ffmpeg exited with status 1")

	_, err := f.workflow().Generate(context.Background(), request(16))
	assert.ErrorIs(t, err, model.ErrProcessingFailed)
	assert.Empty(t, f.store.All())
	f.assertWorkDirEmpty(t)
}

func TestUploadFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.objects.PutErr = model.Errorf(model.ErrStorage, "bucket unavailable")

	result, err := f.workflow().Generate(context.Background(), request(16))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeDegraded, result.Outcome)
	assert.Nil(t, result.Record)
	assert.Empty(t, result.PlaybackURL)
	assert.Equal(t, result.WorkID, result.VideoID())
	assert.Empty(t, f.store.All())
	assert.Empty(t, f.publisher.Events)
	assert.Equal(t, string(model.OutcomeDegraded), f.audit.Rows[0].Outcome)
	assert.Contains(t, f.audit.Rows[0].Error, "bucket unavailable")
	f.assertWorkDirEmpty(t)
}

func TestSigningFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.objects.SignErr = model.Errorf(model.ErrStorage, "no signer")

	result, err := f.workflow().Generate(context.Background(), request(8))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeDegraded, result.Outcome)
	require.NotNil(t, result.Record)
	assert.Empty(t, result.PlaybackURL)
	assert.Len(t, f.store.All(), 1)
}

func TestRecordFailureAfterUploadFails(t *testing.T) {
	f := newFixture(t)
	f.store.CreateErr = model.Errorf(model.ErrStorage, "connection refused")

	_, err := f.workflow().Generate(context.Background(), request(8))
	assert.ErrorIs(t, err, model.ErrStorage)
	assert.Len(t, f.objects.Keys(), 1)
	f.assertWorkDirEmpty(t)
}

func TestProvisionalRecords(t *testing.T) {
	t.Run("ready after upload", func(t *testing.T) {
		f := newFixture(t)
		f.config.Records.Provisional = true

		result, err := f.workflow().Generate(context.Background(), request(8))
		require.NoError(t, err)
		records := f.store.All()
		require.Len(t, records, 1)
		assert.Equal(t, model.VideoStatusReady, records[0].Status)
		assert.Equal(t, records[0].ID, result.Record.ID)
	})

	t.Run("failed when upload fails", func(t *testing.T) {
		f := newFixture(t)
		f.config.Records.Provisional = true
		f.objects.PutErr = model.Errorf(model.ErrStorage, "bucket unavailable")

		result, err := f.workflow().Generate(context.Background(), request(8))
		require.NoError(t, err)
		assert.Nil(t, result.Record)
		records := f.store.All()
		require.Len(t, records, 1)
		assert.Equal(t, model.VideoStatusFailed, records[0].Status)
	})
}

func TestGenerateWaitsForGate(t *testing.T) {
	f := newFixture(t)
	f.gate = cloud.NewGenerationGate(0, 1)
	w := f.workflow()

	release, err := f.gate.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = w.Generate(ctx, request(8))
	assert.ErrorIs(t, err, model.ErrTimeout)
	assert.Zero(t, f.generator.Calls())

	release()
	_, err = w.Generate(context.Background(), request(8))
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.gate.InFlight())
}

func TestQueuedGeneration(t *testing.T) {
	f := newFixture(t)
	chain := workflow.NewQueuedGeneration(f.workflow())

	ack := cloud.Handle(context.Background(), chain, []byte(test.GetTestJobMessageText()))
	assert.True(t, ack)
	records := f.store.All()
	require.Len(t, records, 1)
	assert.Equal(t, "9b2f6a4e-1c3d-4e5f-8a7b-0c1d2e3f4a5b", records[0].OwnerID)
	assert.Equal(t, 2, f.generator.Calls())

	assert.True(t, cloud.Handle(context.Background(), chain, []byte("{not json")), "malformed jobs are dropped")
	assert.True(t, cloud.Handle(context.Background(), chain, []byte(`{"owner_id":"o","prompt":"p","duration":9}`)))

	f.generator.Fail = func(string) error { return errors.New("quota exceeded") }
	assert.False(t, cloud.Handle(context.Background(), chain, []byte(test.GetTestJobMessageText())), "transient failures are redelivered")
	f.assertWorkDirEmpty(t)
}
