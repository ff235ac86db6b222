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

package services_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
	test "github.com/jaycherian/gcp-go-ad-video-generator/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSegments(t *testing.T, dir string, contents ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(contents))
	for i, c := range contents {
		p := filepath.Join(dir, model.SegmentFileName("work", i))
		require.NoError(t, os.WriteFile(p, []byte(c), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func skipWithoutShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("ffmpeg stub is a shell script")
	}
}

func TestConcatenateJoinsInOrder(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	concat := services.NewFFMpegConcatenator(test.WriteFFmpegStub(t, t.TempDir(), false))

	paths := writeSegments(t, dir, "one.", "two.", "three.")
	out := filepath.Join(dir, "work.mp4")
	require.NoError(t, concat.Concatenate(context.Background(), paths, out))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "one.two.three.", string(got))

	leftovers, err := filepath.Glob(filepath.Join(dir, "concat-*.txt"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "list file must be removed")
}

func TestConcatenateReencodesFromListFile(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	stub := test.WriteFFmpegStub(t, t.TempDir(), false)
	concat := services.NewFFMpegConcatenator(stub)

	paths := writeSegments(t, dir, "one.", "two.")
	out := filepath.Join(dir, "work.mp4")
	require.NoError(t, concat.Concatenate(context.Background(), paths, out))

	args := test.FFmpegArgs(t, stub)
	require.Len(t, args, 18)
	assert.Equal(t, []string{"-f", "concat", "-safe", "0", "-i"}, args[:5])
	assert.Regexp(t, `concat-.*\.txt$`, filepath.Base(args[5]))
	assert.Equal(t, []string{
		"-c:v", "libx264",
		"-c:a", "aac",
		"-b:v", "5M",
		"-b:a", "192k",
		"-preset", "medium",
		"-y",
	}, args[6:17])
	assert.NotContains(t, args, "copy")
	assert.Equal(t, out, args[len(args)-1])

	assert.Equal(t, "file '"+paths[0]+"'\nfile '"+paths[1]+"'\n", test.FFmpegList(t, stub))
}

func TestConcatenateValidatesInputs(t *testing.T) {
	dir := t.TempDir()
	concat := services.NewFFMpegConcatenator("/nonexistent/ffmpeg")
	out := filepath.Join(dir, "work.mp4")

	err := concat.Concatenate(context.Background(), writeSegments(t, dir, "only"), out)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	paths := writeSegments(t, dir, "a", "b")
	paths[1] = filepath.Join(dir, "missing.mp4")
	err = concat.Concatenate(context.Background(), paths, out)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoFileExists(t, out)
}

func TestConcatenateToolFailure(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	concat := services.NewFFMpegConcatenator(test.WriteFFmpegStub(t, t.TempDir(), true))

	err := concat.Concatenate(context.Background(), writeSegments(t, dir, "a", "b"), filepath.Join(dir, "work.mp4"))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrProcessingFailed)
	assert.Contains(t, err.Error(), "Invalid data found")

	leftovers, _ := filepath.Glob(filepath.Join(dir, "concat-*.txt"))
	assert.Empty(t, leftovers)
}

func TestConcatenateEmptyOutput(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	concat := services.NewFFMpegConcatenator(test.WriteFFmpegStub(t, t.TempDir(), false))

	err := concat.Concatenate(context.Background(), writeSegments(t, dir, "", ""), filepath.Join(dir, "work.mp4"))
	assert.ErrorIs(t, err, model.ErrProcessingFailed)
}
