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

package commands_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/commands"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
	test "github.com/jaycherian/gcp-go-ad-video-generator/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChainContext(req *model.GenerationRequest, workID string) cor.Context {
	ctx := cor.NewBaseContext()
	ctx.SetContext(context.Background())
	ctx.Add(commands.ParamRequest, req)
	ctx.Add(commands.ParamWorkID, workID)
	return ctx
}

func TestSegmentsAssembledWithFFmpeg(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("ffmpeg stub is a shell script")
	}
	root := t.TempDir()
	generator := &test.FakeGenerator{}
	chain := cor.NewBaseChain("assemble-test").
		AddCommand(commands.NewWorkspacePrepare("workspace", root)).
		AddCommand(commands.NewSegmentGenerate("segments", generator, 1)).
		AddCommand(commands.NewSegmentAssemble("assemble", services.NewFFMpegConcatenator(test.WriteFFmpegStub(t, t.TempDir(), false))))

	req := &model.GenerationRequest{OwnerID: "o", Prompt: "p", DurationSeconds: 16}
	chainCtx := newChainContext(req, "work-1")
	chain.Execute(chainCtx)
	require.NoError(t, chainCtx.Err())

	artifact := chainCtx.Get(commands.ParamArtifact).(string)
	assert.Equal(t, filepath.Join(root, "work-1", "work-1.mp4"), artifact)
	data, err := os.ReadFile(artifact)
	require.NoError(t, err)
	assert.Equal(t, "clip:"+req.SegmentPrompt(0)+"clip:"+req.SegmentPrompt(1), string(data))

	segments := chainCtx.Get(commands.ParamSegments).([]*model.Segment)
	require.Len(t, segments, 2)
	for i, seg := range segments {
		assert.Equal(t, &model.Segment{
			Index:     i,
			Prompt:    req.SegmentPrompt(i),
			Path:      filepath.Join(root, "work-1", model.SegmentFileName("work-1", i)),
			Completed: true,
		}, seg)
	}

	chainCtx.Close()
	assert.NoDirExists(t, filepath.Join(root, "work-1"))
}

func TestSegmentGenerateRejectsEmptyClip(t *testing.T) {
	root := t.TempDir()
	chain := cor.NewBaseChain("empty-clip").
		AddCommand(commands.NewWorkspacePrepare("workspace", root)).
		AddCommand(commands.NewSegmentGenerate("segments", &test.FakeGenerator{Empty: true}, 1))

	chainCtx := newChainContext(&model.GenerationRequest{OwnerID: "o", Prompt: "p", DurationSeconds: 8}, "work-2")
	defer chainCtx.Close()
	chain.Execute(chainCtx)
	assert.ErrorIs(t, chainCtx.Err(), model.ErrGenerationFailed)
	assert.Nil(t, chainCtx.Get(commands.ParamSegments))
}

func TestReferenceImageSaveDetectsMIME(t *testing.T) {
	root := t.TempDir()
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	chain := cor.NewBaseChain("image").
		AddCommand(commands.NewWorkspacePrepare("workspace", root)).
		AddCommand(commands.NewReferenceImageSave("image"))

	// The extension says webp, the bytes say jpeg.
	req := &model.GenerationRequest{OwnerID: "o", Prompt: "p", DurationSeconds: 8,
		Image: &model.ReferenceImage{Filename: "photo.webp", Data: jpeg}}
	chainCtx := newChainContext(req, "work-3")
	chain.Execute(chainCtx)
	require.NoError(t, chainCtx.Err())

	img := chainCtx.Get(commands.ParamImage).(*services.ImageInput)
	assert.Equal(t, "image/jpeg", img.MIMEType)
	assert.Equal(t, filepath.Join(root, "work-3", "work-3_reference.webp"), img.Path)
	assert.FileExists(t, img.Path)

	chainCtx.Close()
	assert.NoFileExists(t, img.Path)
}

func TestArtifactUploadDegradesOnStorageError(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "work-4.mp4")
	require.NoError(t, os.WriteFile(artifact, []byte("mp4"), 0o644))

	objects := test.NewFakeObjectStore("ads")
	objects.PutErr = model.Errorf(model.ErrStorage, "denied")
	upload := commands.NewArtifactUpload("upload", objects, "generated-videos")

	chainCtx := newChainContext(&model.GenerationRequest{}, "work-4")
	chainCtx.Add(commands.ParamArtifact, artifact)
	upload.Execute(chainCtx)

	assert.False(t, chainCtx.HasErrors())
	assert.Nil(t, chainCtx.Get(commands.ParamLocation))
	assert.ErrorIs(t, chainCtx.Get(commands.ParamUploadError).(error), model.ErrStorage)

	objects.PutErr = nil
	upload.Execute(chainCtx)
	loc := chainCtx.Get(commands.ParamLocation).(*model.ObjectLocation)
	assert.Equal(t, "generated-videos/work-4.mp4", loc.Key)
	assert.Equal(t, "mp4", string(objects.Objects[loc.Key]))
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp4")
	dst := filepath.Join(dir, "b.mp4")
	require.NoError(t, os.WriteFile(src, []byte("clip"), 0o644))

	require.NoError(t, commands.MoveFile(src, dst))
	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "clip", string(data))
}
