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

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/api"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
	test "github.com/jaycherian/gcp-go-ad-video-generator/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret = "test-secret"
	owner  = "9b2f6a4e-1c3d-4e5f-8a7b-0c1d2e3f4a5b"
)

type stubGenerator struct {
	requests []*model.GenerationRequest
	result   *model.GenerationResult
	err      error
}

func (g *stubGenerator) Generate(_ context.Context, req *model.GenerationRequest) (*model.GenerationResult, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	if g.result != nil {
		return g.result, nil
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &model.GenerationResult{WorkID: "w", Outcome: model.OutcomeCompleted}, nil
}

type fixture struct {
	router    *gin.Engine
	generator *stubGenerator
	store     *test.FakeVideoStore
	objects   *test.FakeObjectStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{
		generator: &stubGenerator{},
		store:     test.NewFakeVideoStore(),
		objects:   test.NewFakeObjectStore("test-video-bucket"),
	}
	media := services.NewMediaService(f.store, f.objects, time.Hour)
	f.router = api.NewRouter("ad-video-test", api.Handlers{
		Auth:      api.NewAuthenticator(secret),
		Generator: f.generator,
		Media:     media,
		Uploads:   services.NewUploadService(media, "uploads"),
		DB:        f.store,
	})
	return f
}

type part struct {
	field, filename string
	data            []byte
}

func form(t *testing.T, fields map[string]string, files ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, p := range files {
		fw, err := w.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func (f *fixture) do(t *testing.T, method, path, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestGenerateRequiresCredential(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		token  string
		detail string
	}{
		{"missing", "", "unauthorized: missing bearer token"},
		{"expired", test.SignToken(t, secret, owner, -time.Minute), "unauthorized: token has expired"},
		{"no subject", test.SignToken(t, secret, "", time.Hour), "unauthorized: token has no subject"},
		{"wrong secret", test.SignToken(t, "other-secret", owner, time.Hour), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := form(t, map[string]string{"prompt": "shoes"})
			rec := f.do(t, http.MethodPost, "/v1/videos/generate", tt.token, body, ct)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			if tt.detail != "" {
				assert.Equal(t, tt.detail, decode[map[string]string](t, rec)["detail"])
			}
		})
	}
	assert.Empty(t, f.generator.requests)
}

func TestGenerateReadsForm(t *testing.T) {
	f := newFixture(t)
	token := test.SignToken(t, secret, owner, time.Hour)
	body, ct := form(t,
		map[string]string{"prompt": "running shoes", "duration": "16", "prompts": `["city","beach"]`, "title": " Spring "},
		part{"image", "shoe.png", []byte("\x89PNG\r\n\x1a\n")})

	rec := f.do(t, http.MethodPost, "/v1/videos/generate", token, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, f.generator.requests, 1)
	req := f.generator.requests[0]
	assert.Equal(t, owner, req.OwnerID)
	assert.Equal(t, 16, req.DurationSeconds)
	assert.Equal(t, []string{"city", "beach"}, req.Prompts)
	assert.Equal(t, "Spring", req.Title)
	require.NotNil(t, req.Image)
	assert.Equal(t, ".png", req.Image.Extension())
}

func TestGenerateDefaultsToOneSegment(t *testing.T) {
	f := newFixture(t)
	body, ct := form(t, map[string]string{"prompt": "shoes"})
	rec := f.do(t, http.MethodPost, "/v1/videos/generate", test.SignToken(t, secret, owner, time.Hour), body, ct)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.SegmentSeconds, f.generator.requests[0].DurationSeconds)
}

func TestGenerateResponses(t *testing.T) {
	url := "https://storage.example.com/test-video-bucket/generated-videos/w.mp4?expires=3600"
	tests := []struct {
		name    string
		result  *model.GenerationResult
		videoID string
		url     *string
	}{
		{
			name: "stored",
			result: &model.GenerationResult{WorkID: "w", Outcome: model.OutcomeCompleted,
				Record: &model.VideoRecord{ID: 42}, PlaybackURL: url},
			videoID: "42",
			url:     &url,
		},
		{
			name:    "upload failed",
			result:  &model.GenerationResult{WorkID: "w", Outcome: model.OutcomeDegraded},
			videoID: "w",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.generator.result = tt.result
			body, ct := form(t, map[string]string{"prompt": "shoes", "duration": "24"})
			rec := f.do(t, http.MethodPost, "/v1/videos/generate", test.SignToken(t, secret, owner, time.Hour), body, ct)
			require.Equal(t, http.StatusOK, rec.Code)

			out := decode[model.VideoGenerationResponse](t, rec)
			assert.Equal(t, "Video generated successfully (24 seconds)", out.Message)
			assert.Equal(t, "completed", out.Status)
			assert.Equal(t, tt.videoID, out.VideoID)
			assert.Equal(t, tt.url, out.VideoURL)
		})
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		err    error
		status int
		detail string
	}{
		{"bad duration", map[string]string{"prompt": "p", "duration": "ten"}, nil, http.StatusBadRequest,
			`invalid input: duration must be 8, 16, or 24 seconds, got "ten"`},
		{"unsupported duration", map[string]string{"prompt": "p", "duration": "12"}, nil, http.StatusBadRequest, ""},
		{"bad prompts", map[string]string{"prompt": "p", "prompts": "[not json"}, nil, http.StatusBadRequest, ""},
		{"timeout", map[string]string{"prompt": "p"}, model.Errorf(model.ErrTimeout, "operation timed out after 600 seconds"),
			http.StatusGatewayTimeout, "timeout: operation timed out after 600 seconds"},
		{"generation", map[string]string{"prompt": "p"}, model.Errorf(model.ErrGenerationFailed, "no videos in response"),
			http.StatusInternalServerError, "generation failed: no videos in response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.generator.err = tt.err
			body, ct := form(t, tt.fields)
			rec := f.do(t, http.MethodPost, "/v1/videos/generate", test.SignToken(t, secret, owner, time.Hour), body, ct)
			assert.Equal(t, tt.status, rec.Code)
			detail := decode[map[string]string](t, rec)["detail"]
			if tt.detail != "" {
				assert.Equal(t, tt.detail, detail)
			} else {
				assert.NotEmpty(t, detail)
			}
		})
	}
}

func TestGetVideo(t *testing.T) {
	f := newFixture(t)
	rec, err := f.store.Create(context.Background(), owner,
		model.ObjectLocation{Bucket: "test-video-bucket", Key: "generated-videos/a.mp4"}, "", model.VideoStatusReady)
	require.NoError(t, err)

	// Anonymous and authenticated callers both see the record.
	for _, token := range []string{"", test.SignToken(t, secret, "someone-else", time.Hour)} {
		res := f.do(t, http.MethodGet, "/v1/videos/1", token, nil, "")
		require.Equal(t, http.StatusOK, res.Code)
		out := decode[model.VideoReadWithURL](t, res)
		assert.Equal(t, rec.ID, out.ID)
		assert.Nil(t, out.Title)
		assert.Equal(t, model.VideoStatusReady, out.Status)
		assert.Equal(t, "https://storage.example.com/test-video-bucket/generated-videos/a.mp4?expires=3600", out.PlaybackURL)
	}
}

func TestGetVideoNotFound(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/v1/videos/99", "/v1/videos/abc", "/v1/videos/0", "/v1/videos/-3"} {
		res := f.do(t, http.MethodGet, path, "", nil, "")
		assert.Equal(t, http.StatusNotFound, res.Code, path)
		assert.NotEmpty(t, decode[map[string]string](t, res)["detail"], path)
	}
}

func TestListVideos(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range []string{"a.mp4", "b.mp4"} {
		at := base.Add(time.Duration(i) * time.Hour)
		f.store.Now = func() time.Time { return at }
		_, err := f.store.Create(context.Background(), owner, model.ObjectLocation{Bucket: "b", Key: key}, "t", model.VideoStatusReady)
		require.NoError(t, err)
	}
	token := test.SignToken(t, secret, owner, time.Hour)

	res := f.do(t, http.MethodGet, "/v1/users/"+owner+"/videos", token, nil, "")
	require.Equal(t, http.StatusOK, res.Code)
	list := decode[[]model.VideoRead](t, res)
	require.Len(t, list, 2)
	assert.Equal(t, "b.mp4", list[0].Key)

	res = f.do(t, http.MethodGet, "/v1/users/"+owner+"/videos-with-urls", token, nil, "")
	require.Equal(t, http.StatusOK, res.Code)
	withURLs := decode[[]model.VideoReadWithURL](t, res)
	require.Len(t, withURLs, 2)
	assert.Contains(t, withURLs[1].PlaybackURL, "/test-video-bucket/a.mp4?expires=")

	res = f.do(t, http.MethodGet, "/v1/users/nobody/videos", token, nil, "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, "[]", res.Body.String())

	res = f.do(t, http.MethodGet, "/v1/users/"+owner+"/videos", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestListVideosSigningFailure(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Create(context.Background(), owner, model.ObjectLocation{Bucket: "b", Key: "a.mp4"}, "", model.VideoStatusReady)
	require.NoError(t, err)
	f.objects.SignErr = model.Errorf(model.ErrStorage, "signing denied")

	res := f.do(t, http.MethodGet, "/v1/users/"+owner+"/videos-with-urls", test.SignToken(t, secret, owner, time.Hour), nil, "")
	assert.Equal(t, http.StatusInternalServerError, res.Code)
}

func TestUploadVideo(t *testing.T) {
	f := newFixture(t)
	body, ct := form(t, map[string]string{"title": "Launch"}, part{"file", "launch.mp4", []byte("mp4-bytes")})
	res := f.do(t, http.MethodPost, "/v1/videos/upload", test.SignToken(t, secret, owner, time.Hour), body, ct)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	out := decode[model.VideoReadWithURL](t, res)
	assert.Equal(t, owner, out.OwnerID)
	require.NotNil(t, out.Title)
	assert.Equal(t, "Launch", *out.Title)
	assert.Regexp(t, `^uploads/[0-9a-f-]{36}-launch\.mp4$`, out.Key)
	assert.Equal(t, []byte("mp4-bytes"), f.objects.Objects[out.Key])

	body, ct = form(t, map[string]string{"title": "no file"})
	res = f.do(t, http.MethodPost, "/v1/videos/upload", test.SignToken(t, secret, owner, time.Hour), body, ct)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"ok":true}`, res.Body.String())

	res = f.do(t, http.MethodGet, "/health/ready", "", nil, "")
	assert.Equal(t, http.StatusOK, res.Code)

	f.store.PingErr = model.Errorf(model.ErrStorage, "connection refused")
	res = f.do(t, http.MethodGet, "/health/ready", "", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)

	res = f.do(t, http.MethodGet, "/metrics", "", nil, "")
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{model.Errorf(model.ErrInvalidInput, "x"), http.StatusBadRequest},
		{model.Errorf(model.ErrUnauthorized, "x"), http.StatusUnauthorized},
		{model.Errorf(model.ErrNotFound, "x"), http.StatusNotFound},
		{model.Errorf(model.ErrTimeout, "x"), http.StatusGatewayTimeout},
		{model.Errorf(model.ErrGenerationFailed, "x"), http.StatusInternalServerError},
		{model.Errorf(model.ErrProcessingFailed, "x"), http.StatusInternalServerError},
		{model.Errorf(model.ErrStorage, "x"), http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, api.StatusFor(tt.err), tt.err.Error())
	}
}

func TestAuthenticate(t *testing.T) {
	auth := api.NewAuthenticator(secret)
	sub, err := auth.Authenticate(test.SignToken(t, secret, owner, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, owner, sub)

	_, err = auth.Authenticate("not-a-token")
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}
