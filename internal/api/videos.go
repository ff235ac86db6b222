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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
)

// Generator runs one generation request to completion.
type Generator interface {
	Generate(ctx context.Context, req *model.GenerationRequest) (*model.GenerationResult, error)
}

// VideoRouter registers the /videos routes.
//
// POST /videos/generate and POST /videos/upload require a bearer credential.
// GET /videos/:id accepts anonymous callers.
func VideoRouter(r *gin.RouterGroup, auth *Authenticator, generator Generator, media *services.MediaService, uploads *services.UploadService) {
	videos := r.Group("/videos")
	{
		videos.POST("/generate", auth.RequireAuth(), func(c *gin.Context) {
			sub, _ := Subject(c)
			req, err := readGenerationForm(c, sub)
			if err != nil {
				abortWithError(c, err)
				return
			}
			result, err := generator.Generate(c.Request.Context(), req)
			if err != nil {
				abortWithError(c, err)
				return
			}
			out := model.VideoGenerationResponse{
				Message: fmt.Sprintf("Video generated successfully (%d seconds)", req.DurationSeconds),
				VideoID: result.VideoID(),
				Status:  string(model.OutcomeCompleted),
			}
			if result.PlaybackURL != "" {
				out.VideoURL = &result.PlaybackURL
			}
			c.JSON(http.StatusOK, out)
		})

		videos.POST("/upload", auth.RequireAuth(), func(c *gin.Context) {
			sub, _ := Subject(c)
			header, err := c.FormFile("file")
			if err != nil {
				abortWithError(c, model.Errorf(model.ErrInvalidInput, "file is required"))
				return
			}
			f, err := header.Open()
			if err != nil {
				abortWithError(c, model.Errorf(model.ErrInvalidInput, "reading upload: %w", err))
				return
			}
			defer f.Close()

			out, err := uploads.Upload(c.Request.Context(), sub, header.Filename, header.Header.Get("Content-Type"), f, c.PostForm("title"))
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, out)
		})

		videos.GET("/:id", auth.OptionalAuth(), func(c *gin.Context) {
			// Only decimal ids route here, anything else is an unknown path.
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil || id <= 0 {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
				return
			}
			out, err := media.Get(c.Request.Context(), id)
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, out)
		})
	}
}

// UserRouter registers the per-owner listing routes.
func UserRouter(r *gin.RouterGroup, auth *Authenticator, media *services.MediaService) {
	users := r.Group("/users/:userId", auth.RequireAuth())
	{
		users.GET("/videos", func(c *gin.Context) {
			out, err := media.List(c.Request.Context(), c.Param("userId"))
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, out)
		})

		users.GET("/videos-with-urls", func(c *gin.Context) {
			out, err := media.ListWithURLs(c.Request.Context(), c.Param("userId"))
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, out)
		})
	}
}

// readGenerationForm builds a request from the multipart form. Field format
// problems are InvalidInput; semantic checks are left to the workflow.
func readGenerationForm(c *gin.Context, ownerID string) (*model.GenerationRequest, error) {
	req := &model.GenerationRequest{
		OwnerID: ownerID,
		Prompt:  c.PostForm("prompt"),
		Title:   strings.TrimSpace(c.PostForm("title")),
	}

	duration := strings.TrimSpace(c.DefaultPostForm("duration", strconv.Itoa(model.SegmentSeconds)))
	d, err := strconv.Atoi(duration)
	if err != nil {
		return nil, model.Errorf(model.ErrInvalidInput, "duration must be 8, 16, or 24 seconds, got %q", duration)
	}
	req.DurationSeconds = d

	if raw := strings.TrimSpace(c.PostForm("prompts")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Prompts); err != nil {
			return nil, model.Errorf(model.ErrInvalidInput, "invalid prompts format: %w", err)
		}
	}

	header, err := c.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return nil, model.Errorf(model.ErrInvalidInput, "reading image: %w", err)
	default:
		if req.Image, err = readImage(header); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func readImage(header *multipart.FileHeader) (*model.ReferenceImage, error) {
	f, err := header.Open()
	if err != nil {
		return nil, model.Errorf(model.ErrInvalidInput, "reading image: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, model.Errorf(model.ErrInvalidInput, "reading image: %w", err)
	}
	return &model.ReferenceImage{Filename: header.Filename, Data: data}, nil
}
