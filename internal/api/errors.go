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

// Package api holds the HTTP surface of the service: gin route groups, the
// bearer credential middleware and the mapping from error kinds to status
// codes.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch model.KindOf(err) {
	case model.ErrInvalidInput:
		return http.StatusBadRequest
	case model.ErrUnauthorized:
		return http.StatusUnauthorized
	case model.ErrNotFound:
		return http.StatusNotFound
	case model.ErrTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// abortWithError writes {"detail": ...} with the status for err.
func abortWithError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": detail(err)})
}

// detail renders err for clients. Joined chain errors are reported by their
// first line.
func detail(err error) string {
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}
