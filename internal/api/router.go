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
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Handlers are the collaborators the routes call into.
type Handlers struct {
	Auth      *Authenticator
	Generator Generator
	Media     *services.MediaService
	Uploads   *services.UploadService
	DB        Pinger
}

// NewRouter builds the gin engine with tracing, CORS and every route group.
func NewRouter(serviceName string, h Handlers) *gin.Engine {
	r := gin.Default()
	r.Use(otelgin.Middleware(serviceName))
	r.Use(cors.Default())

	Health(r, h.DB)

	v1 := r.Group("/v1")
	{
		VideoRouter(v1, h.Auth, h.Generator, h.Media, h.Uploads)
		UserRouter(v1, h.Auth, h.Media)
	}
	return r
}
