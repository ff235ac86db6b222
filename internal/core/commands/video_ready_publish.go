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

package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/services"
)

// VideoReadyPublish announces a READY record. Publishing is best effort: a
// failure is logged and counted, never recorded on the chain.
type VideoReadyPublish struct {
	cor.BaseCommand
	publisher services.EventPublisher
}

// NewVideoReadyPublish is the constructor for VideoReadyPublish. A nil
// publisher disables the step.
func NewVideoReadyPublish(name string, publisher services.EventPublisher) *VideoReadyPublish {
	out := &VideoReadyPublish{BaseCommand: *cor.NewBaseCommand(name), publisher: publisher}
	out.InputParamName = ParamResult
	return out
}

func (c *VideoReadyPublish) Execute(context cor.Context) {
	result := context.Get(c.GetInputParam()).(*model.GenerationResult)
	if c.publisher == nil || result.Record == nil {
		return
	}
	event := model.NewVideoReadyEvent(result.Record)
	if err := c.publisher.Publish(context.GetContext(), model.EventVideoReady, event); err != nil {
		slog.WarnContext(context.GetContext(), "video.ready not published", "video_id", event.VideoID, "error", err)
		c.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}
	c.GetSuccessCounter().Add(context.GetContext(), 1)
}
