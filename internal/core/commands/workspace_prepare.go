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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/cor"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
)

// WorkspacePrepare creates the per-request scratch directory
// <root>/<work id> and registers it for removal when the context closes.
type WorkspacePrepare struct {
	cor.BaseCommand
	root string
}

// NewWorkspacePrepare is the constructor for WorkspacePrepare. An empty root
// means the OS temp directory.
func NewWorkspacePrepare(name string, root string) *WorkspacePrepare {
	if root == "" {
		root = os.TempDir()
	}
	out := &WorkspacePrepare{BaseCommand: *cor.NewBaseCommand(name), root: root}
	out.InputParamName = ParamWorkID
	out.OutputParamName = ParamWorkDir
	return out
}

func (c *WorkspacePrepare) Execute(context cor.Context) {
	workID := context.Get(c.GetInputParam()).(string)
	dir := filepath.Join(c.root, workID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), model.Errorf(model.ErrProcessingFailed, "creating work directory: %w", err))
		return
	}
	context.AddTempFile(dir)
	slog.DebugContext(context.GetContext(), "work directory ready", "work_id", workID, "dir", dir)
	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(c.GetOutputParam(), dir)
}

// workPath joins name onto the work directory held by the context.
func workPath(context cor.Context, name string) (string, error) {
	dir, ok := context.Get(ParamWorkDir).(string)
	if !ok || dir == "" {
		return "", fmt.Errorf("work directory not set")
	}
	return filepath.Join(dir, name), nil
}
