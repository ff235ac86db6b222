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

// Package cor (Chain of Responsibility) provides the fundamental building blocks
// for creating workflows. This file defines `BaseContext`, the default
// implementation of the `Context` interface.
//
// A BaseContext holds:
//   - named values exchanged between commands (`data`).
//   - errors keyed by the command that produced them, with their insertion order.
//   - scratch files and directories removed by Close (`tempFiles`).
//   - the Go context used for cancellation and OpenTelemetry spans.
package cor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// BaseContext is the default implementation of the Context interface.
type BaseContext struct {
	mu         sync.RWMutex
	data       map[string]interface{}
	errors     map[string]error
	errorOrder []string
	tempFiles  []string
	context    context.Context
}

// NewBaseContext is the constructor for BaseContext. The Go context defaults to
// context.Background until SetContext is called.
func NewBaseContext() Context {
	return &BaseContext{
		data:      make(map[string]interface{}),
		errors:    make(map[string]error),
		tempFiles: make([]string, 0),
		context:   context.Background(),
	}
}

// SetContext sets the underlying Go context.
func (c *BaseContext) SetContext(context context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.context = context
}

// GetContext retrieves the underlying Go context.
func (c *BaseContext) GetContext() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.context
}

// Close removes every tracked scratch path, newest first so files go before
// the directories holding them. Failures are logged as warnings.
func (c *BaseContext) Close() {
	paths := c.GetTempFiles()
	for i := len(paths) - 1; i >= 0; i-- {
		if err := os.RemoveAll(paths[i]); err != nil {
			slog.Warn("failed to remove scratch path", "path", paths[i], "error", err)
		}
	}
	c.mu.Lock()
	c.tempFiles = c.tempFiles[:0]
	c.mu.Unlock()
}

// Add stores a value under key.
func (c *BaseContext) Add(key string, value interface{}) Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return c
}

// AddTempFile tracks a scratch path for Close.
func (c *BaseContext) AddTempFile(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tempFiles = append(c.tempFiles, path)
}

// GetTempFiles returns a copy of the tracked scratch paths.
func (c *BaseContext) GetTempFiles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.tempFiles))
	copy(out, c.tempFiles)
	return out
}

// AddError records err under the command name. A second error from the same
// command is joined to the first.
func (c *BaseContext) AddError(key string, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.errors[key]; ok {
		c.errors[key] = errors.Join(prev, err)
		return
	}
	c.errors[key] = err
	c.errorOrder = append(c.errorOrder, key)
}

// GetErrors returns a copy of the error map.
func (c *BaseContext) GetErrors() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]error, len(c.errors))
	for k, v := range c.errors {
		out[k] = v
	}
	return out
}

// Err joins the recorded errors, each prefixed with its command name. The
// wrapped errors stay reachable through errors.Is and errors.As.
func (c *BaseContext) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.errorOrder) == 0 {
		return nil
	}
	if len(c.errorOrder) == 1 {
		return c.errors[c.errorOrder[0]]
	}
	errs := make([]error, 0, len(c.errorOrder))
	for _, key := range c.errorOrder {
		errs = append(errs, fmt.Errorf("%s: %w", key, c.errors[key]))
	}
	return errors.Join(errs...)
}

// Get retrieves a value by key.
func (c *BaseContext) Get(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[key]
}

// Remove deletes key.
func (c *BaseContext) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// HasErrors checks if any errors have been added to the context.
func (c *BaseContext) HasErrors() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.errors) > 0
}
