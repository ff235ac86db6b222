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

package model

import (
	"errors"
	"fmt"
)

// Error kinds shared by the pipeline, the services and the HTTP layer. Callers
// wrap one of these with additional context and classify with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrGenerationFailed = errors.New("generation failed")
	ErrProcessingFailed = errors.New("processing failed")
	ErrStorage          = errors.New("storage error")
	ErrTimeout          = errors.New("timeout")
)

// Errorf wraps kind with a formatted message. The result matches kind under
// errors.Is and also matches any error passed with a %w verb in format.
func Errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %w", kind, fmt.Errorf(format, args...))
}

// KindOf returns the first known kind found in err's chain, or nil.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrInvalidInput,
		ErrUnauthorized,
		ErrNotFound,
		ErrTimeout,
		ErrGenerationFailed,
		ErrProcessingFailed,
		ErrStorage,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
