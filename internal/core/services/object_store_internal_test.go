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

package services

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	bytes.Buffer
	events   *[]string
	closeErr error
}

func (w *recordingWriter) Close() error {
	*w.events = append(*w.events, "close")
	return w.closeErr
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestCopyObjectAbortsBeforeCloseOnReadError(t *testing.T) {
	var events []string
	w := &recordingWriter{events: &events}
	readErr := errors.New("connection reset")

	written, err := copyObject(w, &failingReader{data: []byte("partial"), err: readErr}, func() {
		events = append(events, "abort")
	})

	assert.ErrorIs(t, err, readErr)
	assert.EqualValues(t, len("partial"), written)
	assert.Equal(t, []string{"abort", "close"}, events)
}

func TestCopyObjectClosesWithoutAbort(t *testing.T) {
	var events []string
	w := &recordingWriter{events: &events}

	written, err := copyObject(w, strings.NewReader("mp4-bytes"), func() {
		events = append(events, "abort")
	})

	require.NoError(t, err)
	assert.EqualValues(t, 9, written)
	assert.Equal(t, "mp4-bytes", w.String())
	assert.Equal(t, []string{"close"}, events)
}

func TestCopyObjectReportsFinalizeError(t *testing.T) {
	var events []string
	closeErr := errors.New("precondition failed")
	w := &recordingWriter{events: &events, closeErr: closeErr}

	_, err := copyObject(w, io.LimitReader(strings.NewReader("abc"), 3), func() {
		events = append(events, "abort")
	})

	assert.ErrorIs(t, err, closeErr)
	assert.Equal(t, []string{"close"}, events)
}
