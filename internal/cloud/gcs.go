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

// Package cloud contains data structures and utilities for interacting with Google Cloud services.
// This file defines the internal representation of a GCS object and the key
// conventions used for stored videos.
package cloud

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const gsScheme = "gs://"

// GCSObject is a simplified, internal representation of a Google Cloud Storage (GCS)
// object.
type GCSObject struct {
	Bucket   string // The name of the GCS bucket.
	Name     string // The name of the object.
	MIMEType string // The MIME type of the object (e.g., "video/mp4").
}

// URI renders the object as a gs:// URI.
func (o *GCSObject) URI() string {
	return gsScheme + o.Bucket + "/" + o.Name
}

// ParseGSURI splits a gs://bucket/object URI.
func ParseGSURI(uri string) (*GCSObject, error) {
	if !strings.HasPrefix(uri, gsScheme) {
		return nil, fmt.Errorf("invalid GCS URI format: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, gsScheme), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid GCS URI: unable to determine bucket and object from %s", uri)
	}
	return &GCSObject{Bucket: parts[0], Name: parts[1]}, nil
}

// GeneratedObjectKey is the key of a generated ad. The work id is unique per
// request so the key is never reused.
func GeneratedObjectKey(prefix string, workID string) string {
	return path.Join(prefix, workID+".mp4")
}

// UploadObjectKey is the key of a user upload: a fresh UUID followed by the
// base name of the client file.
func UploadObjectKey(prefix string, filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload.mp4"
	}
	return path.Join(prefix, fmt.Sprintf("%s-%s", uuid.NewString(), base))
}
