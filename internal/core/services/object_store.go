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

// Package services contains the business logic for interacting with data sources.
// This file defines GCSObjectStore, the object store gateway: put bytes under a
// key and mint time-limited GET URLs for a key.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/cloud"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
)

// GCSObjectStore stores videos in one bucket.
type GCSObjectStore struct {
	StorageClient *storage.Client                   // Client for interacting with Google Cloud Storage.
	IAMClient     *credentials.IamCredentialsClient // Signs URLs through IAM, optional.
	SignerEmail   string                            // Service account used with IAMClient.
	BucketName    string
	CacheControl  string
}

// NewGCSObjectStore builds the store from the storage settings.
func NewGCSObjectStore(client *storage.Client, iam *credentials.IamCredentialsClient, signerEmail string, cfg cloud.Storage) *GCSObjectStore {
	return &GCSObjectStore{
		StorageClient: client,
		IAMClient:     iam,
		SignerEmail:   signerEmail,
		BucketName:    cfg.Bucket,
		CacheControl:  cfg.CacheControl,
	}
}

// Bucket returns the bucket name.
func (s *GCSObjectStore) Bucket() string {
	return s.BucketName
}

// Put streams r to key. The object only exists once the writer is closed
// without error.
func (s *GCSObjectStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := s.StorageClient.Bucket(s.BucketName).Object(key).NewWriter(writeCtx)
	writer.ContentType = contentType
	writer.CacheControl = s.CacheControl

	written, err := copyObject(writer, r, cancel)
	if err != nil {
		return model.Errorf(model.ErrStorage, "writing gs://%s/%s after %d bytes: %w", s.BucketName, key, written, err)
	}
	slog.InfoContext(ctx, "stored object", "bucket", s.BucketName, "key", key, "bytes", written)
	return nil
}

// copyObject streams r into w and closes it. When the copy fails, abort runs
// before Close so the writer discards the upload instead of committing a
// partial object.
func copyObject(w io.WriteCloser, r io.Reader, abort func()) (int64, error) {
	written, err := io.Copy(w, r)
	if err != nil {
		abort()
		_ = w.Close()
		return written, err
	}
	if err = w.Close(); err != nil {
		return written, fmt.Errorf("finalizing upload: %w", err)
	}
	return written, nil
}

// Sign creates a V4 signed GET URL valid for ttl. It does not check that the
// object exists.
//
// With a signer account configured the signature comes from the IAM
// Credentials API, which works on GCP runtimes without a local key file.
// Otherwise the storage client signs with its own credentials.
func (s *GCSObjectStore) Sign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	}
	if s.SignerEmail != "" && s.IAMClient != nil {
		opts.GoogleAccessID = s.SignerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			req := &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			}
			resp, err := s.IAMClient.SignBlob(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		}
	}

	u, err := s.StorageClient.Bucket(s.BucketName).SignedURL(key, opts)
	if err != nil {
		return "", model.Errorf(model.ErrStorage, "Bucket(%q).SignedURL(%q): %w", s.BucketName, key, err)
	}
	return u, nil
}
