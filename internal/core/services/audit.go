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
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-ad-video-generator/internal/core/model"
)

// BigQueryAuditSink streams generation audit rows into one table.
type BigQueryAuditSink struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewBigQueryAuditSink is the constructor for BigQueryAuditSink.
func NewBigQueryAuditSink(client *bigquery.Client, dataset string, table string) *BigQueryAuditSink {
	return &BigQueryAuditSink{client: client, dataset: dataset, table: table}
}

// Write inserts one row through the streaming inserter.
func (s *BigQueryAuditSink) Write(ctx context.Context, audit *model.GenerationAudit) error {
	i := s.client.Dataset(s.dataset).Table(s.table).Inserter()
	if err := i.Put(ctx, audit); err != nil {
		return fmt.Errorf("bigquery insert failed for work id %s: %w", audit.WorkID, err)
	}
	return nil
}
