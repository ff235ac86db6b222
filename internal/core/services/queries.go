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
// This file, `queries.go`, centralizes the SQL statements used by the Postgres
// video store. Statements use positional parameters; no value is ever
// formatted into the SQL text.
//
// Table layout (`video`):
//
//	id          serial primary key
//	owner_id    varchar(36)  not null
//	bucket      varchar(500) not null
//	s3_key      varchar(500) not null unique
//	title       varchar(100)
//	status      video_status not null  -- DRAFT | PROCESSING | READY | FAILED
//	created_at  timestamp
//	updated_at  timestamp
package services

const (
	videoColumns = "id, owner_id, bucket, s3_key, title, status, created_at, updated_at"

	// QryInsertVideo creates a row and returns it. created_at and updated_at
	// share one timestamp.
	QryInsertVideo = "INSERT INTO video (owner_id, bucket, s3_key, title, status, created_at, updated_at) " +
		"VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING " + videoColumns

	// QryFindVideoById looks a row up by primary key.
	QryFindVideoById = "SELECT " + videoColumns + " FROM video WHERE id = $1"

	// QryListVideosByOwner returns the rows of one owner, newest first. The id
	// breaks ties between rows created in the same instant.
	QryListVideosByOwner = "SELECT " + videoColumns + " FROM video WHERE owner_id = $1 ORDER BY created_at DESC, id DESC"

	// QryUpdateVideoStatus moves a row to a new status and refreshes updated_at.
	QryUpdateVideoStatus = "UPDATE video SET status = $2, updated_at = $3 WHERE id = $1 RETURNING " + videoColumns

	// QryFailStaleProcessing moves rows in status $3 not touched since $4 to $1.
	QryFailStaleProcessing = "UPDATE video SET status = $1, updated_at = $2 WHERE status = $3 AND updated_at < $4"
)
