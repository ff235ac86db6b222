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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. Each file holds one step
// of the generation pipeline. This file names the context keys the steps
// exchange values under.
package commands

// Context keys shared by the generation commands.
const (
	ParamRequest     = "__generation_request__" // *model.GenerationRequest
	ParamWorkID      = "__work_id__"            // string
	ParamWorkDir     = "__work_dir__"           // string, per-request scratch directory
	ParamRelease     = "__gate_release__"       // func(), frees the generation slot
	ParamImage       = "__reference_image__"    // *services.ImageInput
	ParamSegments    = "__segments__"           // []*model.Segment, index order
	ParamArtifact    = "__artifact_path__"      // string, final local clip
	ParamProvisional = "__provisional_record__" // *model.VideoRecord in PROCESSING
	ParamLocation    = "__stored_location__"    // *model.ObjectLocation, set only after a successful upload
	ParamUploadError = "__upload_error__"       // error
	ParamResult      = "__generation_result__"  // *model.GenerationResult
	ParamAudit       = "__generation_audit__"   // *model.GenerationAudit
)
