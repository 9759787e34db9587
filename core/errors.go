// Copyright 2026 Lexgrove Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidSource indicates a Source failed validation.
	ErrInvalidSource = errors.New("invalid source")

	// ErrEmptyChunkText indicates the chunk Text field is empty.
	ErrEmptyChunkText = errors.New("chunk text cannot be empty")

	// ErrInvalidChunkRange indicates an inverted or negative character range.
	ErrInvalidChunkRange = errors.New("chunk character range is invalid")

	// ErrMissingSourceID indicates a chunk without a parent source identifier.
	ErrMissingSourceID = errors.New("source id is required")

	// ErrInvalidDocumentType indicates an unrecognized DocumentType value.
	ErrInvalidDocumentType = errors.New("invalid document type")

	// ErrEmptySourceTitle indicates the source Title field is empty.
	ErrEmptySourceTitle = errors.New("source title cannot be empty")

	// ErrInvalidSourceStatus indicates an invalid SourceStatus value.
	ErrInvalidSourceStatus = errors.New("invalid source status")
)
