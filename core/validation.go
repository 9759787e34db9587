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

import (
	"fmt"
	"slices"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - SourceID must be set
//   - Text must not be empty
//   - StartOffset/EndOffset must form a non-inverted, non-negative range
//
// NOT validated (populated later in the pipeline):
//   - Vector (empty until the embedding coordinator runs)
//   - Metadata (optional)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.SourceID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrMissingSourceID)
	}

	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyChunkText)
	}

	if chunk.StartOffset < 0 || chunk.EndOffset < chunk.StartOffset {
		return fmt.Errorf("%w: %w: [%d, %d)", ErrInvalidChunk, ErrInvalidChunkRange,
			chunk.StartOffset, chunk.EndOffset)
	}

	return nil
}

// ValidateSource validates a Source according to domain rules.
//
// Validation rules:
//   - ID and Title must be set
//   - Type must be a known DocumentType
//   - Status must be a valid SourceStatus
func ValidateSource(source *Source) error {
	if source == nil {
		return fmt.Errorf("%w: source is nil", ErrInvalidSource)
	}

	if source.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSource, ErrMissingSourceID)
	}

	if source.Title == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSource, ErrEmptySourceTitle)
	}

	if err := ValidateDocumentType(source.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}

	if err := ValidateSourceStatus(source.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}

	return nil
}

// ValidateDocumentType validates that a DocumentType has a known value.
func ValidateDocumentType(docType DocumentType) error {
	if !slices.Contains(DocumentTypes, docType) {
		return fmt.Errorf("%w: %q", ErrInvalidDocumentType, docType)
	}
	return nil
}

// ValidateSourceStatus validates that a SourceStatus has a valid value.
func ValidateSourceStatus(status SourceStatus) error {
	if status != SourceStatusPending && status != SourceStatusReady && status != SourceStatusFailed {
		return fmt.Errorf("%w: value %d", ErrInvalidSourceStatus, status)
	}
	return nil
}
