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


package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/lexgrove/evidentia/core"
)

// File validation limits.
const (
	// MaxFileBytes is the upload size ceiling (200MB).
	MaxFileBytes = 200 << 20

	// MinFileBytes is the corruption floor: a real PDF is never this small.
	MinFileBytes = 100
)

// FileError codes surfaced to the caller per failed file.
const (
	CodeInvalidFileType = "INVALID_FILE_TYPE"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeFileCorrupted   = "FILE_CORRUPTED"
	CodePDFParseError   = "PDF_PARSE_ERROR"
	CodeStorageError    = "STORAGE_ERROR"
	CodeDatabaseError   = "DATABASE_ERROR"
)

// FileError is a structured per-file ingestion failure with a remediation
// suggestion for the end user.
type FileError struct {
	Code       string
	Reason     string
	Suggestion string
	Cause      error
}

func (e *FileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func (e *FileError) Unwrap() error {
	return e.Cause
}

// pdfMagic is the PDF header every well-formed file starts with.
var pdfMagic = []byte("%PDF-")

// ValidateFile runs the synchronous pre-parse checks on an upload.
// Returns nil when the file is admissible.
func ValidateFile(name string, data []byte, docType core.DocumentType) *FileError {
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return &FileError{
			Code:       CodeInvalidFileType,
			Reason:     fmt.Sprintf("%q is not a PDF file", name),
			Suggestion: "Upload a .pdf file. Other formats are not supported.",
		}
	}

	if err := core.ValidateDocumentType(docType); err != nil {
		return &FileError{
			Code:       CodeInvalidFileType,
			Reason:     fmt.Sprintf("unknown document type %q", docType),
			Suggestion: "Pick one of the supported document types (case_law, statute, treaty, regulation, constitution, journal_article, generic).",
			Cause:      err,
		}
	}

	if len(data) > MaxFileBytes {
		return &FileError{
			Code:       CodeFileTooLarge,
			Reason:     fmt.Sprintf("file is %d bytes, limit is %d", len(data), MaxFileBytes),
			Suggestion: "Split the document into smaller files of at most 200MB each.",
		}
	}

	if len(data) < MinFileBytes {
		return &FileError{
			Code:       CodeFileCorrupted,
			Reason:     fmt.Sprintf("file is only %d bytes", len(data)),
			Suggestion: "The file appears truncated. Re-export or re-download it and try again.",
		}
	}

	if !bytes.HasPrefix(data, pdfMagic) {
		return &FileError{
			Code:       CodeFileCorrupted,
			Reason:     "file does not start with a PDF header",
			Suggestion: "The file appears corrupted or is not a real PDF. Re-export it and try again.",
		}
	}

	return nil
}
