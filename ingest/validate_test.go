package ingest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexgrove/evidentia/core"
)

func validPDFBytes() []byte {
	return append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte("x"), 200)...)
}

func TestValidateFile(t *testing.T) {
	t.Run("valid file passes", func(t *testing.T) {
		require.Nil(t, ValidateFile("brief.pdf", validPDFBytes(), core.DocumentTypeCaseLaw))
	})

	t.Run("uppercase extension passes", func(t *testing.T) {
		require.Nil(t, ValidateFile("BRIEF.PDF", validPDFBytes(), core.DocumentTypeCaseLaw))
	})

	t.Run("non-pdf extension rejected", func(t *testing.T) {
		ferr := ValidateFile("brief.docx", validPDFBytes(), core.DocumentTypeCaseLaw)
		require.NotNil(t, ferr)
		assert.Equal(t, CodeInvalidFileType, ferr.Code)
		assert.NotEmpty(t, ferr.Suggestion)
	})

	t.Run("unknown document type rejected", func(t *testing.T) {
		ferr := ValidateFile("brief.pdf", validPDFBytes(), core.DocumentType("napkin"))
		require.NotNil(t, ferr)
		assert.Equal(t, CodeInvalidFileType, ferr.Code)
		assert.ErrorIs(t, ferr, core.ErrInvalidDocumentType)
	})

	t.Run("oversized file rejected", func(t *testing.T) {
		data := make([]byte, MaxFileBytes+1)
		copy(data, pdfMagic)

		ferr := ValidateFile("brief.pdf", data, core.DocumentTypeCaseLaw)
		require.NotNil(t, ferr)
		assert.Equal(t, CodeFileTooLarge, ferr.Code)
	})

	t.Run("truncated file rejected", func(t *testing.T) {
		ferr := ValidateFile("brief.pdf", []byte("%PDF-"), core.DocumentTypeCaseLaw)
		require.NotNil(t, ferr)
		assert.Equal(t, CodeFileCorrupted, ferr.Code)
	})

	t.Run("missing magic rejected", func(t *testing.T) {
		data := bytes.Repeat([]byte("z"), 300)

		ferr := ValidateFile("brief.pdf", data, core.DocumentTypeCaseLaw)
		require.NotNil(t, ferr)
		assert.Equal(t, CodeFileCorrupted, ferr.Code)
	})
}

func TestFileError_Error(t *testing.T) {
	ferr := &FileError{Code: CodeFileCorrupted, Reason: "file is only 3 bytes"}
	assert.Equal(t, "FILE_CORRUPTED: file is only 3 bytes", ferr.Error())

	wrapped := &FileError{Code: CodePDFParseError, Reason: "broken", Cause: assert.AnError}
	assert.Contains(t, wrapped.Error(), "PDF_PARSE_ERROR")
	assert.ErrorIs(t, wrapped, assert.AnError)
}
