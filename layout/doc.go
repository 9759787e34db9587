// Package layout groups positioned text runs into paragraphs.
//
// The normalizer consumes the raw output of PDF text extraction (runs with
// baseline position, size and font size) and produces ordered paragraphs,
// detecting headings via font-size, capitalization and centering heuristics.
// It performs a pure transformation with no side effects.
package layout
