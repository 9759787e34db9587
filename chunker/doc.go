// Package chunker turns paragraph sequences into bounded, context-preserving
// evidence chunks.
//
// Chunk boundaries are decided by a state machine driven by a document-type
// sizing policy and a pluggable continuity scorer. When a boundary is forced,
// the next chunk is seeded with an overlap window taken from the text
// immediately preceding the break, so local context survives the split.
// Chunking is deterministic: the same paragraphs and policy always produce
// byte-identical chunk text.
package chunker
