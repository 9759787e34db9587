// Package ingest orchestrates document ingestion: PDF validation and text
// extraction, layout normalization, semantic chunking, embedding, and
// persistence.
//
// Failures are isolated per file: one file's parse failure never fails its
// sibling files in the same upload, and a failed file's partially created
// source record is rolled back so no orphaned state survives. Chunks whose
// embedding permanently fails are dropped and logged as a partial-ingestion
// loss; a chunk is never persisted without a vector.
package ingest
