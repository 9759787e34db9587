// Package reembed regenerates the stored vectors of every ingested chunk,
// typically after switching to a new embedding model. Chunks are processed
// source by source in batches, with throttle-aware retries and progress
// reporting to a writer.
package reembed
