// Package embed coordinates bulk embedding of chunk texts against a
// rate-limited external embedding service.
//
// The Coordinator partitions its input into fixed-size batches and processes
// them with bounded concurrency. A batch that keeps failing is abandoned and
// its items retried individually, so one bad item never sacrifices its
// batch-mates. Partial failure is tolerated: the result contains whatever
// succeeded and losses are logged, never raised.
package embed
