// Package ai defines the interfaces for external model services: text
// embedding and answer generation.
//
// Implementations live in subpackages (openai for OpenAI-compatible APIs,
// mock for deterministic test doubles). The package also defines the error
// taxonomy callers use to drive retries: throttling errors are retryable,
// everything else fails fast.
package ai
