// Package server exposes the HTTP API: document ingestion, source
// management, and generation requests routed through the admission
// controller. Responses and errors are written as JSON.
package server
