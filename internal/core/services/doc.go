// Package services holds the assistant's core: intent routing, retrieval,
// tool dispatch, answer generation and the ingestion pipeline. Every
// service implements a driving port and talks to the outside world only
// through driven ports.
package services
