// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces used to report harvest run progress. Events are batched
// on a background goroutine and fanned out to pluggable sinks such as
// Prometheus metrics, the run history store, or structured logging.
package progress
