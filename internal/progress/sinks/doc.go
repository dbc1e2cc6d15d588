// Package sinks implements concrete progress consumers: Prometheus metrics,
// the run history repository, and structured logging. Each sink satisfies
// the progress.Sink interface and is safe for repeated Consume/Close cycles.
package sinks
