// Package harvest defines the core types and interfaces for the topic
// harvesting engine: the three persisted URL sets, the pluggable search,
// fetch, and output collaborators, and the small clock/pause/id seams the
// engine depends on.
package harvest
