package harvest

import (
	"context"
	"time"
)

// URLStore persists the three URL sets. Implementations must make every
// mutation durable before returning: resumability depends on each outcome
// being on disk before the next URL is attempted.
type URLStore interface {
	// Load reads persisted state. Missing stores initialize empty; an
	// unparseable store is fatal and surfaces as *urlstore.CorruptionError.
	Load(ctx context.Context) error
	// AddDiscovered merges one topic's URLs into the discovered set and
	// persists it. URLs already discovered keep their insertion position but
	// take the new topic attribution (last topic wins). Returns the number
	// of URLs seen for the first time.
	AddDiscovered(ctx context.Context, topic string, urls []string) (int, error)
	// MarkCompleted records a success and persists both terminal sets.
	// A URL that is already terminal is left untouched.
	MarkCompleted(ctx context.Context, result PageResult) error
	// MarkFailed records a failure reason and persists both terminal sets.
	// A URL that is already terminal is left untouched.
	MarkFailed(ctx context.Context, url, reason string) error
	// Pending returns discovered minus terminal, in discovery insertion order.
	Pending(ctx context.Context) ([]Target, error)
	// Counts reports current set sizes.
	Counts(ctx context.Context) (Counts, error)
}

// Searcher returns candidate page URLs for a topic, at most limit of them.
// Returning fewer than limit is normal, not an error.
type Searcher interface {
	Search(ctx context.Context, topic string, limit int) ([]string, error)
}

// Fetcher fetches a URL and returns the raw body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Extractor turns fetched markup into a page result.
type Extractor interface {
	Extract(url string, body []byte) (PageResult, error)
}

// DatasetWriter appends one record to the durable output sequence.
type DatasetWriter interface {
	Append(record PageResult) error
}

// Processor works through targets and streams exactly one Outcome per target.
// The returned channel is closed when every target has an outcome or the
// context is canceled, whichever comes first.
type Processor interface {
	Process(ctx context.Context, targets []Target) <-chan Outcome
}

// Pauser abstracts interruptible sleeps so tests run without real timers.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
