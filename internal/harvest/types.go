package harvest

import (
	"net/http"
	"time"
)

// RunPhase represents the lifecycle state of a harvest run.
type RunPhase string

// Run phases, in order. A run never moves backwards.
const (
	PhaseInit        RunPhase = "init"
	PhaseDiscovering RunPhase = "discovering"
	PhaseProcessing  RunPhase = "processing"
	PhaseDone        RunPhase = "done"
)

// PageResult is one successfully extracted page. Its JSON form is exactly
// the dataset record shape and the completed-set value shape.
type PageResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Target is one unit of pending work: a discovered URL plus the topic whose
// search produced it.
type Target struct {
	URL   string
	Topic string
}

// Outcome is the terminal classification of a single fetch attempt. Failures
// never cross this type as errors; they are carried as data so the engine can
// record them and keep going.
type Outcome struct {
	Target   Target
	Failed   bool
	Result   PageResult // populated when !Failed
	Reason   string     // non-empty when Failed
	Status   int        // HTTP status when a response was received, else 0
	Bytes    int64
	Duration time.Duration
}

// Counts reports the sizes of the three URL sets plus the derived pending
// count (discovered minus terminal).
type Counts struct {
	Discovered int
	Completed  int
	Failed     int
	Pending    int
}

// RunSummary aggregates the counters reported when a run reaches DONE.
type RunSummary struct {
	RunID      string
	Topics     int
	Requested  int
	Discovered int // total discovered URLs in the store at run end
	Added      int // URLs newly discovered by this run
	Processed  int // fetch attempts made this run
	Completed  int // successes this run
	Failed     int // failures this run
	Appended   int // dataset records written this run
}

// FetchRequest captures everything needed to fetch one URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the raw result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// BrowserHeaders returns the fixed browser-like header set sent with every
// outbound page fetch. Callers must not mutate the returned map's slices
// without copying.
func BrowserHeaders(userAgent string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Connection", "keep-alive")
	return h
}

// DefaultUserAgent is the Chrome-flavored user agent used when none is
// configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
