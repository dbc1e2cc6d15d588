// Package urlstore defines the shared pieces of the persistent URL store
// implementations: canonical state file names and the corruption error that
// makes an unreadable store fatal.
//
// The store contract itself is harvest.URLStore; implementations live in the
// file and memory subpackages.
package urlstore

import "fmt"

// State file names, rooted in the state directory.
const (
	DiscoveredFile = "discovered_urls.json"
	CompletedFile  = "completed_urls.json"
	FailedFile     = "failed_urls.json"
)

// CorruptionError reports a state file that exists but cannot be parsed as
// its expected mapping shape. Callers must treat it as fatal: continuing
// would silently re-scrape completed work or lose recorded failures.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("state file %s is corrupted: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }
