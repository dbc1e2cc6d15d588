package harvest

import "context"

type runIDKey struct{}

// WithRunID returns a context carrying the run's 16-byte UUID so components
// downstream of the engine can tag their progress events.
func WithRunID(ctx context.Context, id [16]byte) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom extracts the run UUID placed by WithRunID, reporting presence.
func RunIDFrom(ctx context.Context) ([16]byte, bool) {
	id, ok := ctx.Value(runIDKey{}).([16]byte)
	return id, ok
}
