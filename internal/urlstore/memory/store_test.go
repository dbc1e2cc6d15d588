package memory

import (
	"context"
	"testing"

	"github.com/harvestlab/topic-harvester/internal/harvest"
)

func TestStoreContract(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	added, err := store.AddDiscovered(ctx, "topic-a", []string{"https://x.example", "https://y.example"})
	if err != nil || added != 2 {
		t.Fatalf("AddDiscovered() = %d, %v", added, err)
	}
	added, err = store.AddDiscovered(ctx, "topic-b", []string{"https://y.example"})
	if err != nil || added != 0 {
		t.Fatalf("re-add should not count: added=%d err=%v", added, err)
	}

	if err := store.MarkCompleted(ctx, harvest.PageResult{URL: "https://x.example", Title: "X"}); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	if err := store.MarkFailed(ctx, "https://x.example", "ignored, already completed"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}

	pending, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 1 || pending[0].URL != "https://y.example" || pending[0].Topic != "topic-b" {
		t.Fatalf("unexpected pending: %+v", pending)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	want := harvest.Counts{Discovered: 2, Completed: 1, Failed: 0, Pending: 1}
	if counts != want {
		t.Fatalf("Counts() = %+v, want %+v", counts, want)
	}

	if _, ok := store.Failed()["https://x.example"]; ok {
		t.Fatal("completed URL must not appear in the failed set")
	}
	if got := store.Completed()["https://x.example"].Title; got != "X" {
		t.Fatalf("completed record not preserved: %q", got)
	}
}

func TestStoreCanceledContext(t *testing.T) {
	t.Parallel()

	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.AddDiscovered(ctx, "t", []string{"https://x.example"}); err == nil {
		t.Fatal("expected context error")
	}
	if _, err := store.Pending(ctx); err == nil {
		t.Fatal("expected context error")
	}
}
