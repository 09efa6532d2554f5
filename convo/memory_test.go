package convo

import (
	"context"
	"testing"
)

func TestMemoryStoreUpsertAndFind(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tr := Transcript{
		{Role: RoleSystem, Content: "greeting"},
		{Role: RoleAssistant, Content: "What is your age?"},
	}
	if err := store.Upsert(ctx, 42, tr); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, found, err := store.Find(ctx, 42)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !found {
		t.Fatal("expected record for chat 42")
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got))
	}
	if got[0].Role != RoleSystem || got[1].Content != "What is your age?" {
		t.Fatalf("unexpected transcript: %+v", got)
	}
}

func TestMemoryStoreUpsertReplaces(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := Transcript{{Role: RoleUser, Content: "hi"}}
	second := Transcript{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	}
	if err := store.Upsert(ctx, 7, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Upsert(ctx, 7, second); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, found, _ := store.Find(ctx, 7)
	if !found || len(got) != 2 {
		t.Fatalf("expected replaced transcript of 2 turns, got found=%v len=%d", found, len(got))
	}
	if store.Len() != 1 {
		t.Fatalf("expected single record, got %d", store.Len())
	}
}

func TestMemoryStoreFindMissing(t *testing.T) {
	store := NewMemoryStore()

	got, found, err := store.Find(context.Background(), 99)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found || got != nil {
		t.Fatalf("expected no record, got found=%v transcript=%+v", found, got)
	}
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tr := Transcript{{Role: RoleUser, Content: "original"}}
	if err := store.Upsert(ctx, 1, tr); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Mutating the caller's slice must not leak into the store.
	tr[0].Content = "mutated"
	got, _, _ := store.Find(ctx, 1)
	if got[0].Content != "original" {
		t.Fatalf("store shares memory with caller: %q", got[0].Content)
	}

	// Mutating a returned transcript must not leak either.
	got[0].Content = "mutated again"
	again, _, _ := store.Find(ctx, 1)
	if again[0].Content != "original" {
		t.Fatalf("store leaked returned slice: %q", again[0].Content)
	}
}
