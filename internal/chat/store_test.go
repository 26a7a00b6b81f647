package chat

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/jkaninda/mwito/internal/llm"
)

func TestGetOrCreateOwnership(t *testing.T) {
	s := NewInMemoryHistoryStore()
	ctx := context.Background()
	convID := uuid.New()

	if _, err := s.GetOrCreate(ctx, "alice", convID); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.GetOrCreate(ctx, "alice", convID); err != nil {
		t.Fatalf("owner re-open: %v", err)
	}
	if _, err := s.GetOrCreate(ctx, "bob", convID); err == nil {
		t.Fatal("another user should not open alice's conversation")
	}
}

func TestAppendAndHistory(t *testing.T) {
	s := NewInMemoryHistoryStore()
	ctx := context.Background()
	convID := uuid.New()

	if _, err := s.GetOrCreate(ctx, "alice", convID); err != nil {
		t.Fatal(err)
	}

	msgs := []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
		{Role: llm.RoleUser, Content: "how are you"},
		{Role: llm.RoleAssistant, Content: "fine"},
	}
	if err := s.Append(ctx, convID, msgs); err != nil {
		t.Fatal(err)
	}

	all, err := s.History(ctx, convID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("history length = %d, want 4", len(all))
	}

	// Windowed history keeps the most recent messages.
	recent, err := s.History(ctx, convID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("windowed length = %d, want 2", len(recent))
	}
	if recent[0].Content != "how are you" {
		t.Errorf("window should keep the tail, got %q first", recent[0].Content)
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := NewInMemoryHistoryStore()
	ctx := context.Background()
	convID := uuid.New()

	_, _ = s.GetOrCreate(ctx, "alice", convID)
	_ = s.Append(ctx, convID, []llm.Message{{Role: llm.RoleUser, Content: "original"}})

	hist, _ := s.History(ctx, convID, 0)
	hist[0].Content = "mutated"

	again, _ := s.History(ctx, convID, 0)
	if again[0].Content != "original" {
		t.Error("History should return a copy, not the backing slice")
	}
}

func TestDelete(t *testing.T) {
	s := NewInMemoryHistoryStore()
	ctx := context.Background()
	convID := uuid.New()

	_, _ = s.GetOrCreate(ctx, "alice", convID)
	_ = s.Append(ctx, convID, []llm.Message{{Role: llm.RoleUser, Content: "hi"}})

	if err := s.Delete(ctx, convID); err != nil {
		t.Fatal(err)
	}

	// After deletion the ID is free: another user can claim it.
	if _, err := s.GetOrCreate(ctx, "bob", convID); err != nil {
		t.Fatalf("reclaiming deleted conversation: %v", err)
	}
	hist, err := s.History(ctx, convID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 0 {
		t.Errorf("deleted conversation still has %d messages", len(hist))
	}
}
