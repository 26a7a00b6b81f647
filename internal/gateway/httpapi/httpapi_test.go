package httpapi

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestParseConversationID(t *testing.T) {
	id, err := parseConversationID("")
	if err != nil {
		t.Fatalf("parseConversationID(\"\") error = %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("empty input should generate a fresh ID")
	}

	want := uuid.New()
	got, err := parseConversationID(want.String())
	if err != nil {
		t.Fatalf("parseConversationID(valid) error = %v", err)
	}
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	if _, err := parseConversationID("not-a-uuid"); err == nil {
		t.Fatal("parseConversationID should reject malformed IDs")
	}
}

func TestNewCorrelationID(t *testing.T) {
	a := newCorrelationID()
	b := newCorrelationID()
	if len(a) != 16 {
		t.Errorf("correlation ID length = %d, want 16", len(a))
	}
	if a == b {
		t.Error("correlation IDs should be unique")
	}
}

func TestEmbeddedChatPage(t *testing.T) {
	page, err := uiFS.ReadFile("ui/index.html")
	if err != nil {
		t.Fatalf("embedded chat page missing: %v", err)
	}
	if !strings.Contains(string(page), "/v1/chat") {
		t.Error("chat page should post to /v1/chat")
	}
}
