package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeLLM returns a server that answers every chat completion with content.
func fakeLLM(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("expected system+user messages, got %d", len(req.Messages))
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestNotConfigured(t *testing.T) {
	c := NewClient("", "")
	if c.IsConfigured() {
		t.Fatal("empty client reports configured")
	}
	if _, err := c.Chat(context.Background(), "sys", "hi"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestDraftOutreachEmail(t *testing.T) {
	srv := fakeLLM(t, `{"subject":"Introducing Hanbit K-beauty serums","body":"Dear Pacific Beauty team, ..."}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	draft, err := c.DraftOutreachEmail(context.Background(), "Pacific Beauty Trading", "US", "vegan serums, sheet masks")
	if err != nil {
		t.Fatalf("DraftOutreachEmail: %v", err)
	}
	if draft.Subject != "Introducing Hanbit K-beauty serums" {
		t.Errorf("Subject = %q", draft.Subject)
	}
	if draft.Body == "" {
		t.Error("empty body")
	}
}

func TestDraftOutreachEmailRejectsIncomplete(t *testing.T) {
	srv := fakeLLM(t, `{"subject":"","body":""}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	if _, err := c.DraftOutreachEmail(context.Background(), "X", "US", "serums"); err == nil {
		t.Fatal("expected error for empty draft")
	}
}

func TestExtractFields(t *testing.T) {
	srv := fakeLLM(t, `{
		"buyerName": "Pacific Beauty Trading LLC",
		"incoterms": "FOB",
		"currency": "USD",
		"items": [{"sku": "KB-SERUM-30", "qty": 5000, "unitPrice": 3.5, "amount": 17500}]
	}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	fields, err := c.ExtractFields(context.Background(), "quote text pasted from an email")
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	if fields.BuyerName != "Pacific Beauty Trading LLC" {
		t.Errorf("BuyerName = %q", fields.BuyerName)
	}
	if len(fields.Items) != 1 || fields.Items[0].SKU != "KB-SERUM-30" {
		t.Errorf("Items = %+v", fields.Items)
	}
}

func TestRegulatoryChecklist(t *testing.T) {
	srv := fakeLLM(t, `{"items":[{"name":"MoCRA facility registration","status":"pending"},{"name":"Product listing","status":"pending"}]}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	items, err := c.RegulatoryChecklist(context.Background(), "US")
	if err != nil {
		t.Fatalf("RegulatoryChecklist: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Status != "pending" {
		t.Errorf("Status = %q", items[0].Status)
	}
}

func TestChatErrorPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad key"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	if _, err := c.Chat(context.Background(), "sys", "hi"); err == nil {
		t.Fatal("expected error from API error body")
	}
}
