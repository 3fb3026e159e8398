package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/foxseedlab/coachcal/internal/webhook"
)

func TestSendBatchSummary_EmptyWebhookURL(t *testing.T) {
	sender := NewHTTPSender("")
	if err := sender.SendBatchSummary(context.Background(), webhook.BatchSummaryPayload{Total: 1}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendBatchSummary_Success(t *testing.T) {
	var got map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if ev := r.Header.Get(EventHeader); ev != "batch.summary" {
			t.Errorf("unexpected event header: %s", ev)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	err := sender.SendBatchSummary(context.Background(), webhook.BatchSummaryPayload{
		RangeStart: "2025-03-10T00:00:00Z",
		RangeEnd:   "2025-03-17T00:00:00Z",
		Total:      2,
		Sent:       1,
		Failed:     []webhook.FailedSession{{SessionID: "S2", Error: "quota exceeded"}},
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got["range_start"] != "2025-03-10T00:00:00Z" || got["total"] != float64(2) || got["sent"] != float64(1) {
		t.Fatalf("unexpected payload: %v", got)
	}
	failed, ok := got["failed"].([]any)
	if !ok || len(failed) != 1 {
		t.Fatalf("unexpected failed list: %v", got["failed"])
	}
	if entry := failed[0].(map[string]any); entry["session_id"] != "S2" || entry["error"] != "quota exceeded" {
		t.Fatalf("unexpected failed entry: %v", entry)
	}
}

func TestSendBatchSummary_EmptyFailedListIsArray(t *testing.T) {
	var raw map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := NewHTTPSender(server.URL).SendBatchSummary(context.Background(), webhook.BatchSummaryPayload{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if string(raw["failed"]) != "[]" {
		t.Fatalf("expected empty array, got %s", raw["failed"])
	}
}

func TestSendBatchSummary_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendBatchSummary(context.Background(), webhook.BatchSummaryPayload{}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestSendBatchSummary_ErrorIncludesResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("receiver paused\n"))
	}))
	defer server.Close()

	err := NewHTTPSender(server.URL).SendBatchSummary(context.Background(), webhook.BatchSummaryPayload{})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "status 503") || !strings.Contains(err.Error(), "receiver paused") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendBatchSummary_BlankURLIsNoop(t *testing.T) {
	if err := NewHTTPSender("   ").SendBatchSummary(context.Background(), webhook.BatchSummaryPayload{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
