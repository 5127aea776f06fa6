package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/bankfeed/internal/domain"
)

type recordedRequest struct {
	event Event
}

// recordingEndpoint is an httptest server capturing delivered events.
type recordingEndpoint struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	server   *httptest.Server
}

func newRecordingEndpoint(t *testing.T, status int) *recordingEndpoint {
	t.Helper()
	e := &recordingEndpoint{status: status}
	e.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			t.Errorf("decoding event: %v", err)
		}
		e.mu.Lock()
		e.requests = append(e.requests, recordedRequest{event: event})
		e.mu.Unlock()
		w.WriteHeader(e.status)
	}))
	t.Cleanup(e.server.Close)
	return e
}

func (e *recordingEndpoint) events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	events := make([]Event, len(e.requests))
	for i, r := range e.requests {
		events[i] = r.event
	}
	return events
}

func TestNotifyTransactionsPayload(t *testing.T) {
	endpoint := newRecordingEndpoint(t, http.StatusOK)
	notifier := NewWebhookNotifier([]string{endpoint.server.URL})

	tx := domain.Transaction{
		Provider:        "plaid",
		Account:         "checking",
		Date:            time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC),
		Amount:          "-42.10",
		Purpose:         "Invoice 2026-113",
		BeneficiaryName: "J. Doe",
	}

	notifier.NotifyTransactions(context.Background(), []domain.Transaction{tx})

	events := endpoint.events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	event := events[0]
	if event.Type != EventNewTransaction {
		t.Errorf("event type = %q, want %q", event.Type, EventNewTransaction)
	}
	if event.ID == "" {
		t.Error("event must carry an ID")
	}
	if _, err := time.Parse(time.RFC3339, event.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC 3339: %v", event.Timestamp, err)
	}

	data, ok := event.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("event data has type %T", event.Data)
	}
	if data["provider"] != "plaid" || data["account"] != "checking" {
		t.Errorf("data identity fields = %v", data)
	}
	if data["amount"] != "-42.10" {
		t.Errorf("data amount = %v, want string \"-42.10\"", data["amount"])
	}
	if data["purpose"] != "Invoice 2026-113" {
		t.Errorf("data purpose = %v", data["purpose"])
	}
}

func TestNotifyFetchFailurePayload(t *testing.T) {
	endpoint := newRecordingEndpoint(t, http.StatusOK)
	notifier := NewWebhookNotifier([]string{endpoint.server.URL})

	notifier.NotifyFetchFailure(context.Background(), domain.AccountRef{Provider: "plaid", Account: "checking"})

	events := endpoint.events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != EventFetchFailure {
		t.Errorf("event type = %q, want %q", events[0].Type, EventFetchFailure)
	}

	data, ok := events[0].Data.(map[string]interface{})
	if !ok {
		t.Fatalf("event data has type %T", events[0].Data)
	}
	if data["provider"] != "plaid" || data["account"] != "checking" {
		t.Errorf("failure data = %v", data)
	}
}

func TestFailingEndpointDoesNotBlockOthers(t *testing.T) {
	failing := newRecordingEndpoint(t, http.StatusInternalServerError)
	healthy := newRecordingEndpoint(t, http.StatusOK)

	// Failing endpoint listed first; delivery to the healthy one must
	// still happen, and the notifier must not panic or error out.
	notifier := NewWebhookNotifier([]string{failing.server.URL, healthy.server.URL})

	tx := domain.Transaction{Provider: "plaid", Account: "checking", Amount: "1.00"}
	notifier.NotifyTransactions(context.Background(), []domain.Transaction{tx})

	if len(healthy.events()) != 1 {
		t.Errorf("healthy endpoint received %d events, want 1", len(healthy.events()))
	}
	if len(failing.events()) != 1 {
		t.Errorf("failing endpoint received %d events, want 1", len(failing.events()))
	}
}

func TestUnreachableEndpointIsRecovered(t *testing.T) {
	healthy := newRecordingEndpoint(t, http.StatusOK)

	notifier := NewWebhookNotifier([]string{"http://127.0.0.1:1/unreachable", healthy.server.URL})
	notifier.NotifyFetchFailure(context.Background(), domain.AccountRef{Provider: "p", Account: "a"})

	if len(healthy.events()) != 1 {
		t.Errorf("healthy endpoint received %d events, want 1", len(healthy.events()))
	}
}

func TestOneEventPerTransaction(t *testing.T) {
	endpoint := newRecordingEndpoint(t, http.StatusOK)
	notifier := NewWebhookNotifier([]string{endpoint.server.URL})

	txs := []domain.Transaction{
		{Provider: "plaid", Account: "checking", Amount: "1.00"},
		{Provider: "plaid", Account: "checking", Amount: "2.00"},
		{Provider: "plaid", Account: "savings", Amount: "3.00"},
	}
	notifier.NotifyTransactions(context.Background(), txs)

	if len(endpoint.events()) != 3 {
		t.Errorf("got %d events, want one per transaction (3)", len(endpoint.events()))
	}
}
