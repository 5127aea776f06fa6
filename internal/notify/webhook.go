package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/dvloznov/bankfeed/internal/domain"
	"github.com/dvloznov/bankfeed/internal/logger"
)

const webhookTimeout = 10 * time.Second

// WebhookNotifier POSTs events as JSON to each configured endpoint.
// Delivery is independent per endpoint and per event; a non-2xx status
// or transport error is logged and skipped.
type WebhookNotifier struct {
	endpoints []string
	client    *http.Client
}

// NewWebhookNotifier creates a webhook notifier for the given endpoint
// URLs. The HTTP client is shared across all deliveries.
func NewWebhookNotifier(endpoints []string) *WebhookNotifier {
	return &WebhookNotifier{
		endpoints: endpoints,
		client:    &http.Client{Timeout: webhookTimeout},
	}
}

// NotifyTransactions implements Notifier.
func (w *WebhookNotifier) NotifyTransactions(ctx context.Context, txs []domain.Transaction) {
	for _, tx := range txs {
		w.deliver(ctx, transactionEvent(tx))
	}
}

// NotifyFetchFailure implements Notifier.
func (w *WebhookNotifier) NotifyFetchFailure(ctx context.Context, ref domain.AccountRef) {
	w.deliver(ctx, failureEvent(ref))
}

func (w *WebhookNotifier) deliver(ctx context.Context, event Event) {
	log := logger.FromContext(ctx)

	body, err := json.Marshal(event)
	if err != nil {
		log.Warn().Err(err).Str("event", string(event.Type)).Msg("Failed to encode event")
		return
	}

	for _, endpoint := range w.endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			log.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to build webhook request")
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			log.Warn().
				Err(err).
				Str("endpoint", endpoint).
				Str("event", string(event.Type)).
				Msg("Could not reach endpoint")
			continue
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode >= 400 {
			log.Warn().
				Str("endpoint", endpoint).
				Str("event", string(event.Type)).
				Int("status", resp.StatusCode).
				Msg("Endpoint rejected event")
		}
	}
}

var _ Notifier = (*WebhookNotifier)(nil)
