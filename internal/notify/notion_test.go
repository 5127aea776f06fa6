package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/bankfeed/internal/domain"
)

// mockNotionService records created pages and can fail selected calls.
type mockNotionService struct {
	created []notionapi.Properties
	failAt  int // 1-based call index to fail, 0 = never
	calls   int
}

func (m *mockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	m.calls++
	if m.failAt != 0 && m.calls == m.failAt {
		return nil, errors.New("notion unavailable")
	}
	m.created = append(m.created, properties)
	return &notionapi.Page{ID: notionapi.ObjectID("page")}, nil
}

func TestNotionNotifierCreatesPagePerTransaction(t *testing.T) {
	service := &mockNotionService{}
	notifier := NewNotionNotifier(service, "db1")

	txs := []domain.Transaction{
		{
			Provider: "plaid",
			Account:  "checking",
			Date:     time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC),
			Amount:   "-42.10",
			Purpose:  "Invoice 2026-113",
		},
		{
			Provider: "plaid",
			Account:  "savings",
			Date:     time.Date(2026, 8, 13, 0, 0, 0, 0, time.UTC),
			Amount:   "100.00",
		},
	}
	notifier.NotifyTransactions(context.Background(), txs)

	if len(service.created) != 2 {
		t.Fatalf("created %d pages, want 2", len(service.created))
	}

	title, ok := service.created[0]["Purpose"].(notionapi.TitleProperty)
	if !ok || len(title.Title) == 0 {
		t.Fatalf("first page has no title property: %+v", service.created[0])
	}
	if title.Title[0].Text.Content != "Invoice 2026-113" {
		t.Errorf("title = %q", title.Title[0].Text.Content)
	}

	amount, ok := service.created[0]["Amount"].(notionapi.RichTextProperty)
	if !ok || amount.RichText[0].Text.Content != "-42.10" {
		t.Errorf("amount property = %+v", service.created[0]["Amount"])
	}

	// Transaction without purpose or counterparty falls back to the ref.
	title2 := service.created[1]["Purpose"].(notionapi.TitleProperty)
	if title2.Title[0].Text.Content != "plaid.savings" {
		t.Errorf("fallback title = %q", title2.Title[0].Text.Content)
	}
}

func TestNotionNotifierRecoversPerPageFailure(t *testing.T) {
	service := &mockNotionService{failAt: 1}
	notifier := NewNotionNotifier(service, "db1")

	txs := []domain.Transaction{
		{Provider: "plaid", Account: "a", Amount: "1.00"},
		{Provider: "plaid", Account: "b", Amount: "2.00"},
	}
	notifier.NotifyTransactions(context.Background(), txs)

	if len(service.created) != 1 {
		t.Fatalf("created %d pages, want 1 (second must survive first failure)", len(service.created))
	}
	if service.calls != 2 {
		t.Errorf("CreatePage called %d times, want 2", service.calls)
	}
}
