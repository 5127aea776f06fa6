package notify

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/bankfeed/internal/domain"
	"github.com/dvloznov/bankfeed/internal/logger"
)

// NotionService defines the interface for interacting with the Notion API.
// This interface enables mocking and testing of Notion operations.
type NotionService interface {
	// CreatePage creates a new page in a Notion database with the given properties.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
}

// NotionClient is the concrete implementation of NotionService using the official Notion SDK.
type NotionClient struct {
	client *notionapi.Client
}

// NewNotionClient creates a new NotionClient with the provided API token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		client: notionapi.NewClient(notionapi.Token(token)),
	}
}

// CreatePage creates a new page in a Notion database with the given properties.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	page, err := n.client.Page.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}

	return page, nil
}

// NotionNotifier mirrors novel transactions into a Notion database, one
// page per transaction. Poll failures are not mirrored; they only go to
// the webhook endpoints.
type NotionNotifier struct {
	service    NotionService
	databaseID string
}

// NewNotionNotifier creates a Notion sink writing into the given database.
func NewNotionNotifier(service NotionService, databaseID string) *NotionNotifier {
	return &NotionNotifier{
		service:    service,
		databaseID: databaseID,
	}
}

// NotifyTransactions implements Notifier. A failed page creation is
// logged and the remaining transactions are still written.
func (n *NotionNotifier) NotifyTransactions(ctx context.Context, txs []domain.Transaction) {
	log := logger.FromContext(ctx)

	var created int
	for _, tx := range txs {
		props := transactionToNotionProperties(tx)

		page, err := n.service.CreatePage(ctx, n.databaseID, props)
		if err != nil {
			log.Warn().
				Err(err).
				Str("provider", tx.Provider).
				Str("account", tx.Account).
				Msg("Failed to create Notion page")
			continue
		}

		log.Info().
			Str("provider", tx.Provider).
			Str("account", tx.Account).
			Str("page_id", string(page.ID)).
			Msg("Created Notion page")
		created++
	}

	if created > 0 {
		log.Info().Int("created", created).Msg("Mirrored transactions to Notion")
	}
}

// NotifyFetchFailure implements Notifier.
func (n *NotionNotifier) NotifyFetchFailure(ctx context.Context, ref domain.AccountRef) {}

// transactionToNotionProperties converts a transaction to Notion page
// properties. The title carries the purpose line so the database view
// stays readable; the amount stays a string to preserve exactness.
func transactionToNotionProperties(tx domain.Transaction) notionapi.Properties {
	title := tx.Purpose
	if title == "" {
		title = tx.CounterpartyName
	}
	if title == "" {
		title = tx.Ref().String()
	}

	props := notionapi.Properties{
		"Purpose": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: title,
					},
				},
			},
		},
		"Provider": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Provider,
			},
		},
		"Account": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Account,
			},
		},
		"Amount": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.Amount,
					},
				},
			},
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(tx.Date)
					return &d
				}(),
			},
		},
	}

	if tx.CounterpartyName != "" {
		props["Counterparty"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.CounterpartyName,
					},
				},
			},
		}
	}

	if tx.CounterpartyIBAN != "" {
		props["Counterparty IBAN"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.CounterpartyIBAN,
					},
				},
			},
		}
	}

	if tx.BeneficiaryName != "" {
		props["Beneficiary"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.BeneficiaryName,
					},
				},
			},
		}
	}

	return props
}

var _ Notifier = (*NotionNotifier)(nil)
