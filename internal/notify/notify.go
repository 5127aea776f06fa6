// Package notify delivers structured events for novel transactions and
// poll failures to the configured sinks. Delivery is best-effort: a
// failing sink, endpoint or event is logged and skipped, and never
// fails the workflow that emitted it.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/bankfeed/internal/domain"
)

// EventType tags the kind of an emitted event.
type EventType string

const (
	// EventNewTransaction carries one newly discovered transaction.
	EventNewTransaction EventType = "transactions.new"
	// EventFetchFailure reports a failed poll for one account.
	EventFetchFailure EventType = "fetch.failure"
)

// Notifier is the delivery surface the orchestrator hands events to.
// Implementations must recover all delivery failures internally.
type Notifier interface {
	// NotifyTransactions delivers one transactions.new event per
	// transaction in the batch.
	NotifyTransactions(ctx context.Context, txs []domain.Transaction)

	// NotifyFetchFailure delivers a fetch.failure event for the account.
	NotifyFetchFailure(ctx context.Context, ref domain.AccountRef)
}

// Event is the envelope shared by all sinks.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// transactionData is the transactions.new payload.
type transactionData struct {
	Provider             string `json:"provider"`
	Account              string `json:"account"`
	Date                 string `json:"date"`
	Amount               string `json:"amount"`
	CounterpartyBankCode string `json:"counterparty_bank_code"`
	CounterpartyIBAN     string `json:"counterparty_iban"`
	CounterpartyName     string `json:"counterparty_name"`
	Purpose              string `json:"purpose"`
	BeneficiaryName      string `json:"beneficiary_name"`
}

// failureData is the fetch.failure payload.
type failureData struct {
	Provider string `json:"provider"`
	Account  string `json:"account"`
}

func newEvent(kind EventType, data interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      kind,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
}

func transactionEvent(tx domain.Transaction) Event {
	return newEvent(EventNewTransaction, transactionData{
		Provider:             tx.Provider,
		Account:              tx.Account,
		Date:                 tx.Date.UTC().Format(time.RFC3339),
		Amount:               tx.Amount,
		CounterpartyBankCode: tx.CounterpartyBankCode,
		CounterpartyIBAN:     tx.CounterpartyIBAN,
		CounterpartyName:     tx.CounterpartyName,
		Purpose:              tx.Purpose,
		BeneficiaryName:      tx.BeneficiaryName,
	})
}

func failureEvent(ref domain.AccountRef) Event {
	return newEvent(EventFetchFailure, failureData{
		Provider: ref.Provider,
		Account:  ref.Account,
	})
}

// Multi fans events out to several sinks. Sinks are independent; one
// sink's failures do not affect the others.
type Multi []Notifier

// NotifyTransactions implements Notifier.
func (m Multi) NotifyTransactions(ctx context.Context, txs []domain.Transaction) {
	for _, n := range m {
		n.NotifyTransactions(ctx, txs)
	}
}

// NotifyFetchFailure implements Notifier.
func (m Multi) NotifyFetchFailure(ctx context.Context, ref domain.AccountRef) {
	for _, n := range m {
		n.NotifyFetchFailure(ctx, ref)
	}
}

var _ Notifier = (Multi)(nil)
