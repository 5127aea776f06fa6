package domain

import (
	"strings"
	"time"
)

// Transaction represents one observed bank transaction, normalized by the
// producing connector. This is a domain struct, not a storage document;
// the storage layer maps it into its own persisted form.
//
// A Transaction has no synthetic ID: its identity is the value of all of
// its fields. Two transactions with identical field values are the same
// event, which is what the dedup pass relies on.
type Transaction struct {
	Provider string    // connector identifier, e.g. "plaid"
	Account  string    // account name as configured
	Date     time.Time // booking date, normalized to midnight UTC
	Amount   string    // canonical decimal string, e.g. "-12.50"

	CounterpartyBankCode string
	CounterpartyIBAN     string
	CounterpartyName     string

	Purpose         string // free-text purpose / reference line
	BeneficiaryName string
}

// Ref returns the account identity the transaction was observed on.
func (t Transaction) Ref() AccountRef {
	return AccountRef{Provider: t.Provider, Account: t.Account}
}

// Key returns a deterministic composite key over every field. It is used
// for in-run candidate sets; persisted dedup uses a field-by-field match
// against the store instead.
func (t Transaction) Key() string {
	return strings.Join([]string{
		t.Provider,
		t.Account,
		t.Date.UTC().Format(time.RFC3339),
		t.Amount,
		t.CounterpartyBankCode,
		t.CounterpartyIBAN,
		t.CounterpartyName,
		t.Purpose,
		t.BeneficiaryName,
	}, "\x1f")
}

// Equal reports whether two transactions are the same event, i.e. all
// fields match. Dates compare by instant, not by location.
func (t Transaction) Equal(other Transaction) bool {
	return t.Provider == other.Provider &&
		t.Account == other.Account &&
		t.Date.Equal(other.Date) &&
		t.Amount == other.Amount &&
		t.CounterpartyBankCode == other.CounterpartyBankCode &&
		t.CounterpartyIBAN == other.CounterpartyIBAN &&
		t.CounterpartyName == other.CounterpartyName &&
		t.Purpose == other.Purpose &&
		t.BeneficiaryName == other.BeneficiaryName
}

// AccountRef is the stable (provider, account) key for all per-account
// state in the store.
type AccountRef struct {
	Provider string
	Account  string
}

// String returns the "provider.account" form used in log messages.
func (r AccountRef) String() string {
	return r.Provider + "." + r.Account
}

// Day normalizes a timestamp to its calendar date at midnight UTC, the
// canonical form for Transaction.Date.
func Day(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
