// Package storage defines the persistence contract the orchestrator and
// connectors operate against, and its MongoDB implementation. An
// in-memory implementation for tests and local development lives in the
// inmemory subpackage.
package storage

import (
	"context"

	"github.com/dvloznov/bankfeed/internal/domain"
)

// AccountStore persists per-account enablement and the opaque
// provider-specific auxiliary state blob.
type AccountStore interface {
	// IsAccountEnabled reports whether polling and notification are
	// permitted for the account. Accounts with no record yet are
	// disabled.
	IsAccountEnabled(ctx context.Context, provider, account string) (bool, error)

	// EnableAccount marks the account active. Idempotent upsert.
	EnableAccount(ctx context.Context, provider, account string) error

	// DisableAccount marks the account inactive. Idempotent upsert.
	DisableAccount(ctx context.Context, provider, account string) error

	// AccountData returns the auxiliary state blob for the account, or
	// nil if the account is disabled or has no stored state. The blob is
	// meaningful only to the owning connector.
	AccountData(ctx context.Context, provider, account string) ([]byte, error)

	// UpdateAccountData replaces the auxiliary state blob.
	UpdateAccountData(ctx context.Context, provider, account string, data []byte) error
}

// TransactionStore persists observed transactions for deduplication.
// Records expire after the monitoring window, so dedup protects against
// re-notification within that rolling window only.
type TransactionStore interface {
	// TransactionExists checks for a stored record with exactly the same
	// field values (content equality, no synthetic ID).
	TransactionExists(ctx context.Context, tx domain.Transaction) (bool, error)

	// StoreTransaction inserts the transaction with a store-assigned
	// insertion timestamp.
	StoreTransaction(ctx context.Context, tx domain.Transaction) error
}

// Store is the full persistence surface of the process.
type Store interface {
	AccountStore
	TransactionStore
}
