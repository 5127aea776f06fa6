// Package inmemory provides an in-memory implementation of the storage
// contract. It backs the orchestrator tests and local development runs;
// data is lost on process exit.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/dvloznov/bankfeed/internal/domain"
	"github.com/dvloznov/bankfeed/internal/storage"
)

type accountState struct {
	active bool
	data   []byte
}

type storedTransaction struct {
	tx       domain.Transaction
	inserted time.Time
}

// Store is an in-memory implementation of storage.Store. It is safe for
// concurrent use and applies the same rolling retention window as the
// document store: records older than the window stop matching.
type Store struct {
	mu           sync.RWMutex
	window       time.Duration
	now          func() time.Time
	accounts     map[domain.AccountRef]*accountState
	transactions []storedTransaction
}

// NewStore creates an in-memory store with the given retention window.
func NewStore(window time.Duration) *Store {
	return &Store{
		window:   window,
		now:      time.Now,
		accounts: make(map[domain.AccountRef]*accountState),
	}
}

// SetNow replaces the store's clock. Tests use it to age records past
// the retention window.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// IsAccountEnabled implements storage.AccountStore.
func (s *Store) IsAccountEnabled(ctx context.Context, provider, account string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.accounts[domain.AccountRef{Provider: provider, Account: account}]
	if !ok {
		return false, nil
	}
	return state.active, nil
}

// EnableAccount implements storage.AccountStore.
func (s *Store) EnableAccount(ctx context.Context, provider, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsert(provider, account).active = true
	return nil
}

// DisableAccount implements storage.AccountStore.
func (s *Store) DisableAccount(ctx context.Context, provider, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsert(provider, account).active = false
	return nil
}

// AccountData implements storage.AccountStore. Disabled accounts report
// no data even when a blob is stored.
func (s *Store) AccountData(ctx context.Context, provider, account string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.accounts[domain.AccountRef{Provider: provider, Account: account}]
	if !ok || !state.active || state.data == nil {
		return nil, nil
	}

	// Copy out to keep callers from mutating stored state.
	data := make([]byte, len(state.data))
	copy(data, state.data)
	return data, nil
}

// UpdateAccountData implements storage.AccountStore.
func (s *Store) UpdateAccountData(ctx context.Context, provider, account string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.upsert(provider, account).data = stored
	return nil
}

// TransactionExists implements storage.TransactionStore. Records older
// than the retention window do not match.
func (s *Store) TransactionExists(ctx context.Context, tx domain.Transaction) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-s.window)
	for _, rec := range s.transactions {
		if rec.inserted.After(cutoff) && rec.tx.Equal(tx) {
			return true, nil
		}
	}
	return false, nil
}

// StoreTransaction implements storage.TransactionStore.
func (s *Store) StoreTransaction(ctx context.Context, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = append(s.transactions, storedTransaction{
		tx:       tx,
		inserted: s.now(),
	})
	return nil
}

// TransactionCount returns the number of retained records. Used by tests.
func (s *Store) TransactionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-s.window)
	count := 0
	for _, rec := range s.transactions {
		if rec.inserted.After(cutoff) {
			count++
		}
	}
	return count
}

// upsert returns the state record for the account, creating it if absent.
// Callers must hold the write lock.
func (s *Store) upsert(provider, account string) *accountState {
	ref := domain.AccountRef{Provider: provider, Account: account}
	state, ok := s.accounts[ref]
	if !ok {
		state = &accountState{}
		s.accounts[ref] = state
	}
	return state
}

// Ensure Store implements the full store surface.
var _ storage.Store = (*Store)(nil)
