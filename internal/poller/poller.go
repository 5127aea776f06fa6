// Package poller drives the init and fetch workflows: it iterates the
// registered connectors, enforces the account enable/disable lifecycle,
// isolates per-account failures, deduplicates observed transactions
// against the store, and hands the novel ones to the notifier.
package poller

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/bankfeed/internal/config"
	"github.com/dvloznov/bankfeed/internal/connector"
	"github.com/dvloznov/bankfeed/internal/domain"
	"github.com/dvloznov/bankfeed/internal/logger"
	"github.com/dvloznov/bankfeed/internal/notify"
	"github.com/dvloznov/bankfeed/internal/storage"
)

// Poller orchestrates the init and fetch workflows over all configured
// accounts. Each workflow run constructs fresh connectors through the
// registry; connector instances are never reused across runs.
type Poller struct {
	registry *connector.Registry
	cfg      *config.Config
	store    storage.Store
	notifier notify.Notifier
}

// New creates a Poller.
func New(registry *connector.Registry, cfg *config.Config, store storage.Store, notifier notify.Notifier) *Poller {
	return &Poller{
		registry: registry,
		cfg:      cfg,
		store:    store,
		notifier: notifier,
	}
}

// Init (re)initializes accounts: every configured account that is not
// already enabled gets a Setup call. Setup failures propagate to the
// caller since they need operator attention (wrong credentials, an
// unanswered authentication challenge); the account stays in its prior
// state.
func (p *Poller) Init(ctx context.Context) error {
	log := logger.FromContext(ctx)

	connectors, err := p.registry.Connectors(ctx, p.cfg, p.store)
	if err != nil {
		return err
	}

	for _, c := range connectors {
		ref := connector.Ref(c)
		accountLog := logger.WithAccount(log, ref.Provider, ref.Account)

		enabled, err := p.store.IsAccountEnabled(ctx, ref.Provider, ref.Account)
		if err != nil {
			return fmt.Errorf("Init: %w", err)
		}
		if enabled {
			accountLog.Info().Msg("Account already enabled, skipping setup")
			continue
		}

		setupCtx, cancel := context.WithTimeout(ctx, p.cfg.PollTimeout)
		err = c.Setup(setupCtx)
		cancel()
		if err != nil {
			return &connector.SetupError{Ref: ref, Err: err}
		}

		accountLog.Info().Msg("Account initialized")
	}

	return nil
}

// Fetch polls all enabled accounts, deduplicates the collected
// transactions against the store and notifies the novel ones as one
// batch after the polling pass. A single account's poll failure
// deactivates that account and never aborts polling of the remaining
// accounts; store failures abort the whole run since dedup integrity
// cannot be guaranteed without the store.
func (p *Poller) Fetch(ctx context.Context) error {
	log := logger.FromContext(ctx)

	connectors, err := p.registry.Connectors(ctx, p.cfg, p.store)
	if err != nil {
		return err
	}

	candidates, err := p.pollAll(ctx, connectors)
	if err != nil {
		return fmt.Errorf("Fetch: %w", err)
	}

	novel, err := p.persistNovel(ctx, candidates)
	if err != nil {
		return fmt.Errorf("Fetch: %w", err)
	}

	if len(novel) > 0 {
		p.notifier.NotifyTransactions(ctx, novel)
	}

	log.Info().
		Int("accounts", len(connectors)).
		Int("collected", len(candidates)).
		Int("novel", len(novel)).
		Msg("Fetch completed")

	return nil
}

// pollAll polls distinct accounts concurrently under a bounded worker
// pool. Accounts are fully independent after construction; each worker
// only touches its own account's keys in the store.
func (p *Poller) pollAll(ctx context.Context, connectors []connector.Connector) ([]domain.Transaction, error) {
	workers := p.cfg.PollWorkers
	if workers > len(connectors) {
		workers = len(connectors)
	}

	var (
		mu         sync.Mutex
		candidates []domain.Transaction
		firstErr   error
	)

	jobs := make(chan connector.Connector)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				txs, err := p.pollOne(ctx, c)
				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				candidates = append(candidates, txs...)
				mu.Unlock()
			}
		}()
	}

	for _, c := range connectors {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return candidates, nil
}

// pollOne polls a single account. Poll failures are recovered here: the
// account is deactivated, a failure event is emitted, and polling of
// other accounts continues. The returned error is reserved for store
// failures, which must abort the run.
func (p *Poller) pollOne(ctx context.Context, c connector.Connector) ([]domain.Transaction, error) {
	ref := connector.Ref(c)
	log := logger.WithAccount(logger.FromContext(ctx), ref.Provider, ref.Account)

	// Enablement is read from the store on every run; never cached
	// in-process, so a disable from a previous run always sticks.
	enabled, err := p.store.IsAccountEnabled(ctx, ref.Provider, ref.Account)
	if err != nil {
		return nil, err
	}
	if !enabled {
		log.Info().Msg("Skipping inactive account")
		return nil, nil
	}

	pollCtx, cancel := context.WithTimeout(ctx, p.cfg.PollTimeout)
	txs, err := c.Poll(pollCtx)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to poll transactions, deactivating account")
		if derr := p.store.DisableAccount(ctx, ref.Provider, ref.Account); derr != nil {
			return nil, derr
		}
		p.notifier.NotifyFetchFailure(ctx, ref)
		return nil, nil
	}

	log.Info().Int("transactions", len(txs)).Msg("Polled account")
	return txs, nil
}

// persistNovel runs the single dedup/store pass over the fixed candidate
// set collected by the polling loop and returns the novel transactions.
func (p *Poller) persistNovel(ctx context.Context, candidates []domain.Transaction) ([]domain.Transaction, error) {
	seen := make(map[string]bool, len(candidates))
	var novel []domain.Transaction

	for _, tx := range candidates {
		// Collapse in-run duplicates before consulting the store.
		key := tx.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		exists, err := p.store.TransactionExists(ctx, tx)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		if err := p.store.StoreTransaction(ctx, tx); err != nil {
			return nil, err
		}
		novel = append(novel, tx)
	}

	return novel, nil
}
