// Package connector defines the capability interface provider
// implementations expose, and the registry that decouples the
// orchestrator from the set of compiled-in providers.
package connector

import (
	"context"

	"github.com/dvloznov/bankfeed/internal/config"
	"github.com/dvloznov/bankfeed/internal/domain"
	"github.com/dvloznov/bankfeed/internal/storage"
)

// Connector talks to one external account source. Instances are
// stateful and single-use per workflow run: each init/fetch run
// constructs fresh connectors through the registry, because some
// provider sessions are consumed by a single lifecycle call.
type Connector interface {
	// Setup performs one-time or periodic re-authentication. On success
	// it persists any new auxiliary data and enables the account before
	// returning. It may block on a single out-of-band prompt/response
	// round trip (e.g. a one-time code).
	Setup(ctx context.Context) error

	// Poll fetches all transactions within the monitoring look-back
	// window for the bound account, applying any configured sub-account
	// exclusion filter. It persists refreshed auxiliary state before
	// returning. On an unrecoverable error it returns the error and no
	// partial data.
	Poll(ctx context.Context) ([]domain.Transaction, error)

	// Name returns the account identifier used as part of the state key.
	Name() string

	// Provider returns the provider identifier used as part of the
	// state key.
	Provider() string
}

// Factory constructs one Connector per account configured under the
// provider, binding each to its credentials and any previously stored
// auxiliary data. Construction must not poll; at most it may build
// client handles.
type Factory func(ctx context.Context, cfg *config.Config, store storage.AccountStore) ([]Connector, error)

// Registration couples a provider identifier with its factory.
type Registration struct {
	ID      string
	Factory Factory
}

// Ref returns the (provider, account) identity of a connector.
func Ref(c Connector) domain.AccountRef {
	return domain.AccountRef{Provider: c.Provider(), Account: c.Name()}
}
