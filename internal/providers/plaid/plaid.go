// Package plaid implements the Plaid provider connector. One connector
// is built per configured item; Setup runs the single-round-trip Link
// token exchange and Poll pulls the monitoring window's transactions.
package plaid

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	plaidapi "github.com/plaid/plaid-go/v41/plaid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/bankfeed/internal/config"
	"github.com/dvloznov/bankfeed/internal/connector"
	"github.com/dvloznov/bankfeed/internal/domain"
	"github.com/dvloznov/bankfeed/internal/logger"
	"github.com/dvloznov/bankfeed/internal/storage"
)

// ProviderID is the registry identifier and config section name.
const ProviderID = "plaid"

const (
	plaidDateLayout = "2006-01-02"
	pageSize        = 500
)

// Registration returns this provider's registry entry. Wired into the
// registry at process start by the CLI.
func Registration() connector.Registration {
	return connector.Registration{ID: ProviderID, Factory: newConnectors}
}

func newConnectors(ctx context.Context, cfg *config.Config, store storage.AccountStore) ([]connector.Connector, error) {
	var section Config
	if err := cfg.DecodeProvider(ProviderID, &section); err != nil {
		return nil, err
	}
	if err := section.validate(); err != nil {
		return nil, err
	}

	secret, err := section.resolveSecret()
	if err != nil {
		return nil, err
	}

	client := newClient(section.ClientID, secret, section.Environment)

	// Iterate accounts in name order so construction is deterministic.
	names := make([]string, 0, len(section.Accounts))
	for name := range section.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)

	connectors := make([]connector.Connector, 0, len(names))
	for _, name := range names {
		account := section.Accounts[name]

		var st *state
		raw, err := store.AccountData(ctx, ProviderID, name)
		if err != nil {
			return nil, err
		}
		if raw != nil {
			st, err = decodeState(raw)
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", name, err)
			}
		}

		connectors = append(connectors, &Connector{
			name:        name,
			exclude:     account.Exclude,
			country:     section.country(),
			monitorDays: cfg.MonitorDays,
			store:       store,
			client:      client,
			state:       st,
			in:          os.Stdin,
			out:         os.Stdout,
		})
	}

	return connectors, nil
}

func newClient(clientID, secret, env string) *plaidapi.APIClient {
	configuration := plaidapi.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)

	switch env {
	case "production":
		configuration.UseEnvironment(plaidapi.Production)
	default:
		configuration.UseEnvironment(plaidapi.Sandbox)
	}

	return plaidapi.NewAPIClient(configuration)
}

// Connector polls one Plaid item. Instances are built fresh for every
// workflow run; the stored auxiliary blob carries the access token
// obtained during Setup.
type Connector struct {
	name        string
	exclude     []string
	country     string
	monitorDays int
	store       storage.AccountStore
	client      *plaidapi.APIClient
	state       *state

	// Prompt streams, swappable in tests.
	in  io.Reader
	out io.Writer
}

// Name implements connector.Connector.
func (c *Connector) Name() string { return c.name }

// Provider implements connector.Connector.
func (c *Connector) Provider() string { return ProviderID }

// Setup implements connector.Connector. It creates a Link token, asks
// the operator to complete the Link flow out of band and paste the
// resulting public token (one prompt/response round trip), exchanges it
// for an access token, persists the new auxiliary state and enables the
// account.
func (c *Connector) Setup(ctx context.Context) error {
	user := plaidapi.LinkTokenCreateRequestUser{
		ClientUserId: c.name,
	}
	request := plaidapi.NewLinkTokenCreateRequest(
		"bankfeed",
		"en",
		[]plaidapi.CountryCode{plaidapi.CountryCode(c.country)},
	)
	request.SetUser(user)
	request.SetProducts([]plaidapi.Products{plaidapi.PRODUCTS_TRANSACTIONS})

	linkResp, _, err := c.client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return fmt.Errorf("Setup: creating link token: %w", err)
	}

	fmt.Fprintf(c.out, "Complete the Plaid Link flow for account %q with link token:\n  %s\n", c.name, linkResp.GetLinkToken())
	fmt.Fprint(c.out, "Please enter the public token: ")

	publicToken, err := c.readLine()
	if err != nil {
		return fmt.Errorf("Setup: reading public token: %w", err)
	}

	exchangeReq := plaidapi.NewItemPublicTokenExchangeRequest(publicToken)
	exchangeResp, _, err := c.client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*exchangeReq).Execute()
	if err != nil {
		return fmt.Errorf("Setup: exchanging public token: %w", err)
	}

	newState := &state{
		AccessToken: exchangeResp.GetAccessToken(),
		ItemID:      exchangeResp.GetItemId(),
	}
	raw, err := newState.encode()
	if err != nil {
		return fmt.Errorf("Setup: %w", err)
	}

	// Persist the new auxiliary data before enabling, so an enabled
	// account always has a usable session blob.
	if err := c.store.UpdateAccountData(ctx, ProviderID, c.name, raw); err != nil {
		return fmt.Errorf("Setup: %w", err)
	}
	if err := c.store.EnableAccount(ctx, ProviderID, c.name); err != nil {
		return fmt.Errorf("Setup: %w", err)
	}

	c.state = newState
	return nil
}

func (c *Connector) readLine() (string, error) {
	scanner := bufio.NewScanner(c.in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("no input")
	}

	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return "", fmt.Errorf("empty input")
	}
	return line, nil
}

// Poll implements connector.Connector. It fetches all transactions in
// the monitoring look-back window, skipping excluded sub-accounts, and
// re-persists the auxiliary state before returning.
func (c *Connector) Poll(ctx context.Context) ([]domain.Transaction, error) {
	log := logger.WithAccount(logger.FromContext(ctx), ProviderID, c.name)

	if c.state == nil {
		return nil, fmt.Errorf("Poll: account %s has no stored session, run init first", c.name)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -c.monitorDays)

	var (
		transactions []domain.Transaction
		accountNames = make(map[string]string)
		offset       int32
	)

	for {
		request := plaidapi.NewTransactionsGetRequest(
			c.state.AccessToken,
			start.Format(plaidDateLayout),
			end.Format(plaidDateLayout),
		)
		options := plaidapi.NewTransactionsGetRequestOptions()
		options.SetCount(pageSize)
		options.SetOffset(offset)
		request.SetOptions(*options)

		resp, _, err := c.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
		if err != nil {
			return nil, fmt.Errorf("Poll: fetching transactions: %w", err)
		}

		excluded := excludedAccounts(resp.GetAccounts(), c.exclude)
		for _, acc := range resp.GetAccounts() {
			accountNames[acc.GetAccountId()] = acc.GetName()
		}

		page := resp.GetTransactions()
		for _, ptx := range page {
			if excluded[ptx.GetAccountId()] {
				continue
			}

			tx, err := c.toTransaction(ptx, accountNames)
			if err != nil {
				return nil, fmt.Errorf("Poll: %w", err)
			}
			transactions = append(transactions, tx)
		}

		offset += int32(len(page))
		if offset >= resp.GetTotalTransactions() || len(page) == 0 {
			break
		}
	}

	// Refresh the persisted session state as a side effect of a
	// successful poll, matching the connector contract.
	raw, err := c.state.encode()
	if err != nil {
		return nil, fmt.Errorf("Poll: %w", err)
	}
	if err := c.store.UpdateAccountData(ctx, ProviderID, c.name, raw); err != nil {
		return nil, fmt.Errorf("Poll: %w", err)
	}

	log.Debug().Int("transactions", len(transactions)).Msg("Fetched window from Plaid")
	return transactions, nil
}

func (c *Connector) toTransaction(ptx plaidapi.Transaction, accountNames map[string]string) (domain.Transaction, error) {
	date, err := time.Parse(plaidDateLayout, ptx.GetDate())
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("parsing date %q: %w", ptx.GetDate(), err)
	}

	counterparty := ptx.GetMerchantName()
	if counterparty == "" {
		counterparty = ptx.GetName()
	}

	return domain.Transaction{
		Provider:         ProviderID,
		Account:          c.name,
		Date:             domain.Day(date),
		Amount:           formatAmount(ptx.GetAmount()),
		CounterpartyName: counterparty,
		Purpose:          ptx.GetName(),
		BeneficiaryName:  accountNames[ptx.GetAccountId()],
	}, nil
}

// formatAmount renders a Plaid amount as a canonical decimal string in
// bank statement convention: Plaid reports outflows as positive, so the
// sign is flipped.
func formatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).Neg().String()
}

// excludedAccounts resolves the configured exclusion list against the
// item's sub-accounts, matching either the account ID or the mask.
func excludedAccounts(accounts []plaidapi.AccountBase, exclude []string) map[string]bool {
	if len(exclude) == 0 {
		return nil
	}

	patterns := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		patterns[e] = true
	}

	excluded := make(map[string]bool)
	for _, acc := range accounts {
		if patterns[acc.GetAccountId()] || patterns[acc.GetMask()] {
			excluded[acc.GetAccountId()] = true
		}
	}
	return excluded
}

var _ connector.Connector = (*Connector)(nil)
