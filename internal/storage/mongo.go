package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dvloznov/bankfeed/internal/domain"
)

const (
	databaseName           = "bankfeed"
	accountsCollection     = "accounts"
	transactionsCollection = "transactions"
)

// accountDoc is the persisted form of an account's state.
type accountDoc struct {
	Provider string `bson:"provider"`
	Account  string `bson:"account"`
	Active   bool   `bson:"active"`
	Data     []byte `bson:"data,omitempty"`
}

// transactionDoc is the persisted form of a domain.Transaction plus the
// store-assigned insertion timestamp the TTL index expires on.
type transactionDoc struct {
	Provider             string    `bson:"provider"`
	Account              string    `bson:"account"`
	Date                 time.Time `bson:"date"`
	Amount               string    `bson:"amount"`
	CounterpartyBankCode string    `bson:"counterparty_bank_code"`
	CounterpartyIBAN     string    `bson:"counterparty_iban"`
	CounterpartyName     string    `bson:"counterparty_name"`
	Purpose              string    `bson:"purpose"`
	BeneficiaryName      string    `bson:"beneficiary_name"`
	Inserted             time.Time `bson:"inserted"`
}

// MongoStore is the MongoDB-backed implementation of Store. It holds a
// shared client safely reused across accounts within a run.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to the document store and ensures the rolling
// TTL index bounding transaction retention to the monitoring window.
func NewMongoStore(ctx context.Context, uri string, window time.Duration) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("NewMongoStore: connecting: %w", err)
	}

	s := &MongoStore{
		client: client,
		db:     client.Database(databaseName),
	}

	if err := s.ensureIndexes(ctx, window); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context, window time.Duration) error {
	_, err := s.db.Collection(transactionsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "inserted", Value: 1}},
		Options: options.Index().
			SetName("inserted_ttl").
			SetExpireAfterSeconds(int32(window / time.Second)),
	})
	if err != nil {
		return fmt.Errorf("ensureIndexes: transactions ttl: %w", err)
	}

	_, err = s.db.Collection(accountsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "account", Value: 1}},
		Options: options.Index().SetName("account_ref").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("ensureIndexes: account ref: %w", err)
	}

	return nil
}

// Close releases the underlying client connection.
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client != nil {
		return s.client.Disconnect(ctx)
	}
	return nil
}

func accountFilter(provider, account string) bson.D {
	return bson.D{
		{Key: "provider", Value: provider},
		{Key: "account", Value: account},
	}
}

// transactionFilter matches on every field of the transaction: identity is
// the full field tuple, there is no synthetic ID.
func transactionFilter(tx domain.Transaction) bson.D {
	return bson.D{
		{Key: "provider", Value: tx.Provider},
		{Key: "account", Value: tx.Account},
		{Key: "date", Value: tx.Date},
		{Key: "amount", Value: tx.Amount},
		{Key: "counterparty_bank_code", Value: tx.CounterpartyBankCode},
		{Key: "counterparty_iban", Value: tx.CounterpartyIBAN},
		{Key: "counterparty_name", Value: tx.CounterpartyName},
		{Key: "purpose", Value: tx.Purpose},
		{Key: "beneficiary_name", Value: tx.BeneficiaryName},
	}
}

// IsAccountEnabled implements AccountStore.
func (s *MongoStore) IsAccountEnabled(ctx context.Context, provider, account string) (bool, error) {
	var doc accountDoc
	err := s.db.Collection(accountsCollection).FindOne(ctx, accountFilter(provider, account)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("IsAccountEnabled: %s.%s: %w", provider, account, err)
	}
	return doc.Active, nil
}

// EnableAccount implements AccountStore.
func (s *MongoStore) EnableAccount(ctx context.Context, provider, account string) error {
	_, err := s.db.Collection(accountsCollection).UpdateOne(ctx,
		accountFilter(provider, account),
		bson.M{"$set": bson.M{"active": true}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("EnableAccount: %s.%s: %w", provider, account, err)
	}
	return nil
}

// DisableAccount implements AccountStore.
func (s *MongoStore) DisableAccount(ctx context.Context, provider, account string) error {
	_, err := s.db.Collection(accountsCollection).UpdateOne(ctx,
		accountFilter(provider, account),
		bson.M{"$set": bson.M{"active": false}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("DisableAccount: %s.%s: %w", provider, account, err)
	}
	return nil
}

// AccountData implements AccountStore. Disabled accounts report no data
// even when a blob exists: once re-initialization is required the stored
// session state is stale by definition.
func (s *MongoStore) AccountData(ctx context.Context, provider, account string) ([]byte, error) {
	var doc accountDoc
	err := s.db.Collection(accountsCollection).FindOne(ctx, accountFilter(provider, account)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("AccountData: %s.%s: %w", provider, account, err)
	}
	if !doc.Active {
		return nil, nil
	}
	return doc.Data, nil
}

// UpdateAccountData implements AccountStore.
func (s *MongoStore) UpdateAccountData(ctx context.Context, provider, account string, data []byte) error {
	_, err := s.db.Collection(accountsCollection).UpdateOne(ctx,
		accountFilter(provider, account),
		bson.M{"$set": bson.M{"data": data}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("UpdateAccountData: %s.%s: %w", provider, account, err)
	}
	return nil
}

// TransactionExists implements TransactionStore.
func (s *MongoStore) TransactionExists(ctx context.Context, tx domain.Transaction) (bool, error) {
	err := s.db.Collection(transactionsCollection).FindOne(ctx, transactionFilter(tx)).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("TransactionExists: %s: %w", tx.Ref(), err)
	}
	return true, nil
}

// StoreTransaction implements TransactionStore.
func (s *MongoStore) StoreTransaction(ctx context.Context, tx domain.Transaction) error {
	doc := transactionDoc{
		Provider:             tx.Provider,
		Account:              tx.Account,
		Date:                 tx.Date,
		Amount:               tx.Amount,
		CounterpartyBankCode: tx.CounterpartyBankCode,
		CounterpartyIBAN:     tx.CounterpartyIBAN,
		CounterpartyName:     tx.CounterpartyName,
		Purpose:              tx.Purpose,
		BeneficiaryName:      tx.BeneficiaryName,
		Inserted:             time.Now().UTC(),
	}

	_, err := s.db.Collection(transactionsCollection).InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("StoreTransaction: %s: %w", tx.Ref(), err)
	}
	return nil
}

// Ensure MongoStore implements the full store surface.
var _ Store = (*MongoStore)(nil)
