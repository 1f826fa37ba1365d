// Package ledger is the idempotency ledger of bank transactions. Every
// transaction is stored once, keyed by its provider id, and bound to at most
// one order.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhub/payrecon/internal/banktx"
	"github.com/learnhub/payrecon/pkg/db/models"
)

// SourceWebhook marks transactions pushed by the bank webhook. Polled
// transactions carry the provider name.
const SourceWebhook = "webhook"

// Service records and binds ledger entries.
type Service interface {
	Record(ctx context.Context, source string, txn banktx.Transaction) (*Entry, error)
	Bind(ctx context.Context, tx *gorm.DB, transactionID string, orderID uuid.UUID, at time.Time) (bool, error)
}

// Entry is the stored ledger row plus whether this call created it.
type Entry struct {
	Row      *models.BankTransaction
	Inserted bool
}

// MatchedOrder returns the order the entry is already bound to, if any.
func (e *Entry) MatchedOrder() (uuid.UUID, bool) {
	if e == nil || e.Row == nil || e.Row.MatchedOrderID == nil {
		return uuid.Nil, false
	}
	return *e.Row.MatchedOrderID, true
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// Record inserts the transaction if unseen and returns the stored row. A
// redelivered transaction returns the original row untouched.
func (s *service) Record(ctx context.Context, source string, txn banktx.Transaction) (*Entry, error) {
	if strings.TrimSpace(txn.ID) == "" {
		return nil, fmt.Errorf("transaction id is required")
	}
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("ledger source is required")
	}

	row := &models.BankTransaction{
		TransactionID: txn.ID,
		Source:        source,
		AccountNumber: txn.AccountNumber,
		Amount:        txn.Amount,
		Description:   txn.Description,
		Direction:     txn.Direction,
		RawPayload:    txn.Raw,
	}
	if !txn.Date.IsZero() {
		date := txn.Date
		row.TransactionDate = &date
	}

	inserted, err := s.repo.Insert(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("recording transaction %s: %w", txn.ID, err)
	}
	if inserted {
		return &Entry{Row: row, Inserted: true}, nil
	}

	stored, err := s.repo.FindByTransactionID(ctx, txn.ID)
	if err != nil {
		return nil, fmt.Errorf("loading transaction %s: %w", txn.ID, err)
	}
	return &Entry{Row: stored}, nil
}

// Bind attaches the ledger row to orderID inside tx.
func (s *service) Bind(ctx context.Context, tx *gorm.DB, transactionID string, orderID uuid.UUID, at time.Time) (bool, error) {
	if orderID == uuid.Nil {
		return false, fmt.Errorf("order id is required")
	}
	bound, err := s.repo.WithTx(tx).BindOrder(ctx, transactionID, orderID, at)
	if err != nil {
		return false, fmt.Errorf("binding transaction %s: %w", transactionID, err)
	}
	return bound, nil
}
