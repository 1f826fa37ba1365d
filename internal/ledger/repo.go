package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/learnhub/payrecon/pkg/db/models"
)

// Repository persists the bank transaction ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, entry *models.BankTransaction) (bool, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.BankTransaction, error)
	BindOrder(ctx context.Context, transactionID string, orderID uuid.UUID, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Insert stores entry unless its transaction id is already recorded. It
// reports whether a new row was written.
func (r *repository) Insert(ctx context.Context, entry *models.BankTransaction) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "transaction_id"}}, DoNothing: true}).
		Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindByTransactionID(ctx context.Context, transactionID string) (*models.BankTransaction, error) {
	var entry models.BankTransaction
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// BindOrder attaches the ledger row to orderID unless it is already bound to a
// different order. It reports whether the row now points at orderID.
func (r *repository) BindOrder(ctx context.Context, transactionID string, orderID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BankTransaction{}).
		Where("transaction_id = ? AND (matched_order_id IS NULL OR matched_order_id = ?)", transactionID, orderID).
		Updates(map[string]any{
			"matched_order_id": orderID,
			"matched_at":       at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
