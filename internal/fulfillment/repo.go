package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhub/payrecon/pkg/db/models"
)

// Repository writes the access grants produced by fulfillment.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePurchaseHistory(ctx context.Context, rows []models.PurchaseHistory) error
	CreatePurchasedDocument(ctx context.Context, row *models.PurchasedDocument) error
	CountGrants(ctx context.Context, pendingOrderID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePurchaseHistory(ctx context.Context, rows []models.PurchaseHistory) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) CreatePurchasedDocument(ctx context.Context, row *models.PurchasedDocument) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// CountGrants returns how many access rows reference the pending order.
func (r *repository) CountGrants(ctx context.Context, pendingOrderID uuid.UUID) (int64, error) {
	var programs, documents int64
	if err := r.db.WithContext(ctx).Model(&models.PurchaseHistory{}).
		Where("pending_order_id = ?", pendingOrderID).Count(&programs).Error; err != nil {
		return 0, err
	}
	if err := r.db.WithContext(ctx).Model(&models.PurchasedDocument{}).
		Where("pending_order_id = ?", pendingOrderID).Count(&documents).Error; err != nil {
		return 0, err
	}
	return programs + documents, nil
}
