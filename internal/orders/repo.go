package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhub/payrecon/pkg/db/models"
	"github.com/learnhub/payrecon/pkg/enums"
)

// Repository defines persistence operations for pending orders. Status only
// changes through Transition.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.PendingOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PendingOrder, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.PendingOrder, error)
	FindPendingByContent(ctx context.Context, description string) ([]models.PendingOrder, error)
	FindOverduePending(ctx context.Context, now time.Time, limit int) ([]models.PendingOrder, error)
	Transition(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, fields map[string]any) (bool, error)
	MarkFulfilled(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordFulfillmentError(ctx context.Context, id uuid.UUID, message string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a pending-order repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.PendingOrder) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = enums.OrderStatusPending
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PendingOrder, error) {
	var order models.PendingOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByOrderID returns the most recent row for the client-visible order id.
func (r *repository) FindByOrderID(ctx context.Context, orderID string) (*models.PendingOrder, error) {
	var order models.PendingOrder
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindPendingByContent returns pending orders whose payment content appears in
// description, ignoring case.
func (r *repository) FindPendingByContent(ctx context.Context, description string) ([]models.PendingOrder, error) {
	var rows []models.PendingOrder
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.OrderStatusPending).
		Where("payment_content <> ''").
		Where("UPPER(?) LIKE '%' || UPPER(payment_content) || '%'", description).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindOverduePending(ctx context.Context, now time.Time, limit int) ([]models.PendingOrder, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.OrderStatusPending).
		Where("expires_at <= ?", now).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.PendingOrder
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Transition is the compare-and-swap on order status: the row is updated only
// while it still holds from. It reports whether this call changed the row.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, fields map[string]any) (bool, error) {
	if !CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	updates := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to
	updates["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&models.PendingOrder{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) MarkFulfilled(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PendingOrder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"fulfilled_at":      at,
			"fulfillment_error": nil,
			"updated_at":        at,
		}).Error
}

func (r *repository) RecordFulfillmentError(ctx context.Context, id uuid.UUID, message string) error {
	return r.db.WithContext(ctx).
		Model(&models.PendingOrder{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"fulfillment_error": message,
			"updated_at":        time.Now().UTC(),
		}).Error
}
