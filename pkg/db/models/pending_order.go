package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/learnhub/payrecon/pkg/enums"
)

// PendingOrder is a purchase intent awaiting bank-transfer confirmation. Rows
// are created by checkout and only mutated through status compare-and-swap.
type PendingOrder struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           string            `gorm:"column:order_id;not null"`
	UserID            uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	OrderType         enums.OrderType   `gorm:"column:order_type;not null"`
	OrderData         json.RawMessage   `gorm:"column:order_data;type:jsonb;not null"`
	Amount            decimal.Decimal   `gorm:"column:amount;type:numeric(20,2);not null"`
	PaymentContent    string            `gorm:"column:payment_content;not null"`
	Status            enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	BankTransactionID *string           `gorm:"column:bank_transaction_id"`
	ExpiresAt         time.Time         `gorm:"column:expires_at;not null"`
	VerifiedAt        *time.Time        `gorm:"column:verified_at"`
	CancelledAt       *time.Time        `gorm:"column:cancelled_at"`
	ExpiredAt         *time.Time        `gorm:"column:expired_at"`
	FulfilledAt       *time.Time        `gorm:"column:fulfilled_at"`
	FulfillmentError  *string           `gorm:"column:fulfillment_error"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (PendingOrder) TableName() string { return "pending_orders" }

// IsOverdue reports whether a still-pending order has passed its expiry.
func (o *PendingOrder) IsOverdue(now time.Time) bool {
	return o.Status == enums.OrderStatusPending && !now.Before(o.ExpiresAt)
}

// BankTransactionIDValue returns the bound transaction id or an empty string.
func (o *PendingOrder) BankTransactionIDValue() string {
	if o == nil || o.BankTransactionID == nil {
		return ""
	}
	return *o.BankTransactionID
}
