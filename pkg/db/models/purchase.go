package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/learnhub/payrecon/pkg/enums"
)

// PurchaseHistory grants access to one program bought through a cart order.
type PurchaseHistory struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PendingOrderID uuid.UUID           `gorm:"column:pending_order_id;type:uuid;not null"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	ProgramID      string              `gorm:"column:program_id;not null"`
	ProgramName    string              `gorm:"column:program_name;not null"`
	Duration       int                 `gorm:"column:duration;not null"`
	Price          decimal.Decimal     `gorm:"column:price;type:numeric(20,2);not null"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PurchasedAt    time.Time           `gorm:"column:purchased_at;not null"`
}

func (PurchaseHistory) TableName() string { return "purchase_history" }

// PurchasedDocument grants access to a single document.
type PurchasedDocument struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PendingOrderID uuid.UUID           `gorm:"column:pending_order_id;type:uuid;not null"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	DocumentID     string              `gorm:"column:document_id;not null"`
	Title          string              `gorm:"column:title;not null"`
	Price          decimal.Decimal     `gorm:"column:price;type:numeric(20,2);not null"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PurchasedAt    time.Time           `gorm:"column:purchased_at;not null"`
}

func (PurchasedDocument) TableName() string { return "purchased_documents" }
