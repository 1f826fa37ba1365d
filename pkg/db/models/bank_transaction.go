package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/learnhub/payrecon/pkg/enums"
)

// BankTransaction is the idempotency ledger row keyed by the provider transaction id.
type BankTransaction struct {
	TransactionID   string                     `gorm:"column:transaction_id;primaryKey"`
	Source          string                     `gorm:"column:source;not null"`
	AccountNumber   string                     `gorm:"column:account_number"`
	Amount          decimal.Decimal            `gorm:"column:amount;type:numeric(20,2);not null"`
	Description     string                     `gorm:"column:description"`
	TransactionDate *time.Time                 `gorm:"column:transaction_date"`
	Direction       enums.TransactionDirection `gorm:"column:direction;not null"`
	MatchedOrderID  *uuid.UUID                 `gorm:"column:matched_order_id;type:uuid"`
	MatchedAt       *time.Time                 `gorm:"column:matched_at"`
	RawPayload      json.RawMessage            `gorm:"column:raw_payload;type:jsonb"`
	CreatedAt       time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (BankTransaction) TableName() string { return "bank_transactions" }
