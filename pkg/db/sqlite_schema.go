package db

import (
	"context"
	"fmt"
	"strings"
)

// sqliteSchema mirrors pkg/migrate/migrations for local sqlite runs and tests.
// Timestamps use DATETIME so the sqlite driver scans them into time.Time.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS pending_orders (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		order_type TEXT NOT NULL CHECK (order_type IN ('cart', 'document')),
		order_data TEXT NOT NULL,
		amount NUMERIC NOT NULL CHECK (amount > 0),
		payment_content TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'verified', 'cancelled', 'expired')),
		bank_transaction_id TEXT NULL,
		expires_at DATETIME NOT NULL,
		verified_at DATETIME NULL,
		cancelled_at DATETIME NULL,
		expired_at DATETIME NULL,
		fulfilled_at DATETIME NULL,
		fulfillment_error TEXT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK ((status = 'verified') = (bank_transaction_id IS NOT NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_pending_orders_open_order_id ON pending_orders (order_id) WHERE status = 'pending'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_pending_orders_bank_transaction_id ON pending_orders (bank_transaction_id) WHERE bank_transaction_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_pending_orders_status_expires_at ON pending_orders (status, expires_at)`,
	`CREATE TABLE IF NOT EXISTS bank_transactions (
		transaction_id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		account_number TEXT NULL,
		amount NUMERIC NOT NULL,
		description TEXT NULL,
		transaction_date DATETIME NULL,
		direction TEXT NOT NULL CHECK (direction IN ('credit', 'debit')),
		matched_order_id TEXT NULL,
		matched_at DATETIME NULL,
		raw_payload TEXT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_history (
		id TEXT PRIMARY KEY,
		pending_order_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		program_id TEXT NOT NULL,
		program_name TEXT NOT NULL,
		duration INTEGER NOT NULL,
		price NUMERIC NOT NULL,
		payment_method TEXT NOT NULL,
		purchased_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_purchase_history_order_program ON purchase_history (pending_order_id, program_id)`,
	`CREATE TABLE IF NOT EXISTS purchased_documents (
		id TEXT PRIMARY KEY,
		pending_order_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		title TEXT NOT NULL,
		price NUMERIC NOT NULL,
		payment_method TEXT NOT NULL,
		purchased_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_purchased_documents_order ON purchased_documents (pending_order_id)`,
}

// sqliteUniqueColumns maps unique constraint names to the column list sqlite
// reports in place of the name.
var sqliteUniqueColumns = map[string]string{
	"idx_pending_orders_open_order_id":       "pending_orders.order_id",
	"idx_pending_orders_bank_transaction_id": "pending_orders.bank_transaction_id",
	"bank_transactions_pkey":                 "bank_transactions.transaction_id",
	"idx_purchase_history_order_program":     "purchase_history.pending_order_id, purchase_history.program_id",
	"idx_purchased_documents_order":          "purchased_documents.pending_order_id",
}

// EnsureSQLiteSchema creates the reconciliation tables on a sqlite connection.
func (c *Client) EnsureSQLiteSchema(ctx context.Context) error {
	if name := c.conn.Dialector.Name(); !strings.EqualFold(name, "sqlite") {
		return fmt.Errorf("sqlite schema requested on %s connection", name)
	}
	for _, stmt := range sqliteSchema {
		if err := c.conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
