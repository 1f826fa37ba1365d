package fulfillment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/learnhub/payrecon/pkg/enums"
)

// OrderData is the decoded order_data payload: CartOrder or DocumentOrder.
type OrderData interface {
	OrderType() enums.OrderType
}

// CartOrder grants access to every program in Items.
type CartOrder struct {
	Items []CartItem `json:"items"`
}

type CartItem struct {
	ProgramID   string          `json:"programId"`
	ProgramName string          `json:"programName"`
	Duration    int             `json:"duration"`
	Price       decimal.Decimal `json:"price"`
}

// DocumentOrder grants access to one document. A zero Price falls back to the
// order amount.
type DocumentOrder struct {
	DocumentID string          `json:"documentId"`
	Title      string          `json:"title"`
	Price      decimal.Decimal `json:"price"`
}

func (CartOrder) OrderType() enums.OrderType     { return enums.OrderTypeCart }
func (DocumentOrder) OrderType() enums.OrderType { return enums.OrderTypeDocument }

// Decode parses raw according to orderType and validates the result.
func Decode(orderType enums.OrderType, raw json.RawMessage) (OrderData, error) {
	switch orderType {
	case enums.OrderTypeCart:
		var cart CartOrder
		if err := decodeStrict(raw, &cart); err != nil {
			return nil, fmt.Errorf("decode cart order: %w", err)
		}
		if len(cart.Items) == 0 {
			return nil, fmt.Errorf("cart order has no items")
		}
		for i, item := range cart.Items {
			if strings.TrimSpace(item.ProgramID) == "" {
				return nil, fmt.Errorf("cart item %d missing programId", i)
			}
			if item.Duration < 0 {
				return nil, fmt.Errorf("cart item %d has negative duration", i)
			}
			if item.Price.IsNegative() {
				return nil, fmt.Errorf("cart item %d has negative price", i)
			}
		}
		return cart, nil
	case enums.OrderTypeDocument:
		var doc DocumentOrder
		if err := decodeStrict(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode document order: %w", err)
		}
		if strings.TrimSpace(doc.DocumentID) == "" {
			return nil, fmt.Errorf("document order missing documentId")
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("unsupported order type %q", orderType)
	}
}

func decodeStrict(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("order data is empty")
	}
	return json.Unmarshal(raw, dst)
}
