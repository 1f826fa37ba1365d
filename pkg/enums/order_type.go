package enums

import "fmt"

// OrderType selects the fulfillment applied once an order is verified.
type OrderType string

const (
	OrderTypeCart     OrderType = "cart"
	OrderTypeDocument OrderType = "document"
)

var validOrderTypes = []OrderType{
	OrderTypeCart,
	OrderTypeDocument,
}

func (t OrderType) String() string {
	return string(t)
}

func (t OrderType) IsValid() bool {
	for _, candidate := range validOrderTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

func ParseOrderType(value string) (OrderType, error) {
	for _, candidate := range validOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order type %q", value)
}
