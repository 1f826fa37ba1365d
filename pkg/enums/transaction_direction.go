package enums

import "strings"

// TransactionDirection describes money flow relative to the merchant account.
type TransactionDirection string

const (
	DirectionCredit TransactionDirection = "credit"
	DirectionDebit  TransactionDirection = "debit"
)

func (d TransactionDirection) String() string {
	return string(d)
}

func (d TransactionDirection) IsValid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// ParseDirection maps provider type markers onto a direction. Anything not
// recognised as incoming money is treated as a debit.
func ParseDirection(value string) TransactionDirection {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "in", "credit", "cr", "incoming", "receive", "received":
		return DirectionCredit
	default:
		return DirectionDebit
	}
}
