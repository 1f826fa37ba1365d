package enums

// PaymentMethod is recorded on purchase rows created by fulfillment.
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

func (p PaymentMethod) String() string {
	return string(p)
}
