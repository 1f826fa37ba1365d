// Package banktx turns heterogeneous bank payloads into canonical transactions.
package banktx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/learnhub/payrecon/pkg/enums"
)

// Transaction is the canonical form every provider payload is reduced to.
// Amount is always non-negative; Direction carries the sign. Date is zero when
// the provider sent none or an unparseable value.
type Transaction struct {
	ID            string
	AccountNumber string
	Amount        decimal.Decimal
	Description   string
	Date          time.Time
	Direction     enums.TransactionDirection
	Raw           json.RawMessage
}

// Skipped is a record that could not be canonicalized.
type Skipped struct {
	Index  int
	ID     string
	Reason string
}

// Batch is the result of normalizing one delivery.
type Batch struct {
	Shape        Shape
	Transactions []Transaction
	Skipped      []Skipped
}

// Len is the number of records seen, canonical or not.
func (b Batch) Len() int {
	return len(b.Transactions) + len(b.Skipped)
}

var (
	idKeys          = []string{"transactionId", "transaction_id", "id", "tid", "referenceCode"}
	amountKeys      = []string{"amount", "transferAmount"}
	descriptionKeys = []string{"content", "description", "transaction_content", "addInfo"}
	accountKeys     = []string{"accountNumber", "account_number", "bankSubAccId", "subAccId"}
	dateKeys        = []string{"transactionDate", "transaction_date", "when"}
	typeKeys        = []string{"transferType", "type", "direction"}

	dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
)

var (
	errMissingID     = errors.New("missing transaction id")
	errMissingAmount = errors.New("missing amount")
	errNotObject     = errors.New("record is not an object")
)

// Normalize classifies raw and canonicalizes every record it holds. Records
// that cannot be canonicalized are reported in Skipped; the rest of the
// delivery is still returned. Only malformed JSON is an error.
func Normalize(raw json.RawMessage) (Batch, error) {
	shape, err := Classify(raw)
	if err != nil {
		return Batch{}, err
	}

	batch := Batch{Shape: shape}
	var records []json.RawMessage
	switch s := shape.(type) {
	case RecordList:
		records = s.Records
	case BareArray:
		records = s.Records
	case Transfer:
		records = []json.RawMessage{s.Record}
	case FlatRecord:
		records = []json.RawMessage{s.Record}
	case Unknown:
		batch.Skipped = append(batch.Skipped, Skipped{Index: 0, Reason: s.Reason})
		return batch, nil
	default:
		return Batch{}, fmt.Errorf("unhandled payload shape %T", shape)
	}

	for i, record := range records {
		txn, err := canonicalize(record)
		if err != nil {
			batch.Skipped = append(batch.Skipped, Skipped{Index: i, ID: txn.ID, Reason: err.Error()})
			continue
		}
		batch.Transactions = append(batch.Transactions, txn)
	}
	return batch, nil
}

func canonicalize(record json.RawMessage) (Transaction, error) {
	dec := json.NewDecoder(bytes.NewReader(record))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return Transaction{}, errNotObject
	}

	txn := Transaction{
		ID:            firstString(fields, idKeys),
		AccountNumber: firstString(fields, accountKeys),
		Description:   firstString(fields, descriptionKeys),
		Raw:           append(json.RawMessage(nil), record...),
	}
	if txn.ID == "" {
		return txn, errMissingID
	}

	signed, direction, err := resolveAmount(fields)
	if err != nil {
		return txn, err
	}
	txn.Amount = signed.Abs()
	txn.Direction = direction
	txn.Date = parseDate(firstString(fields, dateKeys))
	return txn, nil
}

// resolveAmount returns the signed amount and direction. An explicit type
// field wins; otherwise the split in/out columns or the sign decide.
func resolveAmount(fields map[string]any) (decimal.Decimal, enums.TransactionDirection, error) {
	typeMarker := firstString(fields, typeKeys)

	for _, key := range amountKeys {
		v, ok := fields[key]
		if !ok || v == nil {
			continue
		}
		amount, err := parseAmount(v)
		if err != nil {
			return decimal.Zero, "", fmt.Errorf("invalid %s: %w", key, err)
		}
		if typeMarker != "" {
			return amount, enums.ParseDirection(typeMarker), nil
		}
		return amount, directionFromSign(amount), nil
	}

	in, inErr := optionalAmount(fields, "amount_in")
	out, outErr := optionalAmount(fields, "amount_out")
	if inErr != nil {
		return decimal.Zero, "", inErr
	}
	if outErr != nil {
		return decimal.Zero, "", outErr
	}
	if in == nil && out == nil {
		return decimal.Zero, "", errMissingAmount
	}

	var amount decimal.Decimal
	direction := enums.DirectionDebit
	switch {
	case in != nil && !in.IsZero():
		amount, direction = *in, enums.DirectionCredit
	case out != nil:
		amount = *out
	}
	if typeMarker != "" {
		direction = enums.ParseDirection(typeMarker)
	}
	return amount, direction, nil
}

func optionalAmount(fields map[string]any, key string) (*decimal.Decimal, error) {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil, nil
	}
	amount, err := parseAmount(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &amount, nil
}

func directionFromSign(amount decimal.Decimal) enums.TransactionDirection {
	if amount.IsPositive() {
		return enums.DirectionCredit
	}
	return enums.DirectionDebit
}

func parseAmount(v any) (decimal.Decimal, error) {
	switch value := v.(type) {
	case json.Number:
		return decimal.NewFromString(value.String())
	case string:
		cleaned := strings.NewReplacer(",", "", " ", "", "_", "").Replace(strings.TrimSpace(value))
		if cleaned == "" {
			return decimal.Zero, errMissingAmount
		}
		return decimal.NewFromString(cleaned)
	default:
		return decimal.Zero, fmt.Errorf("unsupported amount type %T", v)
	}
}

func parseDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func firstString(fields map[string]any, keys []string) string {
	for _, key := range keys {
		switch v := fields[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}
