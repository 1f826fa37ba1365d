package banktx

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/learnhub/payrecon/pkg/enums"
)

func TestNormalize_ShapesProduceIdenticalTransactions(t *testing.T) {
	payloads := map[string]string{
		"record_list": `{"success":true,"data":[{"transactionId":"FT1","amount":50000,"description":"Thanh toan ORD1","accountNumber":"0123","transactionDate":"2024-05-01 10:00:00","type":"credit"}]}`,
		"transfer":    `{"id":"FT1","gateway":"VCB","transferAmount":50000,"content":"Thanh toan ORD1","accountNumber":"0123","transactionDate":"2024-05-01 10:00:00","transferType":"in"}`,
		"bare_array":  `[{"tid":"FT1","amount":"50,000","addInfo":"Thanh toan ORD1","subAccId":"0123","when":"2024-05-01T10:00:00Z"}]`,
		"flat_record": `{"transaction_id":"FT1","amount_in":50000,"amount_out":0,"transaction_content":"Thanh toan ORD1","account_number":"0123","transaction_date":"2024-05-01 10:00:00"}`,
	}

	want := Transaction{
		ID:            "FT1",
		AccountNumber: "0123",
		Amount:        decimal.NewFromInt(50000),
		Description:   "Thanh toan ORD1",
		Date:          time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Direction:     enums.DirectionCredit,
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			batch, err := Normalize(json.RawMessage(payload))
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if got := ShapeName(batch.Shape); got != name {
				t.Fatalf("expected shape %s, got %s", name, got)
			}
			if len(batch.Skipped) != 0 {
				t.Fatalf("unexpected skipped records: %+v", batch.Skipped)
			}
			if len(batch.Transactions) != 1 {
				t.Fatalf("expected 1 transaction, got %d", len(batch.Transactions))
			}
			assertCanonical(t, want, batch.Transactions[0])
		})
	}
}

func TestNormalize_NestedRecordsAndTransactionsKey(t *testing.T) {
	nested := `{"error":0,"data":{"page":1,"records":[{"id":11,"tid":"TF-11","amount":-20000,"description":"rut tien"},{"id":12,"tid":"TF-12","amount":150000,"description":"DH ORD9"}]}}`
	batch, err := Normalize(json.RawMessage(nested))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	list, ok := batch.Shape.(RecordList)
	if !ok || list.Path != "data.records" {
		t.Fatalf("expected data.records record list, got %#v", batch.Shape)
	}
	if len(batch.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(batch.Transactions))
	}
	first := batch.Transactions[0]
	if first.ID != "11" {
		t.Fatalf("numeric id should be stringified, got %q", first.ID)
	}
	if first.Direction != enums.DirectionDebit || !first.Amount.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("negative amount should become an absolute debit, got %s %s", first.Direction, first.Amount)
	}
	if batch.Transactions[1].Direction != enums.DirectionCredit {
		t.Fatalf("positive amount without type should be a credit")
	}

	listed := `{"transactions":[{"transactionId":"T-1","amount":"1,250,000.50","content":"CART7788","direction":"out"}]}`
	batch, err = Normalize(json.RawMessage(listed))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	txn := batch.Transactions[0]
	if !txn.Amount.Equal(decimal.RequireFromString("1250000.50")) {
		t.Fatalf("thousand separators should be stripped, got %s", txn.Amount)
	}
	if txn.Direction != enums.DirectionDebit {
		t.Fatalf("explicit out marker should be a debit")
	}
}

func TestNormalize_SkipsBadRecordsButKeepsTheRest(t *testing.T) {
	payload := `[{"amount":1000,"content":"no id"},{"id":"A2","content":"no amount"},{"id":"A3","amount":"abc"},"oops",{"id":"A5","amount":5000,"content":"ORD5"}]`
	batch, err := Normalize(json.RawMessage(payload))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(batch.Transactions) != 1 || batch.Transactions[0].ID != "A5" {
		t.Fatalf("expected only A5 to survive, got %+v", batch.Transactions)
	}
	if len(batch.Skipped) != 4 {
		t.Fatalf("expected 4 skipped records, got %d", len(batch.Skipped))
	}
	if batch.Skipped[1].ID != "A2" || batch.Skipped[1].Reason != errMissingAmount.Error() {
		t.Fatalf("unexpected skip entry %+v", batch.Skipped[1])
	}
	if batch.Skipped[3].Index != 3 || batch.Skipped[3].Reason != errNotObject.Error() {
		t.Fatalf("unexpected skip entry %+v", batch.Skipped[3])
	}
	if batch.Len() != 5 {
		t.Fatalf("expected batch length 5, got %d", batch.Len())
	}
}

func TestNormalize_UnknownAndMalformed(t *testing.T) {
	if _, err := Normalize(json.RawMessage(`{"data":`)); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected malformed payload error, got %v", err)
	}

	batch, err := Normalize(json.RawMessage(`{"hello":"world"}`))
	if err != nil {
		t.Fatalf("unknown shape should not error: %v", err)
	}
	if _, ok := batch.Shape.(Unknown); !ok {
		t.Fatalf("expected unknown shape, got %#v", batch.Shape)
	}
	if len(batch.Transactions) != 0 || len(batch.Skipped) != 1 {
		t.Fatalf("unknown shape should yield one skip entry, got %+v", batch)
	}

	batch, err = Normalize(json.RawMessage(`  `))
	if err != nil || ShapeName(batch.Shape) != "unknown" {
		t.Fatalf("empty payload should classify as unknown, got %v %v", batch.Shape, err)
	}
}

func TestNormalize_DateAndTypeEdgeCases(t *testing.T) {
	payload := `{"id":"D1","transferAmount":100,"content":"x","transactionDate":"yesterday","transferType":"refund"}`
	batch, err := Normalize(json.RawMessage(payload))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	txn := batch.Transactions[0]
	if !txn.Date.IsZero() {
		t.Fatalf("unparseable date should leave zero time, got %v", txn.Date)
	}
	if txn.Direction != enums.DirectionDebit {
		t.Fatalf("unknown type marker should be a debit, got %s", txn.Direction)
	}

	zero := `{"id":"D2","amount":0,"content":"x"}`
	batch, err = Normalize(json.RawMessage(zero))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if batch.Transactions[0].Direction != enums.DirectionDebit {
		t.Fatal("zero amount should be treated as a debit")
	}
}

func TestNormalize_ContentPreferredOverDescription(t *testing.T) {
	payload := `{"id":"C1","transferAmount":10,"content":"ORDER ABC12345","description":"BankAPINotify ORDER ABC12345 FT123"}`
	batch, err := Normalize(json.RawMessage(payload))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := batch.Transactions[0].Description; got != "ORDER ABC12345" {
		t.Fatalf("expected content to win, got %q", got)
	}
	if len(batch.Transactions[0].Raw) == 0 {
		t.Fatal("raw record should be retained for audit")
	}
}

func assertCanonical(t *testing.T, want, got Transaction) {
	t.Helper()
	if got.ID != want.ID || got.AccountNumber != want.AccountNumber || got.Description != want.Description {
		t.Fatalf("identity mismatch: want %+v got %+v", want, got)
	}
	if !got.Amount.Equal(want.Amount) {
		t.Fatalf("amount mismatch: want %s got %s", want.Amount, got.Amount)
	}
	if !got.Date.Equal(want.Date) {
		t.Fatalf("date mismatch: want %v got %v", want.Date, got.Date)
	}
	if got.Direction != want.Direction {
		t.Fatalf("direction mismatch: want %s got %s", want.Direction, got.Direction)
	}
}
