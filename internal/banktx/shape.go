package banktx

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrMalformedPayload is returned when a delivery is not valid JSON.
var ErrMalformedPayload = errors.New("malformed transaction payload")

// Shape is the classified layout of an inbound payload. It is one of
// RecordList, Transfer, BareArray, FlatRecord or Unknown.
type Shape interface {
	shapeName() string
}

// RecordList is an envelope object holding an array of records under Path
// (data, data.records or transactions).
type RecordList struct {
	Path    string
	Records []json.RawMessage
}

// Transfer is a single transfer notification carrying content and/or
// transferAmount at the top level.
type Transfer struct {
	Record json.RawMessage
}

// BareArray is a top-level JSON array of records.
type BareArray struct {
	Records []json.RawMessage
}

// FlatRecord is a single object with an id and an amount.
type FlatRecord struct {
	Record json.RawMessage
}

// Unknown is any payload none of the other shapes recognise.
type Unknown struct {
	Reason string
}

func (RecordList) shapeName() string { return "record_list" }
func (Transfer) shapeName() string   { return "transfer" }
func (BareArray) shapeName() string  { return "bare_array" }
func (FlatRecord) shapeName() string { return "flat_record" }
func (Unknown) shapeName() string    { return "unknown" }

// ShapeName returns a stable label for logs and metrics.
func ShapeName(s Shape) string {
	if s == nil {
		return Unknown{}.shapeName()
	}
	return s.shapeName()
}

// Classify inspects raw and reports its shape. It only fails when raw is not
// valid JSON.
func Classify(raw json.RawMessage) (Shape, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Unknown{Reason: "empty payload"}, nil
	}
	if !json.Valid(trimmed) {
		return nil, ErrMalformedPayload
	}

	switch trimmed[0] {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, ErrMalformedPayload
		}
		return BareArray{Records: records}, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, ErrMalformedPayload
		}
		return classifyObject(trimmed, obj), nil
	default:
		return Unknown{Reason: "payload is neither an object nor an array"}, nil
	}
}

func classifyObject(raw json.RawMessage, obj map[string]json.RawMessage) Shape {
	if data, ok := obj["data"]; ok {
		if records, ok := asArray(data); ok {
			return RecordList{Path: "data", Records: records}
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(data, &inner); err == nil {
			if records, ok := asArray(inner["records"]); ok {
				return RecordList{Path: "data.records", Records: records}
			}
		}
	}
	if records, ok := asArray(obj["transactions"]); ok {
		return RecordList{Path: "transactions", Records: records}
	}
	if hasAny(obj, "content", "transferAmount") {
		return Transfer{Record: raw}
	}
	if hasAny(obj, idKeys...) && hasAny(obj, "amount", "amount_in", "amount_out") {
		return FlatRecord{Record: raw}
	}
	return Unknown{Reason: "unrecognized payload shape"}
}

func asArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, false
	}
	return records, true
}

func hasAny(obj map[string]json.RawMessage, keys ...string) bool {
	for _, key := range keys {
		if v, ok := obj[key]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return true
		}
	}
	return false
}
