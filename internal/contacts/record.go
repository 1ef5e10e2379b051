package contacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

const (
	// TimestampField is the server-assigned submission time.
	TimestampField = "timestamp"
	// TimestampLayout is ISO-8601 UTC with millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000Z"
)

var errNotObject = errors.New("contact payload must be a JSON object")

// Record is one contact submission: the client's fields as sent plus timestamp.
// Field values are kept as raw JSON so nothing the client sent is reinterpreted.
type Record map[string]json.RawMessage

// ParseRecord decodes a submission body. Any JSON object is accepted.
func ParseRecord(body []byte) (Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty request body")
	}
	if trimmed[0] != '{' {
		return nil, errNotObject
	}
	var rec Record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if rec == nil {
		return nil, errNotObject
	}
	return rec, nil
}

// Stamp sets the timestamp field, replacing any client-supplied value.
func (r Record) Stamp(t time.Time) {
	ts, _ := json.Marshal(t.UTC().Format(TimestampLayout))
	r[TimestampField] = ts
}

// Timestamp returns the timestamp field as a string, or "" if absent.
func (r Record) Timestamp() string {
	return r.String(TimestampField)
}

// String returns a field rendered as text: strings unquoted, other JSON verbatim.
func (r Record) String(field string) string {
	raw, ok := r[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Fields returns the record's field names, sorted.
func (r Record) Fields() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ledger is the ordered list of stored submissions. Entries are carried as
// raw JSON so earlier records are written back exactly as they were read.
type Ledger []json.RawMessage

// DecodeLedger parses stored ledger bytes. Empty content is an empty ledger;
// corrupt reports content that is present but not a JSON array.
func DecodeLedger(data []byte) (ledger Ledger, corrupt bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Ledger{}, false
	}
	if err := json.Unmarshal(trimmed, &ledger); err != nil {
		return Ledger{}, true
	}
	if ledger == nil {
		// "null"
		return Ledger{}, true
	}
	return ledger, false
}

// Encode renders the ledger as a pretty-printed JSON array.
func (l Ledger) Encode() ([]byte, error) {
	if l == nil {
		l = Ledger{}
	}
	return json.MarshalIndent(l, "", "  ")
}

// Append adds rec to the end of the ledger.
func (l Ledger) Append(rec Record) (Ledger, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return l, fmt.Errorf("encode record: %w", err)
	}
	return append(l, raw), nil
}

// Records decodes every object entry. Entries that are not objects are
// counted in skipped and left out.
func (l Ledger) Records() (records []Record, skipped int) {
	records = make([]Record, 0, len(l))
	for _, raw := range l {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil || rec == nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}
