package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const temporaryIDPrefix = "temp_"

// QuoteID is the canonical textual identifier of a quote. Ids that arrive as
// JSON numbers are converted to their decimal string form on decode, so
// comparisons never depend on how a layer happened to encode them.
type QuoteID string

func ParseQuoteID(raw string) QuoteID {
	return QuoteID(strings.TrimSpace(raw))
}

func TemporaryQuoteID(suffix string) QuoteID {
	return QuoteID(temporaryIDPrefix + suffix)
}

func (id QuoteID) String() string {
	return string(id)
}

func (id QuoteID) IsZero() bool {
	return id == ""
}

func (id QuoteID) IsTemporary() bool {
	return strings.HasPrefix(string(id), temporaryIDPrefix)
}

func (id *QuoteID) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*id = ""
		return nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("decode quote id: %w", err)
		}
		*id = ParseQuoteID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("decode quote id: %w", err)
	}
	*id = QuoteID(canonicalNumber(n.String()))
	return nil
}

func canonicalNumber(s string) string {
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return s
	}
	return strconv.FormatInt(int64(f), 10)
}
