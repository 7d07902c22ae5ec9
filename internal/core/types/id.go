package types

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ID is an opaque entity identifier owned by the backend. The core never
// derives meaning from it, only compares for equality.
//
// The backend emits numeric ids today; a future one may use strings. ID
// accepts either on the wire and always renders as a JSON string.
type ID string

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool { return id == "" }

func (id ID) String() string { return string(id) }

// MarshalJSON encodes the id as a JSON string.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts a JSON string, number, or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	// Numeric id: keep the exact textual form.
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// ParseIntID renders an integer id in the canonical textual form.
func ParseIntID(n int64) ID {
	return ID(strconv.FormatInt(n, 10))
}
