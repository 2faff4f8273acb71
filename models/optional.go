package models

import (
	"bytes"
	"encoding/json"
)

// OptionalString distinguishes "leave the field alone" from "clear it".
// Absent in the request body -> Unchanged; JSON null or "" -> Clear;
// anything else -> Set to that value.
type OptionalString struct {
	Present bool
	Value   string
}

func SetString(v string) OptionalString {
	return OptionalString{Present: true, Value: v}
}

func ClearString() OptionalString {
	return OptionalString{Present: true}
}

// Apply returns the new stored value for the field.
func (o OptionalString) Apply(current string) string {
	if !o.Present {
		return current
	}
	return o.Value
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.Present {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
