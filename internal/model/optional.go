package model

import (
	"bytes"
	"encoding/json"
)

// OptionalString is an updatable string attribute. It distinguishes a
// field the caller did not send from one it sent as null (clear) and one
// it sent with a value.
//
// The zero value is absent.
type OptionalString struct {
	set   bool
	null  bool
	value string
}

// Some returns an OptionalString holding v.
func Some(v string) OptionalString {
	return OptionalString{set: true, value: v}
}

// Clear returns an OptionalString asking for the field to be removed.
func Clear() OptionalString {
	return OptionalString{set: true, null: true}
}

// Present reports whether the caller supplied the field at all.
func (o OptionalString) Present() bool { return o.set }

// IsClear reports whether the caller asked for the field to be removed.
func (o OptionalString) IsClear() bool { return o.set && o.null }

// Value returns the supplied value and whether there is one.
func (o OptionalString) Value() (string, bool) {
	if !o.set || o.null {
		return "", false
	}
	return o.value, true
}

// UnmarshalJSON implements json.Unmarshaler. It is only invoked when the
// key exists in the payload, which is what marks the field present.
func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.null = true
		o.value = ""
		return nil
	}
	o.null = false
	return json.Unmarshal(b, &o.value)
}

// MarshalJSON implements json.Marshaler. Absent and cleared values are
// both written as null; use omitempty-free structs with care.
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if v, ok := o.Value(); ok {
		return json.Marshal(v)
	}
	return []byte("null"), nil
}
