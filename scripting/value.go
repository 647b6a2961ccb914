// Package scripting hosts plugin scripts compiled to WASM and exposes the
// capability surface (windows, processes, stores, logging) they script
// against. The guest/host boundary passes values as a small tagged union,
// JSON-encoded across linear memory as (ptr, len) pairs.
package scripting

import "encoding/json"

// Kind tags the shape of a Value crossing the guest/host boundary.
type Kind string

const (
	KindNil    Kind = "nil"
	KindBool   Kind = "bool"
	KindNumber Kind = "number"
	KindString Kind = "string"
	KindTable  Kind = "table"
)

// Value is the tagged union passed between host and guest in both
// directions. Only the field matching Kind is meaningful.
type Value struct {
	Kind   Kind             `json:"kind"`
	Bool   bool             `json:"bool,omitempty"`
	Number float64          `json:"number,omitempty"`
	String string           `json:"string,omitempty"`
	Table  map[string]Value `json:"table,omitempty"`
}

func Nil() Value                 { return Value{Kind: KindNil} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Number: n} }
func StringValue(s string) Value  { return Value{Kind: KindString, String: s} }
func TableValue(t map[string]Value) Value {
	return Value{Kind: KindTable, Table: t}
}

// MarshalJSON and UnmarshalJSON are the default struct encodings; Value is
// deliberately a plain struct (not a custom encoder) so the wire format
// stays a simple, debuggable JSON object on both sides of the boundary.

// Encode serializes a Value for the wire.
func Encode(v Value) ([]byte, error) {
	return json.Marshal(v)
}

// Decode deserializes a Value read from guest or host memory.
func Decode(data []byte) (Value, error) {
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

// EncodeArgs serializes a call's argument list as a JSON array of Values.
func EncodeArgs(args []Value) ([]byte, error) {
	return json.Marshal(args)
}

// DecodeArgs deserializes a call's argument list.
func DecodeArgs(data []byte) ([]Value, error) {
	var args []Value
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, err
	}
	return args, nil
}
