// Package jsonutil wraps github.com/go-json-experiment/json for report,
// API and token encoding.
//
// Usage:
//
//	data, err := jsonutil.MarshalIndent(rep, "", "  ")
//	err := jsonutil.UnmarshalRead(r.Body, &req)
package jsonutil

import (
	"io"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Map keys are always sorted so reports serialize identically across runs.
var deterministic = json.Deterministic(true)

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// UnmarshalRead decodes a single JSON value read from r into v.
func UnmarshalRead(r io.Reader, v any) error {
	return json.UnmarshalRead(r, v)
}

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v, deterministic)
}

// MarshalIndent returns the indented JSON encoding of v.
// The prefix argument is accepted for encoding/json parity and ignored.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return json.Marshal(v, deterministic, jsontext.WithIndent(indent))
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return jsontext.Value(data).IsValid()
}

// Encoder writes newline-terminated JSON values to a stream.
type Encoder struct {
	w      io.Writer
	indent string
}

// NewStreamEncoder creates an encoder that writes to w.
func NewStreamEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// SetIndent formats subsequent values with the given indentation.
func (e *Encoder) SetIndent(prefix, indent string) {
	e.indent = indent
}

// Encode writes the JSON encoding of v followed by a newline.
func (e *Encoder) Encode(v any) error {
	var err error
	if e.indent != "" {
		err = json.MarshalWrite(e.w, v, deterministic, jsontext.WithIndent(e.indent))
	} else {
		err = json.MarshalWrite(e.w, v, deterministic)
	}
	if err != nil {
		return err
	}
	_, err = e.w.Write([]byte{'\n'})
	return err
}
