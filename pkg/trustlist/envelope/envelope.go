// Package envelope decodes the responses of the upstream key distribution
// services into a sequence of key entries.
//
// Two formats are supported:
//
//   - nested-envelope: {"payload": base64(JSON({"eu_keys": {kid: [{"subjectPk": base64(DER), "keyUsage": [...]}]}}))}
//   - flat-list: [{"kid": ..., "publicKey": base64(DER)}]
//
// The shape of every document is checked against an embedded JSON Schema
// before any entry is produced.
package envelope

import (
	"encoding/base64"
	"fmt"
	"iter"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	// KindNested is the base64 wrapped, nested JSON envelope keyed by kid.
	KindNested = "nested-envelope"
	// KindFlatList is the flat JSON array of {kid, publicKey} objects.
	KindFlatList = "flat-list"
)

// Entry is one key as found at the source, before its DER is interpreted.
type Entry struct {
	KID string
	// Usage is the raw usage list of the source, nil when the source carries
	// no usage metadata.
	Usage []string
	DER   []byte
	// Country is the issuing country when the source provides one.
	Country string
}

// Decoder turns one response body into key entries. The returned sequence is
// lazy and can be ranged over once. When it yields a non-nil error the
// sequence ends; the error is always a *DecodeError.
type Decoder interface {
	Kind() string
	Decode(body []byte) iter.Seq2[Entry, error]
}

// New returns the decoder for kind. country is attached to entries of
// sources that carry no country metadata of their own.
func New(kind, country string) (Decoder, error) {
	switch kind {
	case KindNested:
		return &NestedDecoder{}, nil
	case KindFlatList:
		return &FlatListDecoder{Country: country}, nil
	default:
		return nil, fmt.Errorf("unknown envelope kind %q", kind)
	}
}

// DecodeError reports a response that does not match the expected envelope
// shape: malformed JSON, missing fields, wrong types, or invalid base64.
type DecodeError struct {
	Kind string
	// KID is set when the error concerns a single entry.
	KID string
	Err error
}

func (e *DecodeError) Error() string {
	if e.KID != "" {
		return fmt.Sprintf("invalid %s envelope: key %q: %v", e.Kind, e.KID, e.Err)
	}
	return fmt.Sprintf("invalid %s envelope: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func mustSchema(schema string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded schema: %v", err))
	}
	return s
}

// validate checks document against schema. A syntax error in the document is
// reported as such.
func validate(schema *gojsonschema.Schema, document []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var b strings.Builder
	for _, e := range result.Errors() {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.String())
	}
	return fmt.Errorf("unexpected document shape: %s", b.String())
}

// decodeBase64 accepts padded and unpadded standard base64.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, nil
	}
	if b, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
		return b, nil
	}
	return nil, fmt.Errorf("invalid base64: %w", err)
}
