package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
)

var (
	nestedOuterSchema = mustSchema(`{
		"type": "object",
		"required": ["payload"],
		"properties": {
			"payload": {"type": "string"}
		}
	}`)

	// Only the first element of every kid's list is consulted, so only that
	// element is constrained.
	nestedPayloadSchema = mustSchema(`{
		"type": "object",
		"required": ["eu_keys"],
		"properties": {
			"eu_keys": {
				"type": "object",
				"additionalProperties": {
					"type": "array",
					"minItems": 1,
					"items": [{
						"type": "object",
						"required": ["subjectPk"],
						"properties": {
							"subjectPk": {"type": "string"},
							"keyUsage": {"type": ["array", "null"], "items": {"type": "string"}},
							"ian": {"type": "string"}
						}
					}]
				}
			}
		}
	}`)
)

type nestedOuter struct {
	Payload string `json:"payload"`
}

type nestedKey struct {
	SubjectPK string   `json:"subjectPk"`
	KeyUsage  []string `json:"keyUsage"`
	IAN       string   `json:"ian"`
}

// NestedDecoder decodes the nested-envelope format. Entries are produced in
// the order the kids appear in the eu_keys object.
type NestedDecoder struct{}

func (*NestedDecoder) Kind() string { return KindNested }

func (d *NestedDecoder) Decode(body []byte) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		fail := func(kid string, err error) {
			yield(Entry{}, &DecodeError{Kind: KindNested, KID: kid, Err: err})
		}

		if err := validate(nestedOuterSchema, body); err != nil {
			fail("", err)
			return
		}
		var outer nestedOuter
		if err := json.Unmarshal(body, &outer); err != nil {
			fail("", err)
			return
		}

		payload, err := decodeBase64(outer.Payload)
		if err != nil {
			fail("", fmt.Errorf("payload: %w", err))
			return
		}
		if err := validate(nestedPayloadSchema, payload); err != nil {
			fail("", fmt.Errorf("payload: %w", err))
			return
		}

		err = walkKeys(payload, func(kid string, key nestedKey) bool {
			der, err := decodeBase64(key.SubjectPK)
			if err != nil {
				fail(kid, fmt.Errorf("subjectPk: %w", err))
				return false
			}
			return yield(Entry{
				KID:     kid,
				Usage:   key.KeyUsage,
				DER:     der,
				Country: key.IAN,
			}, nil)
		})
		if err != nil {
			fail("", fmt.Errorf("payload: %w", err))
		}
	}
}

// walkKeys calls fn with the first element of each kid's list in the eu_keys
// object of payload, in document order, until fn returns false. A repeated kid
// keeps its first position and takes its last list. Of repeated eu_keys
// members only the last one is read.
func walkKeys(payload []byte, fn func(kid string, key nestedKey) bool) error {
	euKeys, err := lastMember(payload, "eu_keys")
	if err != nil {
		return err
	}
	if euKeys == nil {
		return errors.New("missing eu_keys")
	}

	kids, lists, err := orderedLists(euKeys)
	if err != nil {
		return err
	}
	for _, kid := range kids {
		list := lists[kid]
		if len(list) == 0 {
			return fmt.Errorf("key %q: empty key list", kid)
		}
		var key nestedKey
		if err := json.Unmarshal(list[0], &key); err != nil {
			return fmt.Errorf("key %q: %w", kid, err)
		}
		if !fn(kid, key) {
			return nil
		}
	}
	return nil
}

// lastMember returns the raw value of the last member called name in the JSON
// object doc, or nil when there is none.
func lastMember(doc []byte, name string) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var found json.RawMessage
	for dec.More() {
		member, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if member == name {
			found = value
		}
	}
	return found, nil
}

// orderedLists reads an object of kid to key list, returning the kids in
// order of first appearance.
func orderedLists(object []byte) ([]string, map[string][]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(object))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, nil, err
	}

	var kids []string
	lists := map[string][]json.RawMessage{}
	for dec.More() {
		kid, err := stringToken(dec)
		if err != nil {
			return nil, nil, err
		}
		var list []json.RawMessage
		if err := dec.Decode(&list); err != nil {
			return nil, nil, fmt.Errorf("key %q: %w", kid, err)
		}
		if _, seen := lists[kid]; !seen {
			kids = append(kids, kid)
		}
		lists[kid] = list
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, nil, err
	}
	return kids, lists, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return s, nil
}
