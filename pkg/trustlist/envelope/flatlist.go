package envelope

import (
	"encoding/json"
	"fmt"
	"iter"
)

var flatListSchema = mustSchema(`{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["kid", "publicKey"],
		"properties": {
			"kid": {"type": "string"},
			"publicKey": {"type": "string"}
		}
	}
}`)

type flatListKey struct {
	KID       string `json:"kid"`
	PublicKey string `json:"publicKey"`
}

// FlatListDecoder decodes the flat-list format. The format has no usage
// metadata, so every entry is trusted for all usages.
type FlatListDecoder struct {
	// Country is attached to every entry.
	Country string
}

func (*FlatListDecoder) Kind() string { return KindFlatList }

func (d *FlatListDecoder) Decode(body []byte) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		if err := validate(flatListSchema, body); err != nil {
			yield(Entry{}, &DecodeError{Kind: KindFlatList, Err: err})
			return
		}
		var keys []flatListKey
		if err := json.Unmarshal(body, &keys); err != nil {
			yield(Entry{}, &DecodeError{Kind: KindFlatList, Err: err})
			return
		}

		for _, key := range keys {
			der, err := decodeBase64(key.PublicKey)
			if err != nil {
				yield(Entry{}, &DecodeError{Kind: KindFlatList, KID: key.KID, Err: fmt.Errorf("publicKey: %w", err)})
				return
			}
			if !yield(Entry{KID: key.KID, DER: der, Country: d.Country}, nil) {
				return
			}
		}
	}
}
