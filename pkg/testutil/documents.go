package testutil

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// NestedKey is one kid of a nested-envelope document.
type NestedKey struct {
	KID string
	// Usage is emitted as null when nil.
	Usage []string
	DER   []byte
	IAN   string
}

// NestedEnvelope builds a nested-envelope response with the kids in the given
// order.
func NestedEnvelope(t testing.TB, keys ...NestedKey) []byte {
	t.Helper()

	// eu_keys is written by hand because a Go map would lose the order.
	var b strings.Builder
	b.WriteString(`{"eu_keys":{`)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kid, err := json.Marshal(k.KID)
		require.NoError(t, err)
		entry := map[string]any{
			"subjectPk": base64.StdEncoding.EncodeToString(k.DER),
			"keyUsage":  k.Usage,
		}
		if k.IAN != "" {
			entry["ian"] = k.IAN
		}
		list, err := json.Marshal([]any{entry})
		require.NoError(t, err)
		b.Write(kid)
		b.WriteByte(':')
		b.Write(list)
	}
	b.WriteString(`}}`)

	return WrapPayload(t, []byte(b.String()))
}

// WrapPayload wraps an arbitrary payload in the outer nested-envelope object.
func WrapPayload(t testing.TB, payload []byte) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"payload": base64.StdEncoding.EncodeToString(payload),
	})
	require.NoError(t, err)
	return body
}

// FlatKey is one element of a flat-list document.
type FlatKey struct {
	KID string
	DER []byte
}

// FlatList builds a flat-list response.
func FlatList(t testing.TB, keys ...FlatKey) []byte {
	t.Helper()
	type wire struct {
		KID       string `json:"kid"`
		PublicKey string `json:"publicKey"`
	}
	list := make([]wire, len(keys))
	for i, k := range keys {
		list[i] = wire{KID: k.KID, PublicKey: base64.StdEncoding.EncodeToString(k.DER)}
	}
	body, err := json.Marshal(list)
	require.NoError(t, err)
	return body
}
