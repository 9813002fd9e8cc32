package trustlist

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUsage(t *testing.T) {
	tests := map[string]struct {
		given    []string
		expected []KeyUsage
	}{
		"nil means every usage": {
			given:    nil,
			expected: []KeyUsage{"v", "t", "r"},
		},
		"empty means every usage": {
			given:    []string{},
			expected: []KeyUsage{"v", "t", "r"},
		},
		"order of the source is kept": {
			given:    []string{"r", "v"},
			expected: []KeyUsage{"r", "v"},
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, NormalizeUsage(test.given))
		})
	}
}

func TestAllUsagesReturnsCopy(t *testing.T) {
	u := AllUsages()
	u[0] = "x"
	assert.Equal(t, UsageVaccination, AllUsages()[0])
}

func TestTrustedKeyRecord_MarshalJSON(t *testing.T) {
	t.Run("RSA", func(t *testing.T) {
		rec := NewRecord("kid1", []string{"v"}, RSAParameters{E: []byte{1, 0, 1}, N: []byte{0xc3, 0x5a}})
		data, err := json.Marshal(rec)
		require.NoError(t, err)
		assert.JSONEq(t, `{"kid":"kid1","algo":"RSA","usage":["v"],"e":[1,0,1],"n":[195,90]}`, string(data))
	})

	t.Run("EC", func(t *testing.T) {
		x := make([]byte, 32)
		y := make([]byte, 32)
		x[31], y[0] = 7, 255
		rec := NewRecord("kid2", nil, ECParameters{X: x, Y: y})
		data, err := json.Marshal(rec)
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.Equal(t, "EC", raw["algo"])
		assert.Equal(t, []any{"v", "t", "r"}, raw["usage"])
		assert.Len(t, raw["x"], 32)
		assert.Len(t, raw["y"], 32)
		assert.NotContains(t, raw, "e")
		assert.NotContains(t, raw, "n")
	})

	t.Run("record without parameters is an error", func(t *testing.T) {
		_, err := json.Marshal(TrustedKeyRecord{KID: "kid3"})
		assert.Error(t, err)
	})
}

func TestTrustedKeyRecord_UnmarshalJSON(t *testing.T) {
	tests := map[string]struct {
		given     string
		expectErr string
	}{
		"unknown algorithm": {
			given:     `{"kid":"a","algo":"DSA","usage":["v"]}`,
			expectErr: `record "a" has unknown algo "DSA"`,
		},
		"RSA without modulus": {
			given:     `{"kid":"a","algo":"RSA","usage":["v"],"e":[1,0,1]}`,
			expectErr: `RSA record "a" is missing e or n`,
		},
		"EC without y": {
			given:     `{"kid":"a","algo":"EC","usage":["v"],"x":[1]}`,
			expectErr: `EC record "a" is missing x or y`,
		},
		"byte out of range": {
			given:     `{"kid":"a","algo":"RSA","usage":["v"],"e":[256],"n":[1]}`,
			expectErr: "byte value 256 at index 0 is out of range",
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var rec TrustedKeyRecord
			err := json.Unmarshal([]byte(test.given), &rec)
			assert.ErrorContains(t, err, test.expectErr)
		})
	}
}

func TestByteList_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(ByteList{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	data, err = json.Marshal(ByteList{0, 127, 255})
	require.NoError(t, err)
	assert.Equal(t, "[0,127,255]", string(data))
}
