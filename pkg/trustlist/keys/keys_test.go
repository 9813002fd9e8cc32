package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetstack/dcc-trustlist/pkg/testutil"
	"github.com/jetstack/dcc-trustlist/pkg/trustlist"
)

func TestExtract_RSA(t *testing.T) {
	pub, der := testutil.RSAKey(t, 2048)

	params, err := Extract(der)
	require.NoError(t, err)

	rsaParams, ok := params.(trustlist.RSAParameters)
	require.True(t, ok, "expected RSAParameters, got %T", params)
	assert.Equal(t, []byte{0x01, 0x00, 0x01}, rsaParams.E)
	assert.Equal(t, pub.N, new(big.Int).SetBytes(rsaParams.N))
	assert.Len(t, rsaParams.N, 256)
	assert.Equal(t, int64(pub.E), new(big.Int).SetBytes(rsaParams.E).Int64())
}

func TestExtract_EC(t *testing.T) {
	pub, der := testutil.ECKey(t, elliptic.P256())

	params, err := Extract(der)
	require.NoError(t, err)

	ecParams, ok := params.(trustlist.ECParameters)
	require.True(t, ok, "expected ECParameters, got %T", params)
	assert.Len(t, ecParams.X, 32)
	assert.Len(t, ecParams.Y, 32)
	assert.Equal(t, pub.X, new(big.Int).SetBytes(ecParams.X))
	assert.Equal(t, pub.Y, new(big.Int).SetBytes(ecParams.Y))
}

func TestECParameters_PadsShortCoordinates(t *testing.T) {
	k := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     big.NewInt(0x0102),
		Y:     big.NewInt(1),
	}

	params, err := ECParameters(k)
	require.NoError(t, err)

	expectedX := make([]byte, 32)
	expectedX[30], expectedX[31] = 0x01, 0x02
	expectedY := make([]byte, 32)
	expectedY[31] = 0x01
	assert.Equal(t, expectedX, params.X)
	assert.Equal(t, expectedY, params.Y)
}

func TestExtract_WideCoordinatesAreDecodeErrors(t *testing.T) {
	_, der := testutil.ECKey(t, elliptic.P384())

	_, err := Extract(der)
	var decodeErr *KeyDecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.NotErrorIs(t, err, ErrUnsupportedAlgorithm)
}

// namedCurveKey returns the DER SubjectPublicKeyInfo of an EC point on the
// named curve.
func namedCurveKey(t *testing.T, curve asn1.ObjectIdentifier, point []byte) []byte {
	t.Helper()
	params, err := asn1.Marshal(curve)
	require.NoError(t, err)
	der, err := asn1.Marshal(struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  oidPublicKeyECDSA,
			Parameters: asn1.RawValue{FullBytes: params},
		},
		PublicKey: asn1.BitString{Bytes: point, BitLength: 8 * len(point)},
	})
	require.NoError(t, err)
	return der
}

func TestExtract_OtherNamedCurves(t *testing.T) {
	brainpoolP256r1 := asn1.ObjectIdentifier{1, 3, 36, 3, 3, 2, 8, 1, 1, 7}

	x := make([]byte, 32)
	x[31] = 0x2a
	y := make([]byte, 32)
	for i := range y {
		y[i] = 0xff
	}
	point := append(append([]byte{0x04}, x...), y...)

	t.Run("uncompressed point", func(t *testing.T) {
		params, err := Extract(namedCurveKey(t, brainpoolP256r1, point))
		require.NoError(t, err)
		assert.Equal(t, trustlist.ECParameters{X: x, Y: y}, params)
	})

	t.Run("compressed point", func(t *testing.T) {
		compressed := append([]byte{0x02}, x...)
		_, err := Extract(namedCurveKey(t, brainpoolP256r1, compressed))
		var decodeErr *KeyDecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.ErrorContains(t, err, "uncompressed")
	})

	t.Run("coordinates wider than 32 bytes", func(t *testing.T) {
		brainpoolP384r1 := asn1.ObjectIdentifier{1, 3, 36, 3, 3, 2, 8, 1, 1, 11}
		wide := make([]byte, 1+2*48)
		wide[0], wide[1] = 0x04, 0x01
		_, err := Extract(namedCurveKey(t, brainpoolP384r1, wide))
		var decodeErr *KeyDecodeError
		require.ErrorAs(t, err, &decodeErr)
	})

	t.Run("known curves still go through crypto/x509", func(t *testing.T) {
		p256 := asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
		// not on the curve
		_, err := Extract(namedCurveKey(t, p256, point))
		var decodeErr *KeyDecodeError
		require.ErrorAs(t, err, &decodeErr)
	})
}

func TestExtract_UnsupportedAlgorithm(t *testing.T) {
	_, err := Extract(testutil.Ed25519Key(t))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	var decodeErr *KeyDecodeError
	assert.False(t, errors.As(err, &decodeErr))
}

func TestExtract_Malformed(t *testing.T) {
	_, der := testutil.RSAKey(t, 1024)

	tests := map[string][]byte{
		"empty":         nil,
		"not DER":       []byte("not a key"),
		"truncated":     der[:len(der)/2],
		"trailing data": append(append([]byte{}, der...), 0x00),
	}
	for name, given := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Extract(given)
			var decodeErr *KeyDecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.NotErrorIs(t, err, ErrUnsupportedAlgorithm)
		})
	}
}
