// Package testutil builds keys and upstream documents for tests.
package testutil

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/require"
)

// RSAKey generates an RSA key of the given size and returns its public half
// together with its DER SubjectPublicKeyInfo.
func RSAKey(t testing.TB, bits int) (*rsa.PublicKey, []byte) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	return &priv.PublicKey, der
}

// ECKey generates a key on curve and returns its public half together with
// its DER SubjectPublicKeyInfo.
func ECKey(t testing.TB, curve elliptic.Curve) (*ecdsa.PublicKey, []byte) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	return &priv.PublicKey, der
}

// Ed25519Key returns the DER SubjectPublicKeyInfo of a fresh Ed25519 key.
func Ed25519Key(t testing.TB) []byte {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	return der
}
