// Package keys extracts the numeric parameters of DER encoded
// SubjectPublicKeyInfo structures.
package keys

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/jetstack/dcc-trustlist/pkg/trustlist"
)

// coordinateSize is the fixed width of an EC coordinate in the artifact. All
// supported sources issue P-256 keys.
const coordinateSize = 32

var (
	oidPublicKeyRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}

	// Named curves crypto/x509 can parse. Keys on any other named curve are
	// read from their uncompressed point.
	stdlibCurves = []asn1.ObjectIdentifier{
		{1, 3, 132, 0, 33},          // P-224
		{1, 2, 840, 10045, 3, 1, 7}, // P-256
		{1, 3, 132, 0, 34},          // P-384
		{1, 3, 132, 0, 35},          // P-521
	}
)

// ErrUnsupportedAlgorithm is returned for well-formed keys of a family other
// than RSA or EC. Such keys are left out of the trust list; it is not a
// failure of the run.
var ErrUnsupportedAlgorithm = errors.New("unsupported public key algorithm")

// KeyDecodeError reports a key whose DER could not be decoded.
type KeyDecodeError struct {
	Err error
}

func (e *KeyDecodeError) Error() string {
	return fmt.Sprintf("failed to decode public key: %v", e.Err)
}

func (e *KeyDecodeError) Unwrap() error {
	return e.Err
}

// Extract decodes a DER SubjectPublicKeyInfo and returns its parameters. It
// returns ErrUnsupportedAlgorithm (possibly wrapped) for key families other
// than RSA and EC, and a *KeyDecodeError when the DER is malformed. EC keys on
// a named curve crypto/x509 does not know, such as brainpoolP256r1, are read
// from their uncompressed point.
func Extract(der []byte) (trustlist.Parameters, error) {
	info, err := parseSPKI(der)
	if err != nil {
		return nil, &KeyDecodeError{Err: err}
	}
	if !info.algorithm.Equal(oidPublicKeyRSA) && !info.algorithm.Equal(oidPublicKeyECDSA) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, info.algorithm)
	}
	if info.algorithm.Equal(oidPublicKeyECDSA) && info.namedCurve != nil && !isStdlibCurve(info.namedCurve) {
		return pointParameters(info.publicKey)
	}

	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, &KeyDecodeError{Err: err}
	}

	switch k := pub.(type) {
	case *rsa.PublicKey:
		return RSAParameters(k), nil
	case *ecdsa.PublicKey:
		return ECParameters(k)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedAlgorithm, pub)
	}
}

// RSAParameters returns the exponent and modulus of k as minimal big-endian
// unsigned integers.
func RSAParameters(k *rsa.PublicKey) trustlist.RSAParameters {
	return trustlist.RSAParameters{
		E: big.NewInt(int64(k.E)).Bytes(),
		N: k.N.Bytes(),
	}
}

// ECParameters returns the affine coordinates of k, each left padded to 32
// bytes. The curve is not checked; a coordinate that does not fit in 32 bytes
// is an error.
func ECParameters(k *ecdsa.PublicKey) (trustlist.ECParameters, error) {
	return coordinates(k.X, k.Y)
}

// pointParameters reads the coordinates of an uncompressed SEC 1 point. The
// point is not checked to be on its curve.
func pointParameters(point []byte) (trustlist.ECParameters, error) {
	if len(point) == 0 || point[0] != 4 || len(point)%2 != 1 {
		return trustlist.ECParameters{}, &KeyDecodeError{Err: errors.New("EC point is not in uncompressed form")}
	}
	size := (len(point) - 1) / 2
	return coordinates(
		new(big.Int).SetBytes(point[1:1+size]),
		new(big.Int).SetBytes(point[1+size:]),
	)
}

func coordinates(xv, yv *big.Int) (trustlist.ECParameters, error) {
	x, err := fixedWidth(xv)
	if err != nil {
		return trustlist.ECParameters{}, &KeyDecodeError{Err: fmt.Errorf("x coordinate: %w", err)}
	}
	y, err := fixedWidth(yv)
	if err != nil {
		return trustlist.ECParameters{}, &KeyDecodeError{Err: fmt.Errorf("y coordinate: %w", err)}
	}
	return trustlist.ECParameters{X: x, Y: y}, nil
}

func fixedWidth(v *big.Int) ([]byte, error) {
	if v.Sign() < 0 || (v.BitLen()+7)/8 > coordinateSize {
		return nil, fmt.Errorf("value does not fit in %d bytes (curve is not P-256?)", coordinateSize)
	}
	return v.FillBytes(make([]byte, coordinateSize)), nil
}

type spki struct {
	algorithm asn1.ObjectIdentifier
	// namedCurve is set when the algorithm parameters are an OID.
	namedCurve asn1.ObjectIdentifier
	publicKey  []byte
}

// parseSPKI reads a SubjectPublicKeyInfo without interpreting the key itself:
//
//	SubjectPublicKeyInfo ::= SEQUENCE {
//	    algorithm        AlgorithmIdentifier,
//	    subjectPublicKey BIT STRING }
//
//	AlgorithmIdentifier ::= SEQUENCE {
//	    algorithm  OBJECT IDENTIFIER,
//	    parameters ANY DEFINED BY algorithm OPTIONAL }
func parseSPKI(der []byte) (*spki, error) {
	input := cryptobyte.String(der)
	var seq, algorithm cryptobyte.String
	info := &spki{}

	if !input.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
		return nil, errors.New("malformed SubjectPublicKeyInfo")
	}
	if !input.Empty() {
		return nil, errors.New("trailing data after SubjectPublicKeyInfo")
	}
	if !seq.ReadASN1(&algorithm, cryptobyte_asn1.SEQUENCE) {
		return nil, errors.New("malformed algorithm identifier")
	}
	if !algorithm.ReadASN1ObjectIdentifier(&info.algorithm) {
		return nil, errors.New("malformed algorithm OID")
	}
	if algorithm.PeekASN1Tag(cryptobyte_asn1.OBJECT_IDENTIFIER) {
		var curve asn1.ObjectIdentifier
		if !algorithm.ReadASN1ObjectIdentifier(&curve) {
			return nil, errors.New("malformed curve OID")
		}
		info.namedCurve = curve
	}

	var bits asn1.BitString
	if !seq.ReadASN1BitString(&bits) {
		return nil, errors.New("missing subjectPublicKey")
	}
	if bits.BitLength%8 != 0 {
		return nil, errors.New("subjectPublicKey is not a whole number of bytes")
	}
	info.publicKey = bits.RightAlign()
	return info, nil
}

func isStdlibCurve(oid asn1.ObjectIdentifier) bool {
	for _, c := range stdlibCurves {
		if oid.Equal(c) {
			return true
		}
	}
	return false
}
