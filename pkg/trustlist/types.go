// Package trustlist provides the record types of the DCC trust-list artifact
// and the Assembler which accumulates, serializes and compresses them.
package trustlist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// KeyUsage is a tag restricting which certificate category a key may be used
// to validate.
type KeyUsage string

const (
	UsageVaccination KeyUsage = "v"
	UsageTest        KeyUsage = "t"
	UsageRecovery    KeyUsage = "r"
)

// AllUsages returns a fresh copy of the full usage set in the order used by
// the artifact.
func AllUsages() []KeyUsage {
	return []KeyUsage{UsageVaccination, UsageTest, UsageRecovery}
}

// NormalizeUsage converts the usage tags found at the source. An empty list
// means the key is trusted for every category.
func NormalizeUsage(tags []string) []KeyUsage {
	if len(tags) == 0 {
		return AllUsages()
	}
	out := make([]KeyUsage, len(tags))
	for i, tag := range tags {
		out[i] = KeyUsage(tag)
	}
	return out
}

// Algorithm is the key family of a TrustedKeyRecord.
type Algorithm string

const (
	AlgorithmRSA Algorithm = "RSA"
	AlgorithmEC  Algorithm = "EC"
)

// Parameters holds the numeric parameters of one public key. It is either
// RSAParameters or ECParameters.
type Parameters interface {
	Algorithm() Algorithm
	isParameters()
}

// RSAParameters are the public exponent and modulus as minimal big-endian
// unsigned integers.
type RSAParameters struct {
	E []byte
	N []byte
}

func (RSAParameters) Algorithm() Algorithm { return AlgorithmRSA }
func (RSAParameters) isParameters()        {}

// ECParameters are the affine coordinates of a P-256 point, each exactly 32
// bytes.
type ECParameters struct {
	X []byte
	Y []byte
}

func (ECParameters) Algorithm() Algorithm { return AlgorithmEC }
func (ECParameters) isParameters()        {}

// TrustedKeyRecord is one entry of the trust list. Records are never mutated
// after construction.
type TrustedKeyRecord struct {
	KID        string
	Usage      []KeyUsage
	Parameters Parameters
}

// NewRecord builds a record, normalizing the usage tags as read from the
// source.
func NewRecord(kid string, usage []string, params Parameters) TrustedKeyRecord {
	return TrustedKeyRecord{
		KID:        kid,
		Usage:      NormalizeUsage(usage),
		Parameters: params,
	}
}

// Algorithm returns the family of the record's parameters.
func (r TrustedKeyRecord) Algorithm() Algorithm {
	if r.Parameters == nil {
		return ""
	}
	return r.Parameters.Algorithm()
}

// ByteList is a byte sequence that is encoded in JSON as an array of small
// integers instead of base64, so that consumers need no base64 decoder.
type ByteList []byte

func (b ByteList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(b)*4 + 2)
	buf.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(int(v)))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (b *ByteList) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make(ByteList, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte value %d at index %d is out of range", v, i)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// wireRecord is the artifact representation of a TrustedKeyRecord.
type wireRecord struct {
	KID   string     `json:"kid"`
	Algo  Algorithm  `json:"algo"`
	Usage []KeyUsage `json:"usage"`
	E     ByteList   `json:"e,omitempty"`
	N     ByteList   `json:"n,omitempty"`
	X     ByteList   `json:"x,omitempty"`
	Y     ByteList   `json:"y,omitempty"`
}

func (r TrustedKeyRecord) MarshalJSON() ([]byte, error) {
	w := wireRecord{KID: r.KID, Usage: r.Usage}
	switch p := r.Parameters.(type) {
	case RSAParameters:
		w.Algo, w.E, w.N = AlgorithmRSA, p.E, p.N
	case ECParameters:
		w.Algo, w.X, w.Y = AlgorithmEC, p.X, p.Y
	default:
		return nil, fmt.Errorf("record %q has no key parameters", r.KID)
	}
	return json.Marshal(w)
}

func (r *TrustedKeyRecord) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	r.KID = w.KID
	r.Usage = w.Usage
	switch w.Algo {
	case AlgorithmRSA:
		if len(w.E) == 0 || len(w.N) == 0 {
			return fmt.Errorf("RSA record %q is missing e or n", w.KID)
		}
		r.Parameters = RSAParameters{E: w.E, N: w.N}
	case AlgorithmEC:
		if len(w.X) == 0 || len(w.Y) == 0 {
			return fmt.Errorf("EC record %q is missing x or y", w.KID)
		}
		r.Parameters = ECParameters{X: w.X, Y: w.Y}
	default:
		return fmt.Errorf("record %q has unknown algo %q", w.KID, w.Algo)
	}
	return nil
}
