package trustlist

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"k8s.io/klog/v2"

	"github.com/jetstack/dcc-trustlist/pkg/logs"
	"github.com/jetstack/dcc-trustlist/pkg/output"
)

// DuplicatePolicy selects what the Assembler does with a kid it has already
// accepted.
type DuplicatePolicy string

const (
	// DuplicatesAllow keeps every record, duplicates included.
	DuplicatesAllow DuplicatePolicy = "allow"
	// DuplicatesKeepFirst keeps the first record for a kid and drops later ones.
	DuplicatesKeepFirst DuplicatePolicy = "first"
	// DuplicatesReject fails on the first repeated kid.
	DuplicatesReject DuplicatePolicy = "reject"
)

// Valid reports whether p is a known policy.
func (p DuplicatePolicy) Valid() bool {
	switch p {
	case DuplicatesAllow, DuplicatesKeepFirst, DuplicatesReject:
		return true
	}
	return false
}

// ErrSealed is returned when the Assembler is used after it was sealed.
var ErrSealed = errors.New("trust list is already sealed")

// DuplicateKIDError is returned by Add under DuplicatesReject.
type DuplicateKIDError struct {
	KID         string
	FirstSource string
	Source      string
}

func (e *DuplicateKIDError) Error() string {
	return fmt.Sprintf("kid %q from source %q was already provided by source %q", e.KID, e.Source, e.FirstSource)
}

type state int

const (
	stateEmpty state = iota
	stateAccumulating
	stateSealed
)

// Assembler accumulates records in the order sources and keys are processed
// and serializes them once. It is not safe for concurrent use.
type Assembler struct {
	policy  DuplicatePolicy
	state   state
	records []TrustedKeyRecord
	// seen maps a kid to the source that first provided it.
	seen map[string]string
}

// NewAssembler returns an empty Assembler. An empty policy means
// DuplicatesAllow.
func NewAssembler(policy DuplicatePolicy) *Assembler {
	if policy == "" {
		policy = DuplicatesAllow
	}
	return &Assembler{
		policy:  policy,
		records: []TrustedKeyRecord{},
		seen:    map[string]string{},
	}
}

// Add appends rec, which was read from source.
func (a *Assembler) Add(ctx context.Context, source string, rec TrustedKeyRecord) error {
	if a.state == stateSealed {
		return ErrSealed
	}

	if first, ok := a.seen[rec.KID]; ok {
		logger := klog.FromContext(ctx).WithValues("kid", rec.KID, "source", source, "firstSource", first)
		switch a.policy {
		case DuplicatesReject:
			return &DuplicateKIDError{KID: rec.KID, FirstSource: first, Source: source}
		case DuplicatesKeepFirst:
			logger.Info("dropping duplicate kid")
			return nil
		default:
			logger.Info("duplicate kid in trust list")
		}
	} else {
		a.seen[rec.KID] = source
	}

	a.records = append(a.records, rec)
	a.state = stateAccumulating
	return nil
}

// Len returns the number of accepted records.
func (a *Assembler) Len() int {
	return len(a.records)
}

// Seal ends accumulation and returns the records in insertion order.
func (a *Assembler) Seal() ([]TrustedKeyRecord, error) {
	if a.state == stateSealed {
		return nil, ErrSealed
	}
	a.state = stateSealed
	return a.records, nil
}

// Write seals the Assembler and writes the compressed artifact as name.
func (a *Assembler) Write(ctx context.Context, out output.Output, name string) error {
	records, err := a.Seal()
	if err != nil {
		return err
	}

	data, err := Marshal(records)
	if err != nil {
		return err
	}
	compressed, err := Compress(data)
	if err != nil {
		return err
	}

	klog.FromContext(ctx).V(logs.Debug).Info("writing trust list", "name", name, "records", len(records), "bytes", len(compressed))
	return out.Write(ctx, name, compressed)
}

// Marshal encodes records as a UTF-8 JSON array followed by a newline.
func Marshal(records []TrustedKeyRecord) ([]byte, error) {
	if records == nil {
		records = []TrustedKeyRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode trust list: %w", err)
	}
	return append(data, '\n'), nil
}

// Compress gzips data.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadArtifact decompresses and decodes an artifact written by Write.
func ReadArtifact(r io.Reader) ([]TrustedKeyRecord, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("artifact is not gzip compressed: %w", err)
	}
	defer zr.Close()

	var records []TrustedKeyRecord
	if err := json.NewDecoder(zr).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode trust list: %w", err)
	}
	return records, nil
}
