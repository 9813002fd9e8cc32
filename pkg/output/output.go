// Package output provides the destinations the trust-list artifact and the
// auxiliary reference files are written to.
package output

import (
	"context"
)

const (
	// TypeLocal writes files below a local directory.
	TypeLocal = "local"
	// TypeGCS writes objects to a Google Cloud Storage bucket.
	TypeGCS = "gcs"
	// TypeAZBlob writes block blobs to an Azure Blob Storage container.
	TypeAZBlob = "azblob"
)

// Output stores named files. Names are slash separated and relative to the
// root of the output.
type Output interface {
	Write(ctx context.Context, name string, data []byte) error
}

// Config constructs an Output.
type Config interface {
	NewOutput(ctx context.Context) (Output, error)
}
