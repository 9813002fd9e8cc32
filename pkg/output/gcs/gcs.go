package gcs

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jetstack/dcc-trustlist/pkg/output"
)

// Config is the configuration for the GCS output.
type Config struct {
	BucketName string
	// Prefix is prepended to every object name.
	Prefix          string
	CredentialsPath string
}

// NewOutput creates a new GCS Output. When CredentialsPath is empty the
// application default credentials are used.
func (c *Config) NewOutput(ctx context.Context) (output.Output, error) {
	if c.BucketName == "" {
		return nil, fmt.Errorf("gcs output requires a bucket name")
	}

	var opts []option.ClientOption
	if c.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(c.CredentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open Google Cloud Storage connection: %w", err)
	}

	return &Output{
		bucket: client.Bucket(c.BucketName),
		prefix: c.Prefix,
	}, nil
}

// Output writes to a Google Cloud Storage bucket
type Output struct {
	bucket *storage.BucketHandle
	prefix string
}

// Write uploads data as the object name.
func (o *Output) Write(ctx context.Context, name string, data []byte) (err error) {
	object := o.bucket.Object(path.Join(o.prefix, name))
	writer := object.NewWriter(ctx)
	defer func() {
		// make sure we return err, so we cover the case of errors happening in the deferred closing.
		if closeErr := writer.Close(); err == nil {
			err = closeErr
		}
	}()

	_, err = writer.Write(data)
	return err
}
