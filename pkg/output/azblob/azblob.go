package azblob

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/jetstack/dcc-trustlist/pkg/output"
)

// Config is the configuration for the Azure Blob Storage output. AccountName
// and AccountKey fall back to the AZURE_STORAGE_ACCOUNT and
// AZURE_STORAGE_ACCESS_KEY environment variables.
type Config struct {
	ContainerName string
	Prefix        string
	AccountName   string
	AccountKey    string
}

// NewOutput creates a new Azure Blob Storage Output.
func (c *Config) NewOutput(ctx context.Context) (output.Output, error) {
	accountName := c.AccountName
	if accountName == "" {
		accountName = os.Getenv("AZURE_STORAGE_ACCOUNT")
	}
	accountKey := c.AccountKey
	if accountKey == "" {
		accountKey = os.Getenv("AZURE_STORAGE_ACCESS_KEY")
	}

	if c.ContainerName == "" {
		return nil, fmt.Errorf("missing 'container-name' property in azblob output configuration")
	}
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("either the AZURE_STORAGE_ACCOUNT or AZURE_STORAGE_ACCESS_KEY environment variable is not set")
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	container, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net/%s", accountName, c.ContainerName))
	if err != nil {
		return nil, err
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})
	return &Output{
		container: azblob.NewContainerURL(*container, pipeline),
		prefix:    c.Prefix,
	}, nil
}

// Output writes to an Azure Blob Storage container
type Output struct {
	container azblob.ContainerURL
	prefix    string
}

// Write uploads data as the block blob name.
func (o *Output) Write(ctx context.Context, name string, data []byte) error {
	blobURL := o.container.NewBlockBlobURL(path.Join(o.prefix, name))

	_, err := azblob.UploadStreamToBlockBlob(ctx, bytes.NewReader(data), blobURL, azblob.UploadStreamToBlockBlobOptions{
		// values chosen arbitrarily
		BufferSize: 2 * 1024 * 1024,
		MaxBuffers: 3,
	})
	return err
}
