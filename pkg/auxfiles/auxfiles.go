// Package auxfiles copies the auxiliary reference documents a verifier needs
// next to the trust list, such as the DCC value sets. Documents are stored
// exactly as served.
package auxfiles

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Jeffail/gabs/v2"
	"github.com/hashicorp/go-multierror"
	"k8s.io/klog/v2"

	"github.com/jetstack/dcc-trustlist/pkg/fetch"
	"github.com/jetstack/dcc-trustlist/pkg/logs"
	"github.com/jetstack/dcc-trustlist/pkg/output"
	"github.com/jetstack/dcc-trustlist/pkg/trustlist"
)

// DefaultBaseURL is the versioned location of the DCC value sets.
const DefaultBaseURL = "https://raw.githubusercontent.com/ehn-dcc-development/ehn-dcc-valuesets/release/2.0.0/"

// DefaultFiles is the list of value sets a verifier loads.
func DefaultFiles() []File {
	names := []string{
		"country-2-codes.json",
		"disease-agent-targeted.json",
		"vaccine-prophylaxis.json",
		"vaccine-medicinal-product.json",
		"vaccine-mah-manf.json",
		"test-type.json",
		"test-result.json",
		"test-manf.json",
	}
	files := make([]File, len(names))
	for i, name := range names {
		files[i] = File{Name: name}
	}
	return files
}

// File is one auxiliary document.
type File struct {
	Name string `yaml:"name"`
	// URL overrides BaseURL+Name.
	URL string `yaml:"url,omitempty"`
	// Gzip stores the document compressed as Name+".gz".
	Gzip bool `yaml:"gzip,omitempty"`
}

// Config lists the documents to copy.
type Config struct {
	BaseURL string `yaml:"base-url"`
	Files   []File `yaml:"files"`
}

// Location returns the URL f is fetched from.
func (c *Config) Location(f File) (string, error) {
	if f.URL != "" {
		return f.URL, nil
	}
	if c.BaseURL == "" {
		return "", fmt.Errorf("file %q has no url and no base-url is configured", f.Name)
	}
	return url.JoinPath(c.BaseURL, f.Name)
}

// OutputName returns the name f is written as.
func (f File) OutputName() string {
	if f.Gzip {
		return f.Name + ".gz"
	}
	return f.Name
}

// Copy fetches every configured document and writes it to out. A failure for
// one document does not stop the others; all failures are returned together.
func Copy(ctx context.Context, cfg Config, fetcher fetch.Fetcher, out output.Output) error {
	logger := klog.FromContext(ctx).WithName("auxfiles")
	var result *multierror.Error
	written := map[string]bool{}

	for _, f := range cfg.Files {
		if written[f.OutputName()] {
			logger.V(logs.Debug).Info("skipping file listed more than once", "name", f.Name)
			continue
		}

		if err := copyFile(klog.NewContext(ctx, logger), cfg, f, fetcher, out); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", f.Name, err))
			continue
		}
		written[f.OutputName()] = true
	}

	return result.ErrorOrNil()
}

func copyFile(ctx context.Context, cfg Config, f File, fetcher fetch.Fetcher, out output.Output) error {
	location, err := cfg.Location(f)
	if err != nil {
		return err
	}

	body, err := fetcher.Fetch(ctx, location)
	if err != nil {
		return err
	}

	doc, err := gabs.ParseJSON(body)
	if err != nil {
		return fmt.Errorf("response from %s is not JSON: %w", location, err)
	}
	logValueSet(ctx, f.Name, doc)

	data := body
	if f.Gzip {
		if data, err = trustlist.Compress(body); err != nil {
			return err
		}
	}

	if err := out.Write(ctx, f.OutputName(), data); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}
	return nil
}

// logValueSet describes a DCC value set; other documents are only named.
func logValueSet(ctx context.Context, name string, doc *gabs.Container) {
	logger := klog.FromContext(ctx).WithValues("name", name)

	id, ok := doc.Path("valueSetId").Data().(string)
	if !ok {
		logger.Info("copied auxiliary file")
		return
	}
	logger.Info("copied value set",
		"valueSetId", id,
		"valueSetDate", doc.Path("valueSetDate").Data(),
		"values", len(doc.Path("valueSetValues").ChildrenMap()),
	)
}
