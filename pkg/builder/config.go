package builder

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/jetstack/dcc-trustlist/pkg/auxfiles"
	"github.com/jetstack/dcc-trustlist/pkg/fetch"
	"github.com/jetstack/dcc-trustlist/pkg/output"
	"github.com/jetstack/dcc-trustlist/pkg/output/azblob"
	"github.com/jetstack/dcc-trustlist/pkg/output/gcs"
	"github.com/jetstack/dcc-trustlist/pkg/output/local"
	"github.com/jetstack/dcc-trustlist/pkg/pathutils"
	"github.com/jetstack/dcc-trustlist/pkg/trustlist"
	"github.com/jetstack/dcc-trustlist/pkg/trustlist/envelope"
)

const (
	// DefaultArtifactName is the name the compressed trust list is written as.
	DefaultArtifactName = "pub_keys.json.gz"

	defaultEUKeysURL = "https://verifier-api.coronacheck.nl/v4/verifier/public_keys"
	defaultUKKeysURL = "https://covid-status.service.nhsx.nhs.uk/pubkeys/keys.json"
)

// Config describes one build of the trust list.
type Config struct {
	// Sources are processed, and appear in the artifact, in this order.
	Sources       []Source                  `yaml:"sources"`
	Artifact      string                    `yaml:"artifact"`
	Output        OutputConfig              `yaml:"output"`
	AuxFiles      auxfiles.Config           `yaml:"aux-files"`
	HTTP          HTTPConfig                `yaml:"http"`
	DuplicateKIDs trustlist.DuplicatePolicy `yaml:"duplicate-kids"`
}

// Source is one upstream key distribution service.
type Source struct {
	Name string `yaml:"name"`
	// Kind is the envelope format, see envelope.KindNested and
	// envelope.KindFlatList.
	Kind string `yaml:"kind"`
	URL  string `yaml:"url"`
	// Country is attached to the keys of sources without country metadata.
	Country string `yaml:"country,omitempty"`
}

// OutputConfig selects where the artifact and auxiliary files are written.
type OutputConfig struct {
	Type string `yaml:"type"`
	// For local
	Path string `yaml:"path,omitempty"`
	// For GCS
	BucketName      string `yaml:"bucket-name,omitempty"`
	CredentialsPath string `yaml:"credentials-path,omitempty"`
	// For AZBlob
	ContainerName string `yaml:"container-name,omitempty"`
	AccountName   string `yaml:"account-name,omitempty"`
	AccountKey    string `yaml:"account-key,omitempty"`
	// For GCS and AZBlob
	Prefix string `yaml:"prefix,omitempty"`
}

// HTTPConfig bounds upstream requests.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	Retries   int           `yaml:"retries"`
	RetryWait time.Duration `yaml:"retry-wait"`
}

// DefaultConfig returns the configuration used when no config file is given:
// the EU and UK key services, the DCC value sets, and a local output in the
// working directory.
func DefaultConfig() Config {
	opts := fetch.DefaultOptions()
	return Config{
		Sources: []Source{
			{Name: "eu", Kind: envelope.KindNested, URL: defaultEUKeysURL},
			{Name: "uk", Kind: envelope.KindFlatList, URL: defaultUKKeysURL, Country: "UK"},
		},
		Artifact: DefaultArtifactName,
		Output: OutputConfig{
			Type: output.TypeLocal,
			Path: ".",
		},
		AuxFiles: auxfiles.Config{
			BaseURL: auxfiles.DefaultBaseURL,
			Files:   auxfiles.DefaultFiles(),
		},
		HTTP: HTTPConfig{
			Timeout:   opts.Timeout,
			Retries:   opts.Retries,
			RetryWait: opts.RetryWait,
		},
		DuplicateKIDs: trustlist.DuplicatesAllow,
	}
}

// ParseConfig reads a YAML config. Fields missing from data keep their
// default value; lists given in data replace the default lists.
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()

	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return config, errors.Wrap(err, "failed to parse config")
	}

	if err := config.validate(); err != nil {
		return config, err
	}

	return config, nil
}

// LoadConfig reads the config file at path, or returns the defaults when path
// is empty.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		config := DefaultConfig()
		return config, config.validate()
	}

	data, err := os.ReadFile(pathutils.ExpandHome(path))
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to load config file from %s", path)
	}
	return ParseConfig(data)
}

// Dump generates a YAML string of the Config object with secrets redacted.
func (c *Config) Dump() (string, error) {
	redacted := *c
	if redacted.Output.AccountKey != "" {
		redacted.Output.AccountKey = "<redacted>"
	}

	d, err := yaml.Marshal(&redacted)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate YAML dump of config")
	}

	return string(d), nil
}

// FetchOptions returns the options for the upstream HTTP client.
func (c *Config) FetchOptions() fetch.Options {
	return fetch.Options{
		Timeout:   c.HTTP.Timeout,
		Retries:   c.HTTP.Retries,
		RetryWait: c.HTTP.RetryWait,
	}
}

// NewOutput creates the configured output.
func (c *Config) NewOutput(ctx context.Context) (output.Output, error) {
	var cfg output.Config
	switch c.Output.Type {
	case output.TypeLocal:
		cfg = &local.Config{Path: pathutils.ExpandHome(c.Output.Path)}
	case output.TypeGCS:
		cfg = &gcs.Config{
			BucketName:      c.Output.BucketName,
			Prefix:          c.Output.Prefix,
			CredentialsPath: pathutils.ExpandHome(c.Output.CredentialsPath),
		}
	case output.TypeAZBlob:
		cfg = &azblob.Config{
			ContainerName: c.Output.ContainerName,
			Prefix:        c.Output.Prefix,
			AccountName:   c.Output.AccountName,
			AccountKey:    c.Output.AccountKey,
		}
	default:
		return nil, fmt.Errorf("output type not recognised: %q", c.Output.Type)
	}
	return cfg.NewOutput(ctx)
}

func (c *Config) validate() error {
	var result *multierror.Error

	if len(c.Sources) == 0 {
		result = multierror.Append(result, fmt.Errorf("at least one source is required"))
	}

	names := map[string]bool{}
	for i, s := range c.Sources {
		if s.Name == "" {
			result = multierror.Append(result, fmt.Errorf("source %d/%d is missing a name", i+1, len(c.Sources)))
		} else if names[s.Name] {
			result = multierror.Append(result, fmt.Errorf("source name %q is used more than once", s.Name))
		}
		names[s.Name] = true

		if _, err := envelope.New(s.Kind, s.Country); err != nil {
			result = multierror.Append(result, fmt.Errorf("source %d/%d: %w", i+1, len(c.Sources), err))
		}

		if s.URL == "" {
			result = multierror.Append(result, fmt.Errorf("source %d/%d is missing a url", i+1, len(c.Sources)))
		} else if u, err := url.Parse(s.URL); err != nil || u.Scheme == "" || (u.Host == "" && u.Scheme != "file") {
			result = multierror.Append(result, fmt.Errorf("source %d/%d has an invalid url %q", i+1, len(c.Sources), s.URL))
		}
	}

	if c.Artifact == "" {
		result = multierror.Append(result, fmt.Errorf("artifact name is required"))
	}

	switch c.Output.Type {
	case output.TypeLocal:
		if c.Output.Path == "" {
			result = multierror.Append(result, fmt.Errorf("output path is required for the local output"))
		}
	case output.TypeGCS:
		if c.Output.BucketName == "" {
			result = multierror.Append(result, fmt.Errorf("output bucket-name is required for the gcs output"))
		}
	case output.TypeAZBlob:
		if c.Output.ContainerName == "" {
			result = multierror.Append(result, fmt.Errorf("output container-name is required for the azblob output"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("output type must be one of %q, %q or %q, got %q", output.TypeLocal, output.TypeGCS, output.TypeAZBlob, c.Output.Type))
	}

	for i, f := range c.AuxFiles.Files {
		if f.Name == "" {
			result = multierror.Append(result, fmt.Errorf("aux file %d/%d is missing a name", i+1, len(c.AuxFiles.Files)))
			continue
		}
		if _, err := c.AuxFiles.Location(f); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if c.HTTP.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("http timeout must not be negative"))
	}
	if c.HTTP.Retries < 0 {
		result = multierror.Append(result, fmt.Errorf("http retries must not be negative"))
	}

	if !c.DuplicateKIDs.Valid() {
		result = multierror.Append(result, fmt.Errorf("duplicate-kids must be one of %q, %q or %q, got %q",
			trustlist.DuplicatesAllow, trustlist.DuplicatesKeepFirst, trustlist.DuplicatesReject, c.DuplicateKIDs))
	}

	return result.ErrorOrNil()
}
