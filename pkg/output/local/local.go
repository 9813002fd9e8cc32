package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/jetstack/dcc-trustlist/pkg/logs"
	"github.com/jetstack/dcc-trustlist/pkg/output"
)

// Config is the configuration for the local output.
type Config struct {
	Path string
}

// NewOutput creates a new local Output rooted at Path.
func (c *Config) NewOutput(ctx context.Context) (output.Output, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("local output requires a path")
	}
	info, err := os.Stat(c.Path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(c.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %q: %w", c.Path, err)
		}
	case err != nil:
		return nil, err
	case !info.IsDir():
		return nil, fmt.Errorf("%q is an existing file", c.Path)
	}

	return &Output{path: c.Path}, nil
}

// Output writes to files below a local directory
type Output struct {
	path string
}

// Write replaces the file at name, creating parent directories as needed.
// The data is written to a temporary file first so that a reader never sees a
// partially written artifact.
func (o *Output) Write(ctx context.Context, name string, data []byte) error {
	fullpath := filepath.Join(o.path, filepath.FromSlash(name))

	info, err := os.Stat(fullpath)
	if err == nil && info.IsDir() {
		return fmt.Errorf("%q is an existing directory", fullpath)
	}
	if err == nil {
		klog.FromContext(ctx).V(logs.Debug).Info("overwriting existing file", "path", fullpath)
	}

	if err := os.MkdirAll(filepath.Dir(fullpath), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullpath), "."+filepath.Base(fullpath)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), fullpath)
}
