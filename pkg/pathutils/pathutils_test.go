package pathutils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandHome(t *testing.T) {
	home := HomeDir()
	if home == "" {
		t.Skip("no home directory")
	}

	assert.Equal(t, filepath.Join(home, "trustlist.yaml"), ExpandHome("~/trustlist.yaml"))
	assert.Equal(t, "/etc/trustlist.yaml", ExpandHome("/etc/trustlist.yaml"))
	assert.Equal(t, "~", ExpandHome("~"))
	assert.Equal(t, "", ExpandHome(""))
	assert.Equal(t, "out/~/x", ExpandHome("out/~/x"))
}
