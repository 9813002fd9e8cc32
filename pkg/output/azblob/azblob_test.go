package azblob

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_NewOutput(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("not-a-real-key"))

	t.Run("container is required", func(t *testing.T) {
		_, err := (&Config{AccountName: "acct", AccountKey: key}).NewOutput(t.Context())
		assert.ErrorContains(t, err, "container-name")
	})

	t.Run("credentials are required", func(t *testing.T) {
		t.Setenv("AZURE_STORAGE_ACCOUNT", "")
		t.Setenv("AZURE_STORAGE_ACCESS_KEY", "")
		_, err := (&Config{ContainerName: "trustlist"}).NewOutput(t.Context())
		assert.ErrorContains(t, err, "AZURE_STORAGE_ACCOUNT")
	})

	t.Run("credentials from the environment", func(t *testing.T) {
		t.Setenv("AZURE_STORAGE_ACCOUNT", "acct")
		t.Setenv("AZURE_STORAGE_ACCESS_KEY", key)
		out, err := (&Config{ContainerName: "trustlist", Prefix: "v1"}).NewOutput(t.Context())
		require.NoError(t, err)

		o := out.(*Output)
		assert.Equal(t, "https://acct.blob.core.windows.net/trustlist", o.container.String())
		assert.Equal(t, "v1", o.prefix)
	})
}
