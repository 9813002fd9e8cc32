package version

import (
	"net/http"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetUserAgent(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
	assert.NoError(t, err)

	SetUserAgent(req)
	assert.Equal(t, "dcc-trustlist/development ("+runtime.GOOS+"/"+runtime.GOARCH+")", req.Header.Get("User-Agent"))
}
