package version

import (
	"fmt"
	"net/http"
	"runtime"
)

// This variables are injected at build time.

// TrustlistVersion hosts the version of the app.
var TrustlistVersion = "development"

// Commit is the commit hash of the build
var Commit string

// BuildDate is the date it was built
var BuildDate string

// UserAgent returns the User-Agent sent with every upstream request.
func UserAgent() string {
	return fmt.Sprintf("dcc-trustlist/%s (%s/%s)", TrustlistVersion, runtime.GOOS, runtime.GOARCH)
}

// SetUserAgent sets the User-Agent header of req.
func SetUserAgent(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent())
}
