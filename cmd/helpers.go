package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/jetstack/dcc-trustlist/pkg/version"
)

func printVersion(w io.Writer, verbose bool) {
	fmt.Fprintln(w, "trustlist version: ", version.TrustlistVersion, runtime.GOOS+"/"+runtime.GOARCH)
	if verbose {
		fmt.Fprintln(w, "  Commit: ", version.Commit)
		fmt.Fprintln(w, "  Built:  ", version.BuildDate)
		fmt.Fprintln(w, "  Go:     ", runtime.Version())
		fmt.Fprintln(w, "  Agent:  ", version.UserAgent())
	}
}
