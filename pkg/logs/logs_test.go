package logs_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"

	"github.com/jetstack/dcc-trustlist/pkg/logs"
)

// TestLogs demonstrates how the logging flags affect the logging output.
//
// The test executes itself as a sub-process because the logging configuration
// is global and can only be applied once.
func TestLogs(t *testing.T) {
	if flags, found := os.LookupEnv("GO_CHILD_FLAG"); found {
		fs := pflag.NewFlagSet("test-logs", pflag.ContinueOnError)
		fs.SetOutput(io.Discard)
		logs.AddFlags(fs)
		if err := fs.Parse(strings.Fields(flags)); err != nil {
			if errors.Is(err, pflag.ErrHelp) {
				fmt.Fprint(os.Stdout, fs.FlagUsages())
				os.Exit(0)
			}
			klog.ErrorS(err, "Exiting due to error", "exit-code", 1)
			klog.FlushAndExit(time.Second, 1)
		}
		if err := logs.Initialize(); err != nil {
			klog.ErrorS(err, "Exiting due to error", "exit-code", 1)
			klog.FlushAndExit(time.Second, 1)
		}

		logger := klog.FromContext(context.Background()).WithName("builder")
		logger.Info("wrote trust list", "records", 4)
		logger.V(logs.Debug).Info("using cached response")
		logger.V(logs.Trace).Info("extracted key", "kid", "abc")
		logger.Error(errors.New("fake-error"), "source contributed no keys", "source", "uk")

		klog.FlushAndExit(time.Second, 0)
	}

	tests := []struct {
		name           string
		flags          string
		expectError    bool
		expectStdout   []string
		unexpectStdout []string
		expectStderr   []string
	}{
		{
			name:  "help",
			flags: "-h",
			expectStdout: []string{
				"-v, --log-level Level",
				"0=Info, 1=Debug, 2=Trace",
				"--logging-format string",
				"--vmodule pattern=N,...",
			},
			unexpectStdout: []string{"split-stream", "feature-gates"},
		},
		{
			name:         "v-long-form-not-available",
			flags:        "--v=3",
			expectError:  true,
			expectStderr: []string{`err="unknown flag: --v"`},
		},
		{
			name:         "logging-format-unrecognized",
			flags:        "--logging-format=foo",
			expectError:  true,
			expectStderr: []string{"Unsupported log format"},
		},
		{
			name:           "defaults",
			expectStdout:   []string{`"wrote trust list" logger="builder" records=4`},
			unexpectStdout: []string{"using cached response", "extracted key"},
			expectStderr:   []string{`"source contributed no keys" err="fake-error" logger="builder" source="uk"`},
		},
		{
			name:           "debug",
			flags:          "--log-level=1",
			expectStdout:   []string{"wrote trust list", "using cached response"},
			unexpectStdout: []string{"extracted key"},
		},
		{
			name:         "trace",
			flags:        "-v 2",
			expectStdout: []string{"wrote trust list", "using cached response", `"extracted key" logger="builder" kid="abc"`},
		},
		{
			name:         "logging-format-json",
			flags:        "--logging-format=json",
			expectStdout: []string{`"msg":"wrote trust list"`, `"records":4`},
			expectStderr: []string{`"msg":"source contributed no keys"`, `"err":"fake-error"`},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(t.Context(), time.Second*10)
			defer cancel()
			cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=^TestLogs$")
			var (
				stdout bytes.Buffer
				stderr bytes.Buffer
			)
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr
			cmd.Env = append(os.Environ(), "GO_CHILD_FLAG="+test.flags)
			err := cmd.Run()

			t.Logf("FLAGS\n%s\n", test.flags)
			t.Logf("STDOUT\n%s\n", stdout.String())
			t.Logf("STDERR\n%s\n", stderr.String())
			if test.expectError {
				var target *exec.ExitError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, 1, target.ExitCode(), "Flag parsing failures should always result in exit code 1")
			} else {
				require.NoError(t, err)
			}

			for _, s := range test.expectStdout {
				assert.Contains(t, stdout.String(), s)
			}
			for _, s := range test.unexpectStdout {
				assert.NotContains(t, stdout.String(), s)
			}
			for _, s := range test.expectStderr {
				assert.Contains(t, stderr.String(), s)
			}
		})
	}
}
