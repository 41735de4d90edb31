// File: cmd/main_test.go

package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/actiongate/internal/config"
	"github.com/xkilldash9x/actiongate/internal/observability"
)

// resetForTest isolates a test from package state and from any config file on the machine.
func resetForTest(t *testing.T) {
	t.Helper()

	cfgFile = ""
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})
	t.Cleanup(observability.ResetForTest)
}

// execute runs a fresh root command with args and returns its combined output.
func execute(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
