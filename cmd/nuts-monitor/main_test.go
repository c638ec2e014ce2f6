package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	monitor "github.com/nuts-foundation/nuts-monitor"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")

	require.NoError(t, err)
	assert.Equal(t, "nuts-monitor version "+monitor.Version+"\n", out)
}

func TestRoutesCommand(t *testing.T) {
	t.Run("markdown", func(t *testing.T) {
		out, err := execute(t, "routes", "--format", "markdown")

		require.NoError(t, err)
		assert.Contains(t, out, "| `/logout` | logout | logout | - |")
	})
	t.Run("mermaid with highlight", func(t *testing.T) {
		out, err := execute(t, "routes", "--format", "mermaid", "--highlight", "#/network_topology")

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "graph TD\n"))
		assert.Contains(t, out, "class admin_network_topology current;")
	})
	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "routes", "--format", "json", "--highlight", "")

		require.NoError(t, err)
		var entries []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &entries))
		assert.Len(t, entries, 7)
	})
	t.Run("unknown format", func(t *testing.T) {
		_, err := execute(t, "routes", "--format", "dot")

		assert.ErrorContains(t, err, `unknown format "dot"`)
	})
}

func TestResolveCommand(t *testing.T) {
	out, err := execute(t, "resolve", "#/")

	require.NoError(t, err)
	var got resolution
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "/diagnostics", got.Path)
	assert.Equal(t, "/", got.RedirectedFrom)
	assert.Equal(t, []string{"admin", "diagnostics"}, got.Views)

	_, err = execute(t, "resolve")
	assert.Error(t, err)
}
