package tui

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer_NotATerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.md"))
	require.NoError(t, err)
	defer f.Close()

	out, err := NewRenderer(f)("| a | b |\n|---|---|\n")

	require.NoError(t, err)
	assert.Equal(t, "| a | b |\n|---|---|\n", out)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer

	PrintBanner(&buf, "v1.2.3")

	assert.Contains(t, buf.String(), "monitor v1.2.3")
}
