//go:build e2e

package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorPage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), pageTimeout)
	defer cancel()

	page, err := suite.Open(ctx, suite.Config().URLs.Monitor)
	require.NoError(t, err)
	defer page.Close()

	title, err := page.Title()
	require.NoError(t, err)
	assert.Equal(t, "Nuts monitor", title)

	count, err := page.Text("#documents_count")
	require.NoError(t, err)
	assert.Equal(t, "0", count)
}
