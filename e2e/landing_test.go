//go:build e2e

package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pageTimeout bounds a single page scenario. Navigation itself has no timeout.
const pageTimeout = 30 * time.Second

func TestLandingPage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), pageTimeout)
	defer cancel()

	page, err := suite.Open(ctx, suite.Config().URLs.Node)
	require.NoError(t, err)
	defer page.Close()

	title, err := page.Title()
	require.NoError(t, err)
	assert.Equal(t, "Nuts monitor", title)
}
