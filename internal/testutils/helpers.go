package testutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/stretchr/testify/require"
)

// SignTransaction creates a transaction in compact JWS format signed with a fresh P-256 key.
// kid should be a DID URL such as did:nuts:abc#key-1.
// It fails the test immediately on error.
func SignTransaction(t *testing.T, kid, contentType string, sigt time.Time) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err, "Failed to generate signing key")

	headers := jws.NewHeaders()
	require.NoError(t, headers.Set(jws.KeyIDKey, kid))
	require.NoError(t, headers.Set(jws.ContentTypeKey, contentType))
	require.NoError(t, headers.Set("sigt", sigt.Unix()))

	signed, err := jws.Sign([]byte("{}"), jws.WithKey(jwa.ES256, key, jws.WithProtectedHeaders(headers)))
	require.NoError(t, err, "Failed to sign transaction")
	return string(signed)
}

// Listen opens a listener on a free local port and closes it when the test ends.
func Listen(t *testing.T) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "Failed to listen")
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}
