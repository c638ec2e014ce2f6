package data

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
)

// ErrInvalidSigner is returned when the signing key is not a DID URL.
var ErrInvalidSigner = errors.New("invalid signer")

// ErrNoSigTime is returned when the transaction does not contain a sigt header.
var ErrNoSigTime = errors.New("no sigt field")

// FromJWS parses a transaction in compact JWS format. The signature is not checked.
// The signer is the DID part of the kid header, or of the embedded key's kid.
// A transaction without either yields an empty signer.
func FromJWS(transaction string) (*domain.Transaction, error) {
	msg, err := jws.Parse([]byte(transaction))
	if err != nil {
		return nil, err
	}
	signatures := msg.Signatures()
	if len(signatures) == 0 {
		return nil, fmt.Errorf("transaction has no signature")
	}
	headers := signatures[0].ProtectedHeaders()

	sigt, ok := headers.Get("sigt")
	if !ok {
		return nil, ErrNoSigTime
	}
	seconds, ok := sigt.(float64)
	if !ok {
		return nil, fmt.Errorf("%w: sigt is %T", ErrNoSigTime, sigt)
	}

	tx := &domain.Transaction{
		SigTime:     time.Unix(int64(seconds), 0),
		ContentType: headers.ContentType(),
	}

	kid := headers.KeyID()
	if kid == "" && headers.JWK() != nil {
		kid = headers.JWK().KeyID()
	}
	if kid == "" {
		return tx, nil
	}

	did, _, found := strings.Cut(kid, "#")
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSigner, kid)
	}
	tx.Signer = did
	return tx, nil
}
