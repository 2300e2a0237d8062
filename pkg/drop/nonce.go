package drop

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNonceExhausted is returned when every drawn nonce already had a record.
var ErrNonceExhausted = errors.New("no unused nonce found")

// NonceSource draws client nonces for new mint records.
type NonceSource func() (uint64, error)

// UUIDNonce folds a random (version 4) UUID into 64 bits. The fixed version
// and variant bits of one half are XORed with random bits of the other.
func UUIDNonce() (uint64, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return 0, errors.Wrap(err, "failed to generate uuid")
	}

	return binary.LittleEndian.Uint64(id[:8]) ^ binary.LittleEndian.Uint64(id[8:]), nil
}
