package drop

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// ErrInvalidKeypair indicates the wallet file does not hold a usable keypair.
var ErrInvalidKeypair = errors.New("invalid keypair")

// LoadKeypair reads a Solana CLI keypair file: a JSON array of the 64 bytes
// seed || public key.
func LoadKeypair(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read keypair file")
	}

	var values []int
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, errors.Wrap(ErrInvalidKeypair, err.Error())
	}
	if len(values) != ed25519.PrivateKeySize {
		return nil, errors.Wrapf(ErrInvalidKeypair, "expected %d bytes, got %d", ed25519.PrivateKeySize, len(values))
	}

	b := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, errors.Wrapf(ErrInvalidKeypair, "byte %d out of range: %d", i, v)
		}
		b[i] = byte(v)
	}

	key := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	if !bytes.Equal(key[ed25519.SeedSize:], b[ed25519.SeedSize:]) {
		return nil, errors.Wrap(ErrInvalidKeypair, "public key does not match seed")
	}

	return key, nil
}
