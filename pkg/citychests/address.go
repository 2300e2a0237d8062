// Package citychests binds the CityChests vault program: its derived
// addresses, account state, error codes and typed instruction builders.
package citychests

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/citychests/vault-drop/pkg/solana"
)

const (
	ConfigSeed = "config"
	RecordSeed = "record"
)

// ConfigAddress returns the program's config PDA and its bump.
func ConfigAddress(program ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(program, []byte(ConfigSeed))
}

// RecordAddress returns the mint record PDA for a recipient and client nonce.
func RecordAddress(program, recipient ed25519.PublicKey, nonce uint64) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(program, []byte(RecordSeed), recipient, NonceSeed(nonce))
}

// NonceSeed is the little-endian encoding of the nonce used as a seed.
func NonceSeed(nonce uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, nonce)
	return b
}
