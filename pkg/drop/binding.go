package drop

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"

	"github.com/citychests/vault-drop/pkg/anchor"
	"github.com/citychests/vault-drop/pkg/citychests"
	"github.com/citychests/vault-drop/pkg/solana"
)

// IDLNotFoundError reports a program without a published IDL account.
type IDLNotFoundError struct {
	Program ed25519.PublicKey
}

func (e *IDLNotFoundError) Error() string {
	return "IDL not found for program " + base58.Encode(e.Program)
}

func (e *IDLNotFoundError) Cause() error {
	return anchor.ErrIDLNotFound
}

func (e *IDLNotFoundError) Unwrap() error {
	return anchor.ErrIDLNotFound
}

// BindProgram fetches the program's IDL from the network and builds a typed
// handle over it.
func BindProgram(client solana.Client, programID ed25519.PublicKey, commitment solana.Commitment) (*citychests.Program, error) {
	idl, err := anchor.FetchIDL(client, programID, commitment)
	if errors.Cause(err) == anchor.ErrIDLNotFound {
		return nil, &IDLNotFoundError{Program: programID}
	} else if err != nil {
		return nil, err
	}

	return citychests.NewProgram(anchor.NewProgram(programID, idl))
}

// ParseAddress decodes a base58 account address.
func ParseAddress(name, value string) (ed25519.PublicKey, error) {
	b, err := base58.Decode(value)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s", name)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid %s: expected %d bytes, got %d", name, ed25519.PublicKeySize, len(b))
	}
	return b, nil
}
