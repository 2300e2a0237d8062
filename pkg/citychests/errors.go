package citychests

import (
	"github.com/pkg/errors"

	"github.com/citychests/vault-drop/pkg/solana"
)

const (
	ErrorUnauthorized solana.CustomError = 6000 + iota
	ErrorWrongVaultOwner
	ErrorWrongMint
	ErrorWrongAmount
)

var (
	ErrUnauthorized    = errors.New("Unauthorized")
	ErrWrongVaultOwner = errors.New("Wrong vault owner")
	ErrWrongMint       = errors.New("Wrong mint")
	ErrWrongAmount     = errors.New("Wrong amount")
)

var programErrors = map[solana.CustomError]error{
	ErrorUnauthorized:    ErrUnauthorized,
	ErrorWrongVaultOwner: ErrWrongVaultOwner,
	ErrorWrongMint:       ErrWrongMint,
	ErrorWrongAmount:     ErrWrongAmount,
}

// ErrorFromTransaction returns the program error raised by a failed
// transaction, or nil if err does not carry one.
func ErrorFromTransaction(err error) error {
	var txErr *solana.TransactionError
	if !errors.As(err, &txErr) || txErr.InstructionError() == nil {
		return nil
	}

	custom := txErr.InstructionError().CustomError()
	if custom == nil {
		return nil
	}

	return programErrors[*custom]
}
