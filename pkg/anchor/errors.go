package anchor

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/citychests/vault-drop/pkg/solana"
)

// Error is a named program error code.
type Error struct {
	Code uint32
	Name string
	Msg  string
}

func (e Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s (%d)", e.Name, e.Code)
	}
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

// Framework error codes raised by Anchor itself, before program logic runs.
//
// Reference: https://github.com/coral-xyz/anchor/blob/v0.29.0/lang/src/error.rs
var frameworkErrors = map[uint32]Error{
	100:  {100, "InstructionMissing", "8 byte instruction identifier not provided"},
	101:  {101, "InstructionFallbackNotFound", "Fallback functions are not supported"},
	102:  {102, "InstructionDidNotDeserialize", "The program could not deserialize the given instruction"},
	2000: {2000, "ConstraintMut", "A mut constraint was violated"},
	2002: {2002, "ConstraintSigner", "A signer constraint was violated"},
	2003: {2003, "ConstraintRaw", "A raw constraint was violated"},
	2006: {2006, "ConstraintSeeds", "A seeds constraint was violated"},
	3001: {3001, "AccountDiscriminatorNotFound", "No 8 byte discriminator was found on the account"},
	3002: {3002, "AccountDiscriminatorMismatch", "8 byte discriminator did not match what was expected"},
	3003: {3003, "AccountDidNotDeserialize", "Failed to deserialize the account"},
	3005: {3005, "AccountNotEnoughKeys", "Not enough account keys given to the instruction"},
	3006: {3006, "AccountNotMutable", "The given account is not mutable"},
	3007: {3007, "AccountOwnedByWrongProgram", "The given account is owned by a different program than expected"},
	3008: {3008, "InvalidProgramId", "Program ID was not as expected"},
	3010: {3010, "AccountNotSigner", "The given account did not sign"},
	3012: {3012, "AccountNotInitialized", "The program expected this account to be already initialized"},
}

// FrameworkError returns the Anchor framework error for code.
func FrameworkError(code uint32) (Error, bool) {
	e, ok := frameworkErrors[code]
	return e, ok
}

// ProgramError resolves the custom error code carried by err, first against
// the IDL's error list and then against Anchor's framework errors.
func (p *Program) ProgramError(err error) (Error, bool) {
	var txErr *solana.TransactionError
	if !errors.As(err, &txErr) || txErr.InstructionError() == nil {
		return Error{}, false
	}

	custom := txErr.InstructionError().CustomError()
	if custom == nil {
		return Error{}, false
	}

	code := uint32(*custom)
	for _, e := range p.idl.Errors {
		if e.Code == code {
			return Error{Code: e.Code, Name: e.Name, Msg: e.Msg}, true
		}
	}

	return FrameworkError(code)
}
