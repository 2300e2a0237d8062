package memory

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"

	"github.com/citychests/vault-drop/pkg/solana"
)

// Program executes one instruction against the ledger. Returning a
// solana.CustomError (or an error produced by Fail) aborts the transaction
// with the matching instruction error.
type Program func(ctx *InstructionContext) error

// InstructionContext gives a program access to the accounts of the
// transaction being processed. Writes land in a working copy that is only
// committed when every instruction succeeds.
type InstructionContext struct {
	Message     solana.Message
	Index       int
	Instruction solana.Instruction

	// UnixTimestamp is the ledger clock at processing time.
	UnixTimestamp int64

	accounts map[string]solana.AccountInfo
	logs     []string
}

type instructionFailure solana.InstructionErrorKey

func (f instructionFailure) Error() string {
	return string(f)
}

// Fail returns an error that surfaces as the runtime instruction error key.
func Fail(key solana.InstructionErrorKey) error {
	return instructionFailure(key)
}

func toInstructionError(index int, err error) *solana.InstructionError {
	var custom solana.CustomError
	if errors.As(err, &custom) {
		return solana.NewCustomInstructionError(index, uint32(custom))
	}

	var failure instructionFailure
	if errors.As(err, &failure) {
		return solana.NewInstructionError(index, solana.InstructionErrorKey(failure))
	}

	return solana.NewInstructionError(index, solana.InstructionErrorGenericError)
}

// Account returns a copy of the account at the address.
func (c *InstructionContext) Account(pub ed25519.PublicKey) (solana.AccountInfo, bool) {
	info, ok := c.accounts[string(pub)]
	if !ok {
		return solana.AccountInfo{}, false
	}
	return cloneAccount(info), true
}

// IsSigner reports whether the address signed the transaction.
func (c *InstructionContext) IsSigner(pub ed25519.PublicKey) bool {
	for i, a := range c.Message.Accounts {
		if bytes.Equal(a, pub) {
			return c.Message.IsSigner(i)
		}
	}
	return false
}

// SetAccount replaces the account state. The account must be passed to the
// instruction as writable.
func (c *InstructionContext) SetAccount(pub ed25519.PublicKey, info solana.AccountInfo) error {
	var writable bool
	for _, a := range c.Instruction.Accounts {
		if bytes.Equal(a.PublicKey, pub) && a.IsWritable {
			writable = true
			break
		}
	}
	if !writable {
		return Fail(solana.InstructionErrorReadonlyDataModified)
	}

	c.accounts[string(pub)] = cloneAccount(info)
	return nil
}

// CreateAccount funds a rent-exempt account holding data from payer, the way
// a program allocates through the system program.
func (c *InstructionContext) CreateAccount(payer, address, owner ed25519.PublicKey, data []byte) error {
	if existing, ok := c.accounts[string(address)]; ok && (existing.Lamports > 0 || len(existing.Data) > 0) {
		c.Log("Allocate: account %s already in use", base58.Encode(address))
		return ErrorAccountAlreadyInUse
	}
	if !c.IsSigner(payer) {
		return Fail(solana.InstructionErrorMissingRequiredSignature)
	}

	rent := RentExemptMinimum(uint64(len(data)))
	funder, _ := c.Account(payer)
	if funder.Lamports < rent {
		c.Log("Transfer: insufficient lamports %d, need %d", funder.Lamports, rent)
		return ErrorResultWithNegativeLamports
	}
	funder.Lamports -= rent

	if err := c.SetAccount(payer, funder); err != nil {
		return err
	}

	return c.SetAccount(address, solana.AccountInfo{
		Data:     append([]byte(nil), data...),
		Owner:    owner,
		Lamports: rent,
	})
}

// Log appends a program log line.
func (c *InstructionContext) Log(format string, args ...interface{}) {
	c.logs = append(c.logs, "Program log: "+fmt.Sprintf(format, args...))
}

func cloneAccount(info solana.AccountInfo) solana.AccountInfo {
	info.Data = append([]byte(nil), info.Data...)
	info.Owner = append(ed25519.PublicKey(nil), info.Owner...)
	return info
}
