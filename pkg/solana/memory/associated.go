package memory

import (
	"bytes"

	"github.com/citychests/vault-drop/pkg/solana"
	"github.com/citychests/vault-drop/pkg/solana/token"
)

func associatedTokenProgram(ctx *InstructionContext) error {
	create, err := token.DecompileCreateAssociatedAccount(ctx.Message, ctx.Index)
	if err == solana.ErrIncorrectInstruction {
		return Fail(solana.InstructionErrorInvalidInstructionData)
	} else if err != nil {
		return Fail(solana.InstructionErrorNotEnoughAccountKeys)
	}

	if create.Idempotent {
		ctx.Log("Create Idempotent")
	} else {
		ctx.Log("Create")
	}

	expected, err := token.GetAssociatedAccount(create.Owner, create.Mint)
	if err != nil || !bytes.Equal(expected, create.Address) {
		return Fail(solana.InstructionErrorInvalidSeeds)
	}

	if _, _, err := loadMint(ctx, create.Mint); err != nil {
		return err
	}

	if existing, ok := ctx.Account(create.Address); ok && len(existing.Data) > 0 {
		if !create.Idempotent {
			return ErrorAccountAlreadyInUse
		}

		var account token.Account
		if !bytes.Equal(existing.Owner, token.ProgramKey) ||
			!account.Unmarshal(existing.Data) ||
			!bytes.Equal(account.Owner, create.Owner) ||
			!bytes.Equal(account.Mint, create.Mint) {
			return Fail(solana.InstructionErrorInvalidAccountData)
		}
		return nil
	}

	account := token.Account{
		Mint:  create.Mint,
		Owner: create.Owner,
		State: token.AccountStateInitialized,
	}
	return ctx.CreateAccount(create.Subsidizer, create.Address, token.ProgramKey, account.Marshal())
}
