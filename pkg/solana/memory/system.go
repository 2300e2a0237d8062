package memory

import (
	"encoding/binary"

	"github.com/citychests/vault-drop/pkg/solana"
	"github.com/citychests/vault-drop/pkg/solana/system"
)

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/system_instruction.rs#L21
const (
	ErrorAccountAlreadyInUse solana.CustomError = iota
	ErrorResultWithNegativeLamports
)

func systemProgram(ctx *InstructionContext) error {
	if len(ctx.Instruction.Data) < 4 {
		return Fail(solana.InstructionErrorInvalidInstructionData)
	}

	switch binary.LittleEndian.Uint32(ctx.Instruction.Data) {
	case 0:
		return systemCreateAccount(ctx)
	case 2:
		return systemTransfer(ctx)
	default:
		return Fail(solana.InstructionErrorInvalidInstructionData)
	}
}

func systemCreateAccount(ctx *InstructionContext) error {
	create, err := system.DecompileCreateAccount(ctx.Message, ctx.Index)
	if err != nil {
		return Fail(solana.InstructionErrorInvalidInstructionData)
	}

	if !ctx.IsSigner(create.Funder) || !ctx.IsSigner(create.Address) {
		return Fail(solana.InstructionErrorMissingRequiredSignature)
	}

	if existing, ok := ctx.Account(create.Address); ok && (existing.Lamports > 0 || len(existing.Data) > 0) {
		ctx.Log("Create Account: account already in use")
		return ErrorAccountAlreadyInUse
	}

	funder, _ := ctx.Account(create.Funder)
	if funder.Lamports < create.Lamports {
		ctx.Log("Transfer: insufficient lamports %d, need %d", funder.Lamports, create.Lamports)
		return ErrorResultWithNegativeLamports
	}
	funder.Lamports -= create.Lamports

	if err := ctx.SetAccount(create.Funder, funder); err != nil {
		return err
	}
	return ctx.SetAccount(create.Address, solana.AccountInfo{
		Data:     make([]byte, create.Size),
		Owner:    create.Owner,
		Lamports: create.Lamports,
	})
}

func systemTransfer(ctx *InstructionContext) error {
	transfer, err := system.DecompileTransfer(ctx.Message, ctx.Index)
	if err != nil {
		return Fail(solana.InstructionErrorInvalidInstructionData)
	}

	if !ctx.IsSigner(transfer.From) {
		return Fail(solana.InstructionErrorMissingRequiredSignature)
	}

	from, _ := ctx.Account(transfer.From)
	if from.Lamports < transfer.Lamports {
		ctx.Log("Transfer: insufficient lamports %d, need %d", from.Lamports, transfer.Lamports)
		return ErrorResultWithNegativeLamports
	}
	from.Lamports -= transfer.Lamports
	if err := ctx.SetAccount(transfer.From, from); err != nil {
		return err
	}

	to, ok := ctx.Account(transfer.To)
	if !ok {
		to.Owner = system.ProgramKey[:]
	}
	to.Lamports += transfer.Lamports
	return ctx.SetAccount(transfer.To, to)
}
