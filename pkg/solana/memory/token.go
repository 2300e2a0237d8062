package memory

import (
	"bytes"
	"math"

	"github.com/citychests/vault-drop/pkg/solana"
	"github.com/citychests/vault-drop/pkg/solana/token"
)

func tokenProgram(ctx *InstructionContext) error {
	command, err := token.GetCommand(ctx.Message, ctx.Index)
	if err != nil {
		return Fail(solana.InstructionErrorInvalidInstructionData)
	}

	switch command {
	case token.CommandInitializeMint:
		return tokenInitializeMint(ctx)
	case token.CommandMintTo:
		return tokenMintTo(ctx)
	default:
		return token.ErrorInvalidInstruction
	}
}

func tokenInitializeMint(ctx *InstructionContext) error {
	ctx.Log("Instruction: InitializeMint")

	initialize, err := token.DecompileInitializeMint(ctx.Message, ctx.Index)
	if err != nil {
		return token.ErrorInvalidInstruction
	}

	info, ok := ctx.Account(initialize.Mint)
	if !ok {
		return Fail(solana.InstructionErrorUninitializedAccount)
	}
	if !bytes.Equal(info.Owner, token.ProgramKey) {
		return Fail(solana.InstructionErrorIncorrectProgramID)
	}

	var mint token.Mint
	if !mint.Unmarshal(info.Data) {
		return Fail(solana.InstructionErrorInvalidAccountData)
	}
	if mint.IsInitialized {
		return token.ErrorAlreadyInUse
	}
	if info.Lamports < RentExemptMinimum(uint64(len(info.Data))) {
		return token.ErrorNotRentExempt
	}

	mint = token.Mint{
		MintAuthority:   initialize.MintAuthority,
		Decimals:        initialize.Decimals,
		IsInitialized:   true,
		FreezeAuthority: initialize.FreezeAuthority,
	}
	info.Data = mint.Marshal()

	return ctx.SetAccount(initialize.Mint, info)
}

func tokenMintTo(ctx *InstructionContext) error {
	ctx.Log("Instruction: MintTo")

	mintTo, err := token.DecompileMintTo(ctx.Message, ctx.Index)
	if err != nil {
		return token.ErrorInvalidInstruction
	}

	mintInfo, mint, err := loadMint(ctx, mintTo.Mint)
	if err != nil {
		return err
	}

	destInfo, ok := ctx.Account(mintTo.Dest)
	if !ok || !bytes.Equal(destInfo.Owner, token.ProgramKey) {
		return Fail(solana.InstructionErrorUninitializedAccount)
	}
	var dest token.Account
	if !dest.Unmarshal(destInfo.Data) || dest.State == token.AccountStateUninitialized {
		return Fail(solana.InstructionErrorUninitializedAccount)
	}
	if !bytes.Equal(dest.Mint, mintTo.Mint) {
		return token.ErrorMintMismatch
	}

	if len(mint.MintAuthority) == 0 {
		return token.ErrorFixedSupply
	}
	if !bytes.Equal(mint.MintAuthority, mintTo.Authority) {
		return token.ErrorOwnerMismatch
	}
	if !ctx.IsSigner(mintTo.Authority) {
		return Fail(solana.InstructionErrorMissingRequiredSignature)
	}

	if mint.Supply > math.MaxUint64-mintTo.Amount || dest.Amount > math.MaxUint64-mintTo.Amount {
		return token.ErrorOverflow
	}
	mint.Supply += mintTo.Amount
	dest.Amount += mintTo.Amount

	mintInfo.Data = mint.Marshal()
	destInfo.Data = dest.Marshal()

	if err := ctx.SetAccount(mintTo.Mint, mintInfo); err != nil {
		return err
	}
	return ctx.SetAccount(mintTo.Dest, destInfo)
}

func loadMint(ctx *InstructionContext, address []byte) (solana.AccountInfo, token.Mint, error) {
	var mint token.Mint

	info, ok := ctx.Account(address)
	if !ok || !bytes.Equal(info.Owner, token.ProgramKey) {
		return info, mint, token.ErrorInvalidMint
	}
	if !mint.Unmarshal(info.Data) || !mint.IsInitialized {
		return info, mint, Fail(solana.InstructionErrorUninitializedAccount)
	}

	return info, mint, nil
}
