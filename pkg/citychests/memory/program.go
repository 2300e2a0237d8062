// Package memory provides a stand-in for the vault program that runs on the
// in-memory ledger, enforcing the same account and authority rules.
package memory

import (
	"bytes"
	"crypto/ed25519"
	_ "embed"

	"github.com/near/borsh-go"
	"github.com/pkg/errors"

	"github.com/citychests/vault-drop/pkg/anchor"
	"github.com/citychests/vault-drop/pkg/citychests"
	"github.com/citychests/vault-drop/pkg/solana"
	solanamemory "github.com/citychests/vault-drop/pkg/solana/memory"
	"github.com/citychests/vault-drop/pkg/solana/system"
	"github.com/citychests/vault-drop/pkg/solana/token"
)

//go:embed idl.json
var idlJSON []byte

// Anchor framework error codes raised by the stub.
const (
	errInstructionMissing           solana.CustomError = 100
	errInstructionFallbackNotFound  solana.CustomError = 101
	errInstructionDidNotDeserialize solana.CustomError = 102
	errConstraintMut                solana.CustomError = 2000
	errConstraintSeeds              solana.CustomError = 2006
	errAccountDiscriminatorMismatch solana.CustomError = 3002
	errAccountDidNotDeserialize     solana.CustomError = 3003
	errAccountNotEnoughKeys         solana.CustomError = 3005
	errAccountOwnedByWrongProgram   solana.CustomError = 3007
	errInvalidProgramID             solana.CustomError = 3008
	errAccountNotSigner             solana.CustomError = 3010
	errAccountNotInitialized        solana.CustomError = 3012
)

// IDL returns the program's IDL document.
func IDL() []byte {
	return append([]byte(nil), idlJSON...)
}

// Deploy registers the program at programID on the ledger and publishes its
// IDL account with authority as the IDL authority.
func Deploy(ledger *solanamemory.Ledger, programID, authority ed25519.PublicKey) error {
	address, err := anchor.IDLAddress(programID)
	if err != nil {
		return err
	}

	data, err := anchor.EncodeIDLAccount(authority, idlJSON)
	if err != nil {
		return err
	}

	ledger.SetAccount(address, solana.AccountInfo{
		Data:     data,
		Owner:    programID,
		Lamports: solanamemory.RentExemptMinimum(uint64(len(data))),
	})

	p := &program{id: append(ed25519.PublicKey(nil), programID...)}
	ledger.RegisterProgram(programID, p.process)
	return nil
}

type program struct {
	id ed25519.PublicKey
}

type initializeConfigArgs struct {
	Vault [32]byte
}

type createMintRecordArgs struct {
	Recipient   [32]byte
	Rarity      uint8
	ClientNonce uint64
}

type confirmMintArgs struct {
	Recipient   [32]byte
	ClientNonce uint64
	Mint        [32]byte
}

func (p *program) process(ctx *solanamemory.InstructionContext) error {
	data := ctx.Instruction.Data
	if len(data) < anchor.DiscriminatorSize {
		return errInstructionMissing
	}

	disc, body := data[:anchor.DiscriminatorSize], data[anchor.DiscriminatorSize:]
	switch {
	case bytes.Equal(disc, anchor.InstructionDiscriminator(citychests.InitializeConfigInstruction)):
		ctx.Log("Instruction: InitializeConfig")
		var args initializeConfigArgs
		if err := borsh.Deserialize(&args, body); err != nil {
			return errInstructionDidNotDeserialize
		}
		return p.initializeConfig(ctx, args)
	case bytes.Equal(disc, anchor.InstructionDiscriminator(citychests.CreateMintRecordInstruction)):
		ctx.Log("Instruction: CreateMintRecord")
		var args createMintRecordArgs
		if err := borsh.Deserialize(&args, body); err != nil {
			return errInstructionDidNotDeserialize
		}
		return p.createMintRecord(ctx, args)
	case bytes.Equal(disc, anchor.InstructionDiscriminator(citychests.ConfirmMintInstruction)):
		ctx.Log("Instruction: ConfirmMint")
		var args confirmMintArgs
		if err := borsh.Deserialize(&args, body); err != nil {
			return errInstructionDidNotDeserialize
		}
		return p.confirmMint(ctx, args)
	default:
		return errInstructionFallbackNotFound
	}
}

func (p *program) initializeConfig(ctx *solanamemory.InstructionContext, args initializeConfigArgs) error {
	accounts := ctx.Instruction.Accounts
	if len(accounts) < 3 {
		return errAccountNotEnoughKeys
	}
	configMeta, adminMeta, systemMeta := accounts[0], accounts[1], accounts[2]

	address, bump, err := citychests.ConfigAddress(p.id)
	if err != nil {
		return err
	}
	if !bytes.Equal(address, configMeta.PublicKey) {
		return errConstraintSeeds
	}
	if !configMeta.IsWritable || !adminMeta.IsWritable {
		return errConstraintMut
	}
	if !ctx.IsSigner(adminMeta.PublicKey) {
		return errAccountNotSigner
	}
	if !bytes.Equal(systemMeta.PublicKey, system.ProgramKey[:]) {
		return errInvalidProgramID
	}

	config := citychests.Config{
		Vault: args.Vault,
		Bump:  bump,
	}
	copy(config.Admin[:], adminMeta.PublicKey)

	data, err := config.Marshal()
	if err != nil {
		return err
	}
	return ctx.CreateAccount(adminMeta.PublicKey, configMeta.PublicKey, p.id, data)
}

func (p *program) createMintRecord(ctx *solanamemory.InstructionContext, args createMintRecordArgs) error {
	accounts := ctx.Instruction.Accounts
	if len(accounts) < 4 {
		return errAccountNotEnoughKeys
	}
	configMeta, recordMeta, adminMeta, systemMeta := accounts[0], accounts[1], accounts[2], accounts[3]

	config, err := p.loadConfig(ctx, configMeta.PublicKey)
	if err != nil {
		return err
	}

	address, _, err := citychests.RecordAddress(p.id, args.Recipient[:], args.ClientNonce)
	if err != nil {
		return err
	}
	if !bytes.Equal(address, recordMeta.PublicKey) {
		return errConstraintSeeds
	}
	if !recordMeta.IsWritable || !adminMeta.IsWritable {
		return errConstraintMut
	}
	if !ctx.IsSigner(adminMeta.PublicKey) {
		return errAccountNotSigner
	}
	if !bytes.Equal(systemMeta.PublicKey, system.ProgramKey[:]) {
		return errInvalidProgramID
	}

	record := citychests.MintRecord{
		Recipient:   args.Recipient,
		Rarity:      args.Rarity,
		ClientNonce: args.ClientNonce,
		CreatedAt:   ctx.UnixTimestamp,
	}
	data, err := record.Marshal()
	if err != nil {
		return err
	}
	if err := ctx.CreateAccount(adminMeta.PublicKey, recordMeta.PublicKey, p.id, data); err != nil {
		return err
	}

	if !bytes.Equal(adminMeta.PublicKey, config.Admin[:]) {
		ctx.Log("AnchorError: Unauthorized")
		return citychests.ErrorUnauthorized
	}

	ctx.Log("MintRecordCreated: rarity=%d nonce=%d", args.Rarity, args.ClientNonce)
	return nil
}

func (p *program) confirmMint(ctx *solanamemory.InstructionContext, args confirmMintArgs) error {
	accounts := ctx.Instruction.Accounts
	if len(accounts) < 4 {
		return errAccountNotEnoughKeys
	}
	configMeta, recordMeta, adminMeta, vaultMeta := accounts[0], accounts[1], accounts[2], accounts[3]

	config, err := p.loadConfig(ctx, configMeta.PublicKey)
	if err != nil {
		return err
	}

	address, _, err := citychests.RecordAddress(p.id, args.Recipient[:], args.ClientNonce)
	if err != nil {
		return err
	}
	if !bytes.Equal(address, recordMeta.PublicKey) {
		return errConstraintSeeds
	}
	if !recordMeta.IsWritable || !adminMeta.IsWritable || !vaultMeta.IsWritable {
		return errConstraintMut
	}

	recordInfo, ok := ctx.Account(recordMeta.PublicKey)
	if !ok || len(recordInfo.Data) == 0 {
		return errAccountNotInitialized
	}
	if !bytes.Equal(recordInfo.Owner, p.id) {
		return errAccountOwnedByWrongProgram
	}
	var record citychests.MintRecord
	if err := record.Unmarshal(recordInfo.Data); err != nil {
		return accountDecodeError(err)
	}

	if !ctx.IsSigner(adminMeta.PublicKey) {
		return errAccountNotSigner
	}

	vaultInfo, ok := ctx.Account(vaultMeta.PublicKey)
	if !ok || len(vaultInfo.Data) == 0 {
		return errAccountNotInitialized
	}
	if !bytes.Equal(vaultInfo.Owner, token.ProgramKey) {
		return errAccountOwnedByWrongProgram
	}
	var vault token.Account
	if !vault.Unmarshal(vaultInfo.Data) {
		return errAccountDidNotDeserialize
	}

	switch {
	case !bytes.Equal(vault.Owner, config.Vault[:]):
		ctx.Log("AnchorError: WrongVaultOwner")
		return citychests.ErrorWrongVaultOwner
	case !bytes.Equal(vault.Mint, args.Mint[:]):
		ctx.Log("AnchorError: WrongMint")
		return citychests.ErrorWrongMint
	case vault.Amount != 1:
		ctx.Log("AnchorError: WrongAmount")
		return citychests.ErrorWrongAmount
	}

	if !bytes.Equal(adminMeta.PublicKey, config.Admin[:]) {
		ctx.Log("AnchorError: Unauthorized")
		return citychests.ErrorUnauthorized
	}

	record.Mint = args.Mint
	record.Minted = true
	data, err := record.Marshal()
	if err != nil {
		return err
	}
	recordInfo.Data = data
	if err := ctx.SetAccount(recordMeta.PublicKey, recordInfo); err != nil {
		return err
	}

	ctx.Log("MintConfirmed: nonce=%d", args.ClientNonce)
	return nil
}

func (p *program) loadConfig(ctx *solanamemory.InstructionContext, address ed25519.PublicKey) (*citychests.Config, error) {
	info, ok := ctx.Account(address)
	if !ok || len(info.Data) == 0 {
		return nil, errAccountNotInitialized
	}
	if !bytes.Equal(info.Owner, p.id) {
		return nil, errAccountOwnedByWrongProgram
	}

	var config citychests.Config
	if err := config.Unmarshal(info.Data); err != nil {
		return nil, accountDecodeError(err)
	}

	expected, err := solana.CreateProgramAddress(p.id, []byte(citychests.ConfigSeed), []byte{config.Bump})
	if err != nil || !bytes.Equal(expected, address) {
		return nil, errConstraintSeeds
	}
	return &config, nil
}

func accountDecodeError(err error) error {
	if errors.Cause(err) == anchor.ErrDiscriminator {
		return errAccountDiscriminatorMismatch
	}
	return errAccountDidNotDeserialize
}
