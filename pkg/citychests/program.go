package citychests

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/citychests/vault-drop/pkg/anchor"
	"github.com/citychests/vault-drop/pkg/solana"
	"github.com/citychests/vault-drop/pkg/solana/system"
)

const (
	InitializeConfigInstruction = "initializeConfig"
	CreateMintRecordInstruction = "createMintRecord"
	ConfirmMintInstruction      = "confirmMint"
)

// ErrIncompatibleIDL indicates the fetched IDL does not describe the vault
// program's interface.
var ErrIncompatibleIDL = errors.New("idl is not compatible with the vault program")

// Program is a typed handle over the vault program's IDL.
type Program struct {
	anchor *anchor.Program
}

// NewProgram checks that the IDL declares every instruction the drop uses.
func NewProgram(p *anchor.Program) (*Program, error) {
	for _, name := range []string{InitializeConfigInstruction, CreateMintRecordInstruction, ConfirmMintInstruction} {
		if _, ok := p.IDL().Instruction(name); !ok {
			return nil, errors.Wrapf(ErrIncompatibleIDL, "missing instruction %s", name)
		}
	}

	return &Program{anchor: p}, nil
}

func (p *Program) ID() ed25519.PublicKey {
	return p.anchor.ID()
}

func (p *Program) Anchor() *anchor.Program {
	return p.anchor
}

func (p *Program) ConfigAddress() (ed25519.PublicKey, error) {
	address, _, err := ConfigAddress(p.ID())
	return address, err
}

func (p *Program) RecordAddress(recipient ed25519.PublicKey, nonce uint64) (ed25519.PublicKey, error) {
	address, _, err := RecordAddress(p.ID(), recipient, nonce)
	return address, err
}

// InitializeConfig creates the config PDA with admin as its administrator
// and payer.
func (p *Program) InitializeConfig(admin, vault ed25519.PublicKey) (solana.Instruction, error) {
	config, err := p.ConfigAddress()
	if err != nil {
		return solana.Instruction{}, err
	}

	return p.anchor.Instruction(
		InitializeConfigInstruction,
		anchor.Accounts{
			"config":        config,
			"admin":         admin,
			"systemProgram": system.ProgramKey[:],
		},
		vault,
	)
}

// CreateMintRecord creates the record PDA for (recipient, nonce).
func (p *Program) CreateMintRecord(admin, recipient ed25519.PublicKey, rarity uint8, nonce uint64) (solana.Instruction, error) {
	config, err := p.ConfigAddress()
	if err != nil {
		return solana.Instruction{}, err
	}
	record, err := p.RecordAddress(recipient, nonce)
	if err != nil {
		return solana.Instruction{}, err
	}

	return p.anchor.Instruction(
		CreateMintRecordInstruction,
		anchor.Accounts{
			"config":        config,
			"record":        record,
			"admin":         admin,
			"systemProgram": system.ProgramKey[:],
		},
		recipient,
		rarity,
		nonce,
	)
}

// ConfirmMint marks the record as minted, once vaultATA holds exactly one
// unit of mint on behalf of the configured vault.
func (p *Program) ConfirmMint(admin, recipient ed25519.PublicKey, nonce uint64, mint, vaultATA ed25519.PublicKey) (solana.Instruction, error) {
	config, err := p.ConfigAddress()
	if err != nil {
		return solana.Instruction{}, err
	}
	record, err := p.RecordAddress(recipient, nonce)
	if err != nil {
		return solana.Instruction{}, err
	}

	return p.anchor.Instruction(
		ConfirmMintInstruction,
		anchor.Accounts{
			"config":   config,
			"record":   record,
			"admin":    admin,
			"vaultAta": vaultATA,
		},
		recipient,
		nonce,
		mint,
	)
}

// GetConfig reads the config PDA. solana.ErrNoAccountInfo is returned if it
// has not been initialized.
func (p *Program) GetConfig(client solana.Client, commitment solana.Commitment) (*Config, error) {
	address, err := p.ConfigAddress()
	if err != nil {
		return nil, err
	}

	var config Config
	if err := p.anchor.FetchAccount(client, address, commitment, ConfigAccountName, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// GetMintRecord reads the record PDA for (recipient, nonce).
func (p *Program) GetMintRecord(client solana.Client, recipient ed25519.PublicKey, nonce uint64, commitment solana.Commitment) (*MintRecord, error) {
	address, err := p.RecordAddress(recipient, nonce)
	if err != nil {
		return nil, err
	}

	var record MintRecord
	if err := p.anchor.FetchAccount(client, address, commitment, MintRecordAccountName, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
