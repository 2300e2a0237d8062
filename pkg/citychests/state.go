package citychests

import (
	"bytes"
	"crypto/ed25519"

	"github.com/near/borsh-go"
	"github.com/pkg/errors"

	"github.com/citychests/vault-drop/pkg/anchor"
)

const (
	ConfigAccountName     = "Config"
	MintRecordAccountName = "MintRecord"

	// ConfigSize and MintRecordSize include the 8-byte discriminator.
	ConfigSize     = anchor.DiscriminatorSize + 32 + 32 + 1
	MintRecordSize = anchor.DiscriminatorSize + 32 + 1 + 32 + 1 + 8 + 8
)

// Config is the program-wide configuration account.
type Config struct {
	Admin [32]byte
	Vault [32]byte
	Bump  uint8
}

func (c *Config) AdminKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), c.Admin[:]...)
}

func (c *Config) VaultKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), c.Vault[:]...)
}

func (c *Config) Marshal() ([]byte, error) {
	return marshalAccount(ConfigAccountName, *c)
}

func (c *Config) Unmarshal(b []byte) error {
	return unmarshalAccount(ConfigAccountName, b, c)
}

// MintRecord tracks one intended mint for a recipient.
type MintRecord struct {
	Recipient   [32]byte
	Rarity      uint8
	Mint        [32]byte
	Minted      bool
	ClientNonce uint64
	CreatedAt   int64
}

func (r *MintRecord) RecipientKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), r.Recipient[:]...)
}

func (r *MintRecord) MintKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), r.Mint[:]...)
}

func (r *MintRecord) Marshal() ([]byte, error) {
	return marshalAccount(MintRecordAccountName, *r)
}

func (r *MintRecord) Unmarshal(b []byte) error {
	return unmarshalAccount(MintRecordAccountName, b, r)
}

func marshalAccount(name string, v interface{}) ([]byte, error) {
	body, err := borsh.Serialize(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", name)
	}
	return append(anchor.AccountDiscriminator(name), body...), nil
}

func unmarshalAccount(name string, b []byte, v interface{}) error {
	if len(b) < anchor.DiscriminatorSize || !bytes.Equal(b[:anchor.DiscriminatorSize], anchor.AccountDiscriminator(name)) {
		return errors.Wrap(anchor.ErrDiscriminator, name)
	}
	if err := borsh.Deserialize(v, b[anchor.DiscriminatorSize:]); err != nil {
		return errors.Wrapf(err, "failed to decode %s", name)
	}
	return nil
}
