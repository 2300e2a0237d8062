package anchor

import (
	"bytes"
	"crypto/ed25519"
	"sort"
	"strings"

	"github.com/mr-tron/base58/base58"
	"github.com/near/borsh-go"
	"github.com/pkg/errors"

	"github.com/citychests/vault-drop/pkg/solana"
)

var (
	ErrUnknownInstruction = errors.New("unknown instruction")
	ErrUnknownAccount     = errors.New("unknown account type")
	ErrMissingAccount     = errors.New("missing instruction account")
	ErrDiscriminator      = errors.New("account discriminator mismatch")
)

// Program builds instructions for a deployed program from its IDL.
type Program struct {
	id  ed25519.PublicKey
	idl *IDL
}

// NewProgram binds the IDL to the program address.
func NewProgram(id ed25519.PublicKey, idl *IDL) *Program {
	return &Program{
		id:  id,
		idl: idl,
	}
}

func (p *Program) ID() ed25519.PublicKey {
	return p.id
}

func (p *Program) IDL() *IDL {
	return p.idl
}

// Accounts maps IDL account names to addresses. Keys may be written in
// camelCase or snake_case.
type Accounts map[string]ed25519.PublicKey

// Instruction encodes a call to the named instruction. Account metas follow
// the IDL's declaration order and flags; args are encoded positionally by
// the IDL argument types.
func (p *Program) Instruction(name string, accounts Accounts, args ...interface{}) (solana.Instruction, error) {
	ix, ok := p.idl.Instruction(name)
	if !ok {
		return solana.Instruction{}, errors.Wrap(ErrUnknownInstruction, name)
	}

	provided := make(map[string]ed25519.PublicKey, len(accounts))
	for k, v := range accounts {
		provided[Normalize(k)] = v
	}

	metas := make([]solana.AccountMeta, 0, len(ix.Accounts))
	for _, item := range ix.Accounts {
		key := Normalize(item.Name)
		address, ok := provided[key]
		delete(provided, key)

		switch {
		case ok:
		case item.Address != "":
			decoded, err := base58.Decode(item.Address)
			if err != nil {
				return solana.Instruction{}, errors.Wrapf(err, "invalid fixed address for %s", item.Name)
			}
			address = decoded
		case item.Optional:
			// Anchor encodes an omitted optional account as the program id.
			address = p.id
		default:
			return solana.Instruction{}, errors.Wrapf(ErrMissingAccount, "%s: %s", ix.Name, item.Name)
		}

		meta := solana.NewReadonlyAccountMeta(address, item.Signer)
		if item.Writable {
			meta = solana.NewAccountMeta(address, item.Signer)
		}
		metas = append(metas, meta)
	}

	if len(provided) > 0 {
		unknown := make([]string, 0, len(provided))
		for k := range provided {
			unknown = append(unknown, k)
		}
		sort.Strings(unknown)
		return solana.Instruction{}, errors.Errorf("%s: unexpected accounts: %s", ix.Name, strings.Join(unknown, ", "))
	}

	if len(args) != len(ix.Args) {
		return solana.Instruction{}, errors.Errorf("%s: expected %d args, got %d", ix.Name, len(ix.Args), len(args))
	}

	data := append([]byte(nil), ix.Discriminator...)
	for i, arg := range ix.Args {
		encoded, err := EncodeArg(arg.Type, args[i])
		if err != nil {
			return solana.Instruction{}, errors.Wrapf(err, "%s: arg %s", ix.Name, arg.Name)
		}
		data = append(data, encoded...)
	}

	return solana.NewInstruction(p.id, data, metas...), nil
}

// DecodeAccount checks the account discriminator for the named account type
// and borsh-decodes the remaining data into v.
func (p *Program) DecodeAccount(name string, data []byte, v interface{}) error {
	def, ok := p.idl.Account(name)
	if !ok {
		return errors.Wrap(ErrUnknownAccount, name)
	}

	if len(data) < len(def.Discriminator) || !bytes.Equal(data[:len(def.Discriminator)], def.Discriminator) {
		return errors.Wrap(ErrDiscriminator, name)
	}

	if err := borsh.Deserialize(v, data[len(def.Discriminator):]); err != nil {
		return errors.Wrapf(err, "failed to decode %s", name)
	}
	return nil
}

// FetchAccount reads the account at address and decodes it as name.
func (p *Program) FetchAccount(client solana.Client, address ed25519.PublicKey, commitment solana.Commitment, name string, v interface{}) error {
	info, err := client.GetAccountInfo(address, commitment)
	if err != nil {
		return err
	}

	if !bytes.Equal(info.Owner, p.id) {
		return errors.Errorf("account %s is not owned by the program", base58.Encode(address))
	}

	return p.DecodeAccount(name, info.Data, v)
}
