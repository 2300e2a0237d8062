package anchor

import (
	"bytes"
	"compress/zlib"
	"crypto/ed25519"
	"encoding/binary"
	"io"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"

	"github.com/citychests/vault-drop/pkg/solana"
)

const (
	idlSeed = "anchor:idl"

	idlHeaderSize = DiscriminatorSize + ed25519.PublicKeySize + 4

	// maxIDLSize bounds the inflated IDL document.
	maxIDLSize = 10 << 20
)

var (
	// ErrIDLNotFound indicates the program has no IDL account.
	ErrIDLNotFound = errors.New("idl not found")

	// ErrInvalidIDLAccount indicates the IDL account data is malformed.
	ErrInvalidIDLAccount = errors.New("invalid idl account")

	idlAccountDiscriminator = AccountDiscriminator("IdlAccount")
)

// IDLAddress returns the address Anchor stores a program's IDL at:
// create_with_seed(find_program_address([], program), "anchor:idl", program).
func IDLAddress(program ed25519.PublicKey) (ed25519.PublicKey, error) {
	base, err := solana.FindProgramAddress(program)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive idl base")
	}

	return solana.CreateWithSeed(base, idlSeed, program)
}

// IDLAccount is the decoded content of a program's IDL account.
type IDLAccount struct {
	Authority ed25519.PublicKey
	// Data is the inflated IDL JSON document.
	Data []byte
}

// EncodeIDLAccount lays out an IDL account: discriminator, authority,
// u32 length and the zlib compressed document.
func EncodeIDLAccount(authority ed25519.PublicKey, idlJSON []byte) ([]byte, error) {
	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	if _, err := w.Write(idlJSON); err != nil {
		return nil, errors.Wrap(err, "failed to compress idl")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to compress idl")
	}

	b := make([]byte, idlHeaderSize, idlHeaderSize+compressed.Len())
	copy(b, idlAccountDiscriminator)
	copy(b[DiscriminatorSize:], authority)
	binary.LittleEndian.PutUint32(b[DiscriminatorSize+ed25519.PublicKeySize:], uint32(compressed.Len()))

	return append(b, compressed.Bytes()...), nil
}

// DecodeIDLAccount reverses EncodeIDLAccount. Trailing bytes past the
// declared length are ignored, since IDL accounts are allocated with slack.
func DecodeIDLAccount(b []byte) (*IDLAccount, error) {
	if len(b) < idlHeaderSize {
		return nil, errors.Wrapf(ErrInvalidIDLAccount, "account too small: %d", len(b))
	}
	if !bytes.Equal(b[:DiscriminatorSize], idlAccountDiscriminator) {
		return nil, errors.Wrap(ErrInvalidIDLAccount, "discriminator mismatch")
	}

	size := binary.LittleEndian.Uint32(b[DiscriminatorSize+ed25519.PublicKeySize:])
	if uint64(size) > uint64(len(b)-idlHeaderSize) {
		return nil, errors.Wrapf(ErrInvalidIDLAccount, "declared length %d exceeds account", size)
	}

	r, err := zlib.NewReader(bytes.NewReader(b[idlHeaderSize : idlHeaderSize+int(size)]))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidIDLAccount, err.Error())
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, maxIDLSize))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidIDLAccount, err.Error())
	}

	authority := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(authority, b[DiscriminatorSize:])

	return &IDLAccount{
		Authority: authority,
		Data:      data,
	}, nil
}

// FetchIDL reads and parses the IDL published for program.
func FetchIDL(client solana.Client, program ed25519.PublicKey, commitment solana.Commitment) (*IDL, error) {
	address, err := IDLAddress(program)
	if err != nil {
		return nil, err
	}

	info, err := client.GetAccountInfo(address, commitment)
	if err == solana.ErrNoAccountInfo {
		return nil, ErrIDLNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to get idl account")
	}

	if !bytes.Equal(info.Owner, program) {
		return nil, errors.Wrapf(ErrInvalidIDLAccount, "owned by %s", base58.Encode(info.Owner))
	}

	account, err := DecodeIDLAccount(info.Data)
	if err != nil {
		return nil, err
	}

	return ParseIDL(account.Data)
}
