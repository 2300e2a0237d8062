package citychests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citychests/vault-drop/pkg/solana"
	"github.com/citychests/vault-drop/pkg/testutil"
)

func TestConfigAddress(t *testing.T) {
	program := testutil.GenerateSolanaKeys(t, 1)[0]

	address, bump, err := ConfigAddress(program)
	require.NoError(t, err)

	recreated, err := solana.CreateProgramAddress(program, []byte("config"), []byte{bump})
	require.NoError(t, err)
	assert.Equal(t, address, recreated)

	other, _, err := ConfigAddress(testutil.GenerateSolanaKeys(t, 1)[0])
	require.NoError(t, err)
	assert.NotEqual(t, address, other)
}

func TestRecordAddress(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)
	program, recipient := keys[0], keys[1]

	address, bump, err := RecordAddress(program, recipient, 0x0102)
	require.NoError(t, err)

	recreated, err := solana.CreateProgramAddress(
		program,
		[]byte("record"),
		recipient,
		[]byte{0x02, 0x01, 0, 0, 0, 0, 0, 0},
		[]byte{bump},
	)
	require.NoError(t, err)
	assert.Equal(t, address, recreated)

	again, _, err := RecordAddress(program, recipient, 0x0102)
	require.NoError(t, err)
	assert.Equal(t, address, again)

	other, _, err := RecordAddress(program, recipient, 0x0103)
	require.NoError(t, err)
	assert.NotEqual(t, address, other)

	config, _, err := ConfigAddress(program)
	require.NoError(t, err)
	assert.NotEqual(t, config, address)
}

func TestNonceSeed(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0}, NonceSeed(0))
	assert.Equal(t, []byte{0xef, 0xcd, 0xab, 0x89, 0x67, 0x45, 0x23, 0x01}, NonceSeed(0x0123456789abcdef))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, NonceSeed(^uint64(0)))
}
