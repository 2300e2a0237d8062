package drop

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citychests/vault-drop/pkg/testutil"
)

func TestLoadKeypair(t *testing.T) {
	key := testutil.GenerateSolanaKeypair(t)

	loaded, err := LoadKeypair(testutil.WriteKeypairFile(t, key))
	require.NoError(t, err)
	assert.Equal(t, key, loaded)
}

func TestLoadKeypair_Invalid(t *testing.T) {
	key := testutil.GenerateSolanaKeypair(t)

	mismatched := append([]byte(nil), key...)
	mismatched[40] ^= 0xff

	for _, tc := range []struct {
		name     string
		contents string
	}{
		{"not json", "not json"},
		{"object", `{"secret": [1, 2, 3]}`},
		{"short", "[1, 2, 3]"},
		{"out of range", "[" + repeat("256", 64) + "]"},
		{"negative", "[" + repeat("-1", 64) + "]"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "id.json")
			require.NoError(t, os.WriteFile(path, []byte(tc.contents), 0600))

			_, err := LoadKeypair(path)
			assert.Equal(t, ErrInvalidKeypair, errors.Cause(err))
		})
	}

	_, err := LoadKeypair(testutil.WriteKeypairFile(t, mismatched))
	assert.Equal(t, ErrInvalidKeypair, errors.Cause(err))

	_, err = LoadKeypair(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func repeat(v string, n int) string {
	s := v
	for i := 1; i < n; i++ {
		s += "," + v
	}
	return s
}
