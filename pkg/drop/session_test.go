package drop

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citychests/vault-drop/pkg/solana"
	"github.com/citychests/vault-drop/pkg/solana/memory"
	"github.com/citychests/vault-drop/pkg/solana/system"
	"github.com/citychests/vault-drop/pkg/testutil"
)

func TestSession_Submit(t *testing.T) {
	ledger := memory.NewLedger()
	signer := testutil.GenerateSolanaKeypair(t)
	session := NewSession(ledger, signer)
	ledger.Airdrop(session.PublicKey(), 1_000_000_000)

	assert.Equal(t, signer.Public().(ed25519.PublicKey), session.PublicKey())
	assert.Equal(t, solana.CommitmentConfirmed, session.Commitment())

	dest := testutil.GenerateSolanaKeys(t, 1)[0]
	sig, err := session.Submit(context.Background(), []solana.Instruction{
		system.Transfer(session.PublicKey(), dest, 5_000_000),
	})
	require.NoError(t, err)

	status, err := ledger.GetSignatureStatus(sig, solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Nil(t, status.ErrorResult)

	balance, err := ledger.GetBalance(dest, solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 5_000_000, balance)
}

func TestSession_SubmitExtraSigners(t *testing.T) {
	ledger := memory.NewLedger()
	session := NewSession(ledger, testutil.GenerateSolanaKeypair(t))
	ledger.Airdrop(session.PublicKey(), 1_000_000_000)

	account := testutil.GenerateSolanaKeypair(t)
	accountKey := account.Public().(ed25519.PublicKey)
	create := system.CreateAccount(session.PublicKey(), accountKey, system.ProgramKey[:], memory.RentExemptMinimum(0), 0)

	_, err := session.Submit(context.Background(), []solana.Instruction{create})
	require.Error(t, err)

	_, err = session.Submit(context.Background(), []solana.Instruction{create}, account)
	require.NoError(t, err)
}

func TestSession_SubmitFailure(t *testing.T) {
	ledger := memory.NewLedger()
	session := NewSession(ledger, testutil.GenerateSolanaKeypair(t))
	ledger.Airdrop(session.PublicKey(), 1_000_000_000)

	dest := testutil.GenerateSolanaKeys(t, 1)[0]
	transfer := []solana.Instruction{system.Transfer(session.PublicKey(), dest, 1)}

	// Rejected at preflight.
	ledger.InduceInstructionError(system.ProgramKey[:], solana.CustomError(1))
	_, err := session.Submit(context.Background(), transfer)
	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr))
	require.NotNil(t, txErr.InstructionError())
	assert.EqualValues(t, 1, *txErr.InstructionError().CustomError())

	// Landed with an error.
	ledger.SetSkipPreflight(true)
	ledger.InduceInstructionError(system.ProgramKey[:], solana.CustomError(2))
	_, err = session.Submit(context.Background(), transfer)
	require.True(t, errors.As(err, &txErr))
	require.NotNil(t, txErr.InstructionError())
	assert.EqualValues(t, 2, *txErr.InstructionError().CustomError())

	// Cancelled before anything is sent.
	requests := ledger.Requests("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = session.Submit(ctx, transfer)
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, requests, ledger.Requests(""))
}
