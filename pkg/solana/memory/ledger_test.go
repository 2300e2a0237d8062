package memory

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citychests/vault-drop/pkg/solana"
	"github.com/citychests/vault-drop/pkg/solana/system"
	"github.com/citychests/vault-drop/pkg/solana/token"
	"github.com/citychests/vault-drop/pkg/testutil"
)

const airdropAmount = 10_000_000_000

type testEnv struct {
	ledger *Ledger
	payer  ed25519.PrivateKey
}

func setup(t *testing.T) *testEnv {
	env := &testEnv{
		ledger: NewLedger(),
		payer:  testutil.GenerateSolanaKeypair(t),
	}
	env.ledger.Airdrop(env.payerKey(), airdropAmount)
	return env
}

func (e *testEnv) payerKey() ed25519.PublicKey {
	return e.payer.Public().(ed25519.PublicKey)
}

func (e *testEnv) submit(t *testing.T, instructions []solana.Instruction, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	bh, err := e.ledger.GetLatestBlockhash()
	require.NoError(t, err)

	txn := solana.NewTransaction(e.payerKey(), instructions...)
	txn.SetBlockhash(bh)
	require.NoError(t, txn.Sign(append([]ed25519.PrivateKey{e.payer}, signers...)...))

	return e.ledger.SubmitTransaction(txn, solana.CommitmentConfirmed)
}

func (e *testEnv) createMint(t *testing.T) ed25519.PublicKey {
	mint := testutil.GenerateSolanaKeypair(t)
	mintKey := mint.Public().(ed25519.PublicKey)

	rent, err := e.ledger.GetMinimumBalanceForRentExemption(token.MintSize)
	require.NoError(t, err)

	_, err = e.submit(t, []solana.Instruction{
		system.CreateAccount(e.payerKey(), mintKey, token.ProgramKey, rent, token.MintSize),
		token.InitializeMint(mintKey, e.payerKey(), e.payerKey(), 0),
	}, mint)
	require.NoError(t, err)

	return mintKey
}

func TestRentExemptMinimum(t *testing.T) {
	assert.EqualValues(t, 890_880, RentExemptMinimum(0))
	assert.EqualValues(t, 1_461_600, RentExemptMinimum(token.MintSize))
	assert.EqualValues(t, 2_039_280, RentExemptMinimum(token.AccountSize))
}

func TestLedger_MintFlow(t *testing.T) {
	env := setup(t)
	vault := testutil.GenerateSolanaKeys(t, 1)[0]

	mint := env.createMint(t)

	info, err := env.ledger.GetAccountInfo(mint, solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, token.ProgramKey, info.Owner)

	var mintState token.Mint
	require.True(t, mintState.Unmarshal(info.Data))
	assert.True(t, mintState.IsInitialized)
	assert.EqualValues(t, env.payerKey(), mintState.MintAuthority)
	assert.EqualValues(t, env.payerKey(), mintState.FreezeAuthority)
	assert.EqualValues(t, 0, mintState.Decimals)

	create, ata, err := token.CreateAssociatedTokenAccountIdempotent(env.payerKey(), vault, mint)
	require.NoError(t, err)
	_, err = env.submit(t, []solana.Instruction{create})
	require.NoError(t, err)

	// Idempotent creation of an existing account is a no-op.
	_, err = env.submit(t, []solana.Instruction{create})
	require.NoError(t, err)

	_, err = env.submit(t, []solana.Instruction{token.MintTo(mint, ata, env.payerKey(), 1)})
	require.NoError(t, err)

	balance, _, err := env.ledger.GetTokenAccountBalance(ata, solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, balance)

	account, err := token.NewClient(env.ledger, mint).GetAccount(ata, solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, vault, account.Owner)
	assert.EqualValues(t, 1, account.Amount)

	minted, err := token.NewClient(env.ledger, mint).GetMint(solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, minted.Supply)

	assert.Len(t, env.ledger.Transactions(), 4)
}

func TestLedger_FeesAndRent(t *testing.T) {
	env := setup(t)

	env.createMint(t)

	balance, err := env.ledger.GetBalance(env.payerKey(), solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, airdropAmount-2*LamportsPerSignature-RentExemptMinimum(token.MintSize), balance)
}

func TestLedger_PreflightFailureIsAtomic(t *testing.T) {
	env := setup(t)
	other := testutil.GenerateSolanaKeypair(t)

	mint := env.createMint(t)
	create, ata, err := token.CreateAssociatedTokenAccount(env.payerKey(), other.Public().(ed25519.PublicKey), mint)
	require.NoError(t, err)

	before, err := env.ledger.GetBalance(env.payerKey(), solana.CommitmentConfirmed)
	require.NoError(t, err)

	// The account is created by the first instruction, but the mint authority
	// check fails in the second.
	_, err = env.submit(t, []solana.Instruction{
		create,
		token.MintTo(mint, ata, other.Public().(ed25519.PublicKey), 1),
	}, other)
	require.Error(t, err)

	txErr, ok := err.(*solana.TransactionError)
	require.True(t, ok)
	require.NotNil(t, txErr.InstructionError())
	assert.Equal(t, 1, txErr.InstructionError().Index)
	assert.Equal(t, token.ErrorOwnerMismatch, *txErr.InstructionError().CustomError())
	assert.NotEmpty(t, txErr.Logs())

	_, err = env.ledger.GetAccountInfo(ata, solana.CommitmentConfirmed)
	assert.Equal(t, solana.ErrNoAccountInfo, err)

	after, err := env.ledger.GetBalance(env.payerKey(), solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLedger_CreateExistingAssociatedAccount(t *testing.T) {
	env := setup(t)
	vault := testutil.GenerateSolanaKeys(t, 1)[0]
	mint := env.createMint(t)

	create, _, err := token.CreateAssociatedTokenAccount(env.payerKey(), vault, mint)
	require.NoError(t, err)
	_, err = env.submit(t, []solana.Instruction{create})
	require.NoError(t, err)

	_, err = env.submit(t, []solana.Instruction{create})
	require.Error(t, err)
	txErr := err.(*solana.TransactionError)
	assert.Equal(t, ErrorAccountAlreadyInUse, *txErr.InstructionError().CustomError())
}

func TestLedger_MintToRequiresAuthoritySignature(t *testing.T) {
	env := setup(t)
	vault := testutil.GenerateSolanaKeys(t, 1)[0]
	mint := env.createMint(t)

	create, ata, err := token.CreateAssociatedTokenAccountIdempotent(env.payerKey(), vault, mint)
	require.NoError(t, err)
	_, err = env.submit(t, []solana.Instruction{create})
	require.NoError(t, err)

	// The ledger verifies every signer slot, so an unsigned authority is
	// rejected before any program runs.
	other := testutil.GenerateSolanaKeypair(t)
	bh, err := env.ledger.GetLatestBlockhash()
	require.NoError(t, err)
	txn := solana.NewTransaction(env.payerKey(), token.MintTo(mint, ata, other.Public().(ed25519.PublicKey), 1))
	txn.SetBlockhash(bh)
	require.NoError(t, txn.Sign(env.payer))

	_, err = env.ledger.SubmitTransaction(txn, solana.CommitmentConfirmed)
	require.Error(t, err)
	assert.Equal(t, solana.TransactionErrorSignatureFailure, err.(*solana.TransactionError).ErrorKey())
}

func TestLedger_SubmissionChecks(t *testing.T) {
	env := setup(t)
	to := testutil.GenerateSolanaKeys(t, 1)[0]

	txn := solana.NewTransaction(env.payerKey(), system.Transfer(env.payerKey(), to, 1))
	require.NoError(t, txn.Sign(env.payer))
	_, err := env.ledger.SubmitTransaction(txn, solana.CommitmentConfirmed)
	assert.Equal(t, solana.TransactionErrorBlockhashNotFound, err.(*solana.TransactionError).ErrorKey())

	bh, err := env.ledger.GetLatestBlockhash()
	require.NoError(t, err)
	txn.SetBlockhash(bh)
	require.NoError(t, txn.Sign(env.payer))

	sig, err := env.ledger.SubmitTransaction(txn, solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, txn.Signature(), sig)

	_, err = env.ledger.SubmitTransaction(txn, solana.CommitmentConfirmed)
	assert.Equal(t, solana.TransactionErrorAlreadyProcessed, err.(*solana.TransactionError).ErrorKey())

	balance, err := env.ledger.GetBalance(to, solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, balance)

	broke := testutil.GenerateSolanaKeypair(t)
	txn = solana.NewTransaction(broke.Public().(ed25519.PublicKey), system.Transfer(broke.Public().(ed25519.PublicKey), to, 1))
	txn.SetBlockhash(bh)
	require.NoError(t, txn.Sign(broke))
	_, err = env.ledger.SubmitTransaction(txn, solana.CommitmentConfirmed)
	assert.Equal(t, solana.TransactionErrorAccountNotFound, err.(*solana.TransactionError).ErrorKey())
}

func TestLedger_SignatureStatus(t *testing.T) {
	env := setup(t)
	to := testutil.GenerateSolanaKeys(t, 1)[0]

	sig, err := env.submit(t, []solana.Instruction{system.Transfer(env.payerKey(), to, 1)})
	require.NoError(t, err)

	status, err := env.ledger.GetSignatureStatus(sig, solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.True(t, status.Confirmed())
	assert.Nil(t, status.ErrorResult)
}

func TestLedger_SkipPreflight(t *testing.T) {
	env := setup(t)
	to := testutil.GenerateSolanaKeys(t, 1)[0]

	env.ledger.SetSkipPreflight(true)
	env.ledger.InduceInstructionError(system.ProgramKey[:], solana.CustomError(42))

	sig, err := env.submit(t, []solana.Instruction{system.Transfer(env.payerKey(), to, 1)})
	require.NoError(t, err)

	_, err = env.ledger.GetSignatureStatus(sig, solana.CommitmentConfirmed)
	require.Error(t, err)
	txErr, ok := err.(*solana.TransactionError)
	require.True(t, ok)
	assert.EqualValues(t, 42, *txErr.InstructionError().CustomError())

	// The failed transaction still paid its fee, and nothing else changed.
	balance, err := env.ledger.GetBalance(env.payerKey(), solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, airdropAmount-LamportsPerSignature, balance)

	_, err = env.ledger.GetAccountInfo(to, solana.CommitmentConfirmed)
	assert.Equal(t, solana.ErrNoAccountInfo, err)

	// Induced errors only apply once.
	_, err = env.submit(t, []solana.Instruction{system.Transfer(env.payerKey(), to, 2)})
	require.NoError(t, err)
	balance, err = env.ledger.GetBalance(to, solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 2, balance)
}

func TestLedger_UnknownProgram(t *testing.T) {
	env := setup(t)
	program := testutil.GenerateSolanaKeys(t, 1)[0]

	_, err := env.submit(t, []solana.Instruction{solana.NewInstruction(program, []byte{1})})
	require.Error(t, err)
	assert.Equal(t, solana.TransactionErrorProgramAccountNotFound, err.(*solana.TransactionError).ErrorKey())
}

func TestLedger_Requests(t *testing.T) {
	env := setup(t)
	assert.Zero(t, env.ledger.Requests(""))

	_, _ = env.ledger.GetAccountInfo(env.payerKey(), solana.CommitmentConfirmed)
	_, _ = env.ledger.GetAccountInfo(env.payerKey(), solana.CommitmentConfirmed)
	_, _ = env.ledger.GetLatestBlockhash()

	assert.Equal(t, 2, env.ledger.Requests("getAccountInfo"))
	assert.Equal(t, 3, env.ledger.Requests(""))

	// Direct reads are not requests.
	_, ok := env.ledger.Account(env.payerKey())
	assert.True(t, ok)
	assert.Equal(t, 3, env.ledger.Requests(""))
}
