// Package memory provides an in-memory Solana ledger implementing
// solana.Client, with the system, SPL token and associated token account
// programs built in.
package memory

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"time"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/citychests/vault-drop/pkg/solana"
	"github.com/citychests/vault-drop/pkg/solana/system"
	"github.com/citychests/vault-drop/pkg/solana/token"
)

const (
	// LamportsPerSignature is the fee charged per transaction signature.
	LamportsPerSignature = 5000

	lamportsPerByteYear = 3480
	exemptionThreshold  = 2
	accountOverhead     = 128
)

// RentExemptMinimum returns the lamports an account of size bytes must hold.
func RentExemptMinimum(size uint64) uint64 {
	return (size + accountOverhead) * lamportsPerByteYear * exemptionThreshold
}

var loaderKey = mustDecode("BPFLoaderUpgradeab1e11111111111111111111111")

// Ledger is an in-memory stand-in for a Solana cluster. Transactions are
// processed synchronously and are immediately confirmed.
type Ledger struct {
	log *logrus.Entry

	mu            sync.Mutex
	accounts      map[string]solana.AccountInfo
	programs      map[string]Program
	statuses      map[solana.Signature]*solana.SignatureStatus
	blockhashes   map[solana.Blockhash]struct{}
	latest        solana.Blockhash
	slot          uint64
	requests      map[string]int
	induced       map[string]error
	transactions  []solana.Transaction
	skipPreflight bool
	clock         func() time.Time
}

// NewLedger returns a ledger with the built-in programs deployed.
func NewLedger() *Ledger {
	l := &Ledger{
		log:         logrus.StandardLogger().WithField("type", "solana/memory"),
		accounts:    make(map[string]solana.AccountInfo),
		programs:    make(map[string]Program),
		statuses:    make(map[solana.Signature]*solana.SignatureStatus),
		blockhashes: make(map[solana.Blockhash]struct{}),
		requests:    make(map[string]int),
		induced:     make(map[string]error),
		clock:       time.Now,
	}

	l.latest = sha256.Sum256([]byte("genesis"))
	l.blockhashes[l.latest] = struct{}{}

	l.RegisterProgram(system.ProgramKey[:], systemProgram)
	l.RegisterProgram(token.ProgramKey, tokenProgram)
	l.RegisterProgram(token.AssociatedTokenAccountProgramKey, associatedTokenProgram)

	return l
}

// RegisterProgram deploys an executable account at key backed by p.
func (l *Ledger) RegisterProgram(key ed25519.PublicKey, p Program) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.programs[string(key)] = p
	l.accounts[string(key)] = solana.AccountInfo{
		Owner:      loaderKey,
		Lamports:   1,
		Executable: true,
	}
}

// Airdrop credits lamports to the address, creating a system account if needed.
func (l *Ledger) Airdrop(pub ed25519.PublicKey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, ok := l.accounts[string(pub)]
	if !ok {
		info.Owner = system.ProgramKey[:]
	}
	info.Lamports += lamports
	l.accounts[string(pub)] = info
}

// SetAccount writes account state directly, bypassing any program.
func (l *Ledger) SetAccount(pub ed25519.PublicKey, info solana.AccountInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.accounts[string(pub)] = cloneAccount(info)
}

// Account reads account state without counting an RPC request.
func (l *Ledger) Account(pub ed25519.PublicKey) (solana.AccountInfo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, ok := l.accounts[string(pub)]
	if !ok {
		return solana.AccountInfo{}, false
	}
	return cloneAccount(info), true
}

// InduceInstructionError makes the next instruction invoking program fail
// with err instead of running.
func (l *Ledger) InduceInstructionError(program ed25519.PublicKey, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.induced[string(program)] = err
}

// SetSkipPreflight controls whether failing transactions are rejected at
// submission (the default) or land with their error recorded in the
// signature status.
func (l *Ledger) SetSkipPreflight(skip bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.skipPreflight = skip
}

// SetClock overrides the ledger clock.
func (l *Ledger) SetClock(clock func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.clock = clock
}

// Requests returns how many times the RPC method was called. An empty
// method returns the total across all methods.
func (l *Ledger) Requests(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if method != "" {
		return l.requests[method]
	}

	var total int
	for _, n := range l.requests {
		total += n
	}
	return total
}

// Transactions returns every transaction that landed, in order.
func (l *Ledger) Transactions() []solana.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]solana.Transaction(nil), l.transactions...)
}

func (l *Ledger) count(method string) {
	l.requests[method]++
}

func (l *Ledger) GetAccountInfo(pub ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("getAccountInfo")

	info, ok := l.accounts[string(pub)]
	if !ok || (info.Lamports == 0 && !info.Executable) {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}
	return cloneAccount(info), nil
}

func (l *Ledger) GetBalance(pub ed25519.PublicKey, _ solana.Commitment) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("getBalance")

	return l.accounts[string(pub)].Lamports, nil
}

func (l *Ledger) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("getMinimumBalanceForRentExemption")

	return RentExemptMinimum(size), nil
}

func (l *Ledger) GetLatestBlockhash() (solana.Blockhash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("getLatestBlockhash")

	return l.latest, nil
}

func (l *Ledger) GetSignatureStatus(sig solana.Signature, commitment solana.Commitment) (*solana.SignatureStatus, error) {
	return solana.PollSignatureStatus(l, sig, commitment)
}

func (l *Ledger) GetSignatureStatuses(sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("getSignatureStatuses")

	statuses := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		if s, ok := l.statuses[sig]; ok {
			copied := *s
			statuses[i] = &copied
		}
	}
	return statuses, nil
}

func (l *Ledger) GetTokenAccountBalance(pub ed25519.PublicKey, _ solana.Commitment) (uint64, uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("getTokenAccountBalance")

	info, ok := l.accounts[string(pub)]
	if !ok || !bytesEqual(info.Owner, token.ProgramKey) {
		return 0, 0, solana.ErrNoBalance
	}

	var account token.Account
	if !account.Unmarshal(info.Data) || account.State == token.AccountStateUninitialized {
		return 0, 0, solana.ErrNoBalance
	}

	return account.Amount, l.slot, nil
}

// SubmitTransaction processes the transaction. Unless preflight is skipped,
// a failing transaction is rejected with its *solana.TransactionError and
// leaves no trace on the ledger.
func (l *Ledger) SubmitTransaction(txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count("sendTransaction")

	sig := txn.Signature()

	raw := txn.Marshal()
	if len(raw) > solana.MaxTransactionSize {
		return sig, errors.Errorf("transaction too large: %d bytes (max: %d)", len(raw), solana.MaxTransactionSize)
	}

	var decoded solana.Transaction
	if err := decoded.Unmarshal(raw); err != nil {
		return sig, solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}
	if err := decoded.VerifySignatures(); err != nil {
		return sig, solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
	}
	if _, ok := l.blockhashes[decoded.Message.RecentBlockhash]; !ok {
		return sig, solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	}
	if _, ok := l.statuses[sig]; ok {
		return sig, solana.NewTransactionError(solana.TransactionErrorAlreadyProcessed)
	}

	payer := string(decoded.Message.Accounts[0])
	payerInfo, ok := l.accounts[payer]
	if !ok {
		return sig, solana.NewTransactionError(solana.TransactionErrorAccountNotFound)
	}
	fee := LamportsPerSignature * uint64(len(decoded.Signatures))
	if payerInfo.Lamports < fee {
		return sig, solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee)
	}

	working := make(map[string]solana.AccountInfo, len(l.accounts))
	for k, v := range l.accounts {
		working[k] = v
	}
	payerInfo.Lamports -= fee
	working[payer] = payerInfo

	txErr, logs := l.execute(decoded.Message, working)
	if txErr != nil {
		l.log.WithFields(logrus.Fields{
			"method":    "SubmitTransaction",
			"signature": sig.String(),
			"error":     txErr.Error(),
		}).Debug("transaction failed")

		if !l.skipPreflight {
			return sig, txErr.WithLogs(logs)
		}

		// A landed failure still pays its fee.
		l.accounts[payer] = payerInfo
		l.land(decoded, txErr)
		return sig, nil
	}

	l.accounts = working
	l.land(decoded, nil)
	return sig, nil
}

func (l *Ledger) execute(m solana.Message, working map[string]solana.AccountInfo) (*solana.TransactionError, []string) {
	var logs []string
	for i := range m.Instructions {
		instruction, err := m.Decompile(i)
		if err != nil {
			return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure), logs
		}

		programID := base58.Encode(instruction.Program)
		program, ok := l.programs[string(instruction.Program)]
		if !ok {
			return solana.NewTransactionError(solana.TransactionErrorProgramAccountNotFound), logs
		}

		logs = append(logs, "Program "+programID+" invoke [1]")

		ctx := &InstructionContext{
			Message:       m,
			Index:         i,
			Instruction:   instruction,
			UnixTimestamp: l.clock().Unix(),
			accounts:      working,
		}

		if induced, ok := l.induced[string(instruction.Program)]; ok {
			delete(l.induced, string(instruction.Program))
			err = induced
		} else {
			err = program(ctx)
		}
		logs = append(logs, ctx.logs...)

		if err != nil {
			instructionErr := toInstructionError(i, err)
			logs = append(logs, "Program "+programID+" failed: "+instructionErr.Err.Error())

			txErr, convErr := solana.TransactionErrorFromInstructionError(instructionErr)
			if convErr != nil {
				return solana.NewTransactionError(solana.TransactionErrorInstructionError), logs
			}
			return txErr, logs
		}

		logs = append(logs, "Program "+programID+" success")
	}

	return nil, logs
}

func (l *Ledger) land(txn solana.Transaction, txErr *solana.TransactionError) {
	l.slot++

	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], l.slot)
	l.latest = sha256.Sum256(append(l.latest[:], seed[:]...))
	l.blockhashes[l.latest] = struct{}{}

	confirmations := 1
	l.statuses[txn.Signature()] = &solana.SignatureStatus{
		Slot:               l.slot,
		ErrorResult:        txErr,
		Confirmations:      &confirmations,
		ConfirmationStatus: solana.CommitmentConfirmed.Commitment,
	}
	l.transactions = append(l.transactions, txn)
}

func bytesEqual(a, b []byte) bool {
	return string(a) == string(b)
}

func mustDecode(s string) ed25519.PublicKey {
	b, err := base58.Decode(s)
	if err != nil {
		panic(err)
	}
	return b
}
