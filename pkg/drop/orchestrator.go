package drop

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/citychests/vault-drop/pkg/citychests"
	"github.com/citychests/vault-drop/pkg/retry"
	"github.com/citychests/vault-drop/pkg/solana"
	"github.com/citychests/vault-drop/pkg/solana/system"
	"github.com/citychests/vault-drop/pkg/solana/token"
)

// State is the progress of a drop. Transitions only move forward.
type State int

const (
	StateStart State = iota
	StateEnvResolved
	StateSessionReady
	StateProgramBound
	StateConfigReady
	StateRecordReady
	StateTokenMinted
	StateConfirmed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateEnvResolved:
		return "ENV_RESOLVED"
	case StateSessionReady:
		return "SESSION_READY"
	case StateProgramBound:
		return "PROGRAM_BOUND"
	case StateConfigReady:
		return "CONFIG_READY"
	case StateRecordReady:
		return "RECORD_READY"
	case StateTokenMinted:
		return "TOKEN_MINTED"
	case StateConfirmed:
		return "CONFIRMED"
	default:
		return "UNKNOWN"
	}
}

// ErrInvalidState is returned when a step runs before its predecessor.
var ErrInvalidState = errors.New("step out of order")

var errNonceTaken = errors.New("nonce already has a record")

// Result describes what a drop created on the network.
type Result struct {
	Program           ed25519.PublicKey
	Config            ed25519.PublicKey
	Record            ed25519.PublicKey
	Mint              ed25519.PublicKey
	VaultTokenAccount ed25519.PublicKey

	Nonce  uint64
	Rarity uint8

	// ConfigCreated is set when this run initialized the config.
	ConfigCreated bool

	// Signatures of every submitted transaction, in order.
	Signatures []solana.Signature
}

// Lines is the report printed on success.
func (r *Result) Lines() []string {
	return []string{
		"Program ID: " + base58.Encode(r.Program),
		"Config PDA: " + base58.Encode(r.Config),
		"Record PDA: " + base58.Encode(r.Record),
		"Mint: " + base58.Encode(r.Mint),
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClient uses client instead of dialing the environment's RPC URL.
func WithClient(client solana.Client) Option {
	return func(o *Orchestrator) {
		o.client = client
	}
}

// WithRarity replaces PlaceholderRarity.
func WithRarity(rarity RarityFunc) Option {
	return func(o *Orchestrator) {
		o.rarity = rarity
	}
}

// WithNonceSource replaces UUIDNonce.
func WithNonceSource(nonces NonceSource) Option {
	return func(o *Orchestrator) {
		o.nonces = nonces
	}
}

// Orchestrator runs the drop against one program: ensure the config, create
// a mint record, mint one token into the vault and confirm it.
type Orchestrator struct {
	log    *logrus.Entry
	conf   *conf
	env    *Environment
	client solana.Client
	rarity RarityFunc
	nonces NonceSource

	state   State
	session *Session
	program *citychests.Program
	vault   ed25519.PublicKey
	result  Result
}

func NewOrchestrator(env *Environment, configProvider ConfigProvider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:    logrus.StandardLogger().WithField("type", "drop/orchestrator"),
		conf:   configProvider(),
		env:    env,
		rarity: PlaceholderRarity,
		nonces: UUIDNonce,
		state:  StateEnvResolved,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute resolves the environment from envFile and the process, then runs a
// drop. No request is made when the environment is incomplete.
func Execute(ctx context.Context, envFile string, configProvider ConfigProvider, opts ...Option) (*Result, error) {
	env, err := LoadEnvironment(envFile)
	if err != nil {
		return nil, err
	}

	return NewOrchestrator(env, configProvider, opts...).Run(ctx)
}

func (o *Orchestrator) State() State {
	return o.state
}

// Run executes every remaining step in order. The returned result holds
// whatever was created before a failure.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"establish session", o.EstablishSession},
		{"bind program", o.BindProgram},
		{"ensure config", o.EnsureConfig},
		{"create mint record", o.CreateMintRecord},
		{"mint to vault", o.MintToVault},
		{"confirm mint", o.ConfirmMint},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return &o.result, errors.Wrapf(err, "%s", step.name)
		}

		if err := step.fn(ctx); err != nil {
			o.logFailure(step.name, err)
			return &o.result, errors.Wrapf(err, "%s", step.name)
		}
	}

	return &o.result, nil
}

func (o *Orchestrator) transition(next State) {
	o.log.WithFields(logrus.Fields{
		"from": o.state.String(),
		"to":   next.String(),
	}).Debug("state transition")
	o.state = next
}

func (o *Orchestrator) require(state State) error {
	if o.state != state {
		return errors.Wrapf(ErrInvalidState, "expected %s, at %s", state, o.state)
	}
	return nil
}

func (o *Orchestrator) logFailure(step string, err error) {
	log := o.log.WithError(err).WithFields(logrus.Fields{
		"step":  step,
		"state": o.state.String(),
	})

	if o.program != nil {
		if programErr, ok := o.program.Anchor().ProgramError(err); ok {
			log = log.WithFields(logrus.Fields{
				"error_code": programErr.Code,
				"error_name": programErr.Name,
			})
		}
	}

	log.Warn("drop step failed")
}

func (o *Orchestrator) submit(ctx context.Context, instructions []solana.Instruction, extraSigners ...ed25519.PrivateKey) error {
	sig, err := o.session.Submit(ctx, instructions, extraSigners...)
	if err != nil {
		return err
	}

	o.result.Signatures = append(o.result.Signatures, sig)
	return nil
}

// EstablishSession loads the wallet keypair and connects the RPC client.
func (o *Orchestrator) EstablishSession(ctx context.Context) error {
	if err := o.require(StateEnvResolved); err != nil {
		return err
	}

	signer, err := LoadKeypair(o.env.Wallet)
	if err != nil {
		return err
	}

	programID, err := ParseAddress("PROGRAM_ID", o.env.ProgramID)
	if err != nil {
		return err
	}
	vault, err := ParseAddress("VAULT", o.env.Vault)
	if err != nil {
		return err
	}

	client := o.client
	if client == nil {
		endpoint := solana.ResolveEndpoint(o.env.RPCURL)
		client = solana.NewWithRateLimit(endpoint, nil, o.conf.rpcRequestsPerSecond.Get(ctx))
	}

	o.session = NewSession(client, signer)
	o.vault = vault
	o.result.Program = programID

	o.log.WithFields(logrus.Fields{
		"payer":   base58.Encode(o.session.PublicKey()),
		"program": base58.Encode(programID),
		"vault":   base58.Encode(vault),
	}).Debug("session established")

	o.transition(StateSessionReady)
	return nil
}

// BindProgram resolves the program's IDL.
func (o *Orchestrator) BindProgram(ctx context.Context) error {
	if err := o.require(StateSessionReady); err != nil {
		return err
	}

	program, err := BindProgram(o.session.Client(), o.result.Program, o.session.Commitment())
	if err != nil {
		return err
	}
	o.program = program

	o.transition(StateProgramBound)
	return nil
}

// EnsureConfig initializes the config PDA unless it already exists. An
// existing config is used as is.
func (o *Orchestrator) EnsureConfig(ctx context.Context) error {
	if err := o.require(StateProgramBound); err != nil {
		return err
	}

	address, err := o.program.ConfigAddress()
	if err != nil {
		return err
	}
	o.result.Config = address

	log := o.log.WithField("config", base58.Encode(address))

	info, err := o.session.Client().GetAccountInfo(address, o.session.Commitment())
	switch {
	case err == nil:
		var existing citychests.Config
		if err := o.program.Anchor().DecodeAccount(citychests.ConfigAccountName, info.Data, &existing); err != nil {
			log.WithError(err).Debug("config exists but could not be decoded")
		} else {
			log.WithField("stored_vault", base58.Encode(existing.VaultKey())).Debug("config exists")
		}
	case errors.Cause(err) == solana.ErrNoAccountInfo:
		log.Info("Initializing config")

		ix, err := o.program.InitializeConfig(o.session.PublicKey(), o.vault)
		if err != nil {
			return err
		}
		if err := o.submit(ctx, []solana.Instruction{ix}); err != nil {
			return err
		}
		o.result.ConfigCreated = true
	default:
		return errors.Wrap(err, "failed to read config")
	}

	o.transition(StateConfigReady)
	return nil
}

// CreateMintRecord draws an unused nonce and creates its mint record, with
// the session signer as recipient.
func (o *Orchestrator) CreateMintRecord(ctx context.Context) error {
	if err := o.require(StateConfigReady); err != nil {
		return err
	}

	recipient := o.session.PublicKey()

	var nonce uint64
	var record ed25519.PublicKey
	_, err := retry.Retry(
		func() error {
			var err error
			if nonce, err = o.nonces(); err != nil {
				return err
			}
			if record, err = o.program.RecordAddress(recipient, nonce); err != nil {
				return err
			}

			_, err = o.session.Client().GetAccountInfo(record, o.session.Commitment())
			switch {
			case err == nil:
				o.log.WithField("nonce", nonce).Warn("nonce already used, drawing again")
				return errNonceTaken
			case errors.Cause(err) == solana.ErrNoAccountInfo:
				return nil
			default:
				return err
			}
		},
		retry.RetriableErrors(errNonceTaken),
		retry.Limit(uint(o.conf.maxNonceAttempts.Get(ctx))),
	)
	if errors.Is(err, errNonceTaken) {
		return ErrNonceExhausted
	} else if err != nil {
		return err
	}

	rarity := o.rarity(recipient, nonce)
	o.result.Record = record
	o.result.Nonce = nonce
	o.result.Rarity = rarity

	o.log.WithFields(logrus.Fields{
		"record": base58.Encode(record),
		"nonce":  nonce,
		"rarity": rarity,
	}).Info("Creating mint record")

	ix, err := o.program.CreateMintRecord(o.session.PublicKey(), recipient, rarity, nonce)
	if err != nil {
		return err
	}
	if err := o.submit(ctx, []solana.Instruction{ix}); err != nil {
		return err
	}

	o.transition(StateRecordReady)
	return nil
}

// MintToVault creates a zero-decimal mint, the vault's associated token
// account if needed, and mints exactly one token into it.
func (o *Orchestrator) MintToVault(ctx context.Context) error {
	if err := o.require(StateRecordReady); err != nil {
		return err
	}

	_, mintKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return errors.Wrap(err, "failed to generate mint keypair")
	}
	mint := mintKey.Public().(ed25519.PublicKey)
	payer := o.session.PublicKey()
	client := o.session.Client()

	log := o.log.WithField("mint", base58.Encode(mint))

	rent, err := client.GetMinimumBalanceForRentExemption(token.MintSize)
	if err != nil {
		return errors.Wrap(err, "failed to get mint rent")
	}

	err = o.submit(
		ctx,
		[]solana.Instruction{
			system.CreateAccount(payer, mint, token.ProgramKey, rent, token.MintSize),
			token.InitializeMint(mint, payer, payer, 0),
		},
		mintKey,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create mint")
	}
	o.result.Mint = mint
	log.Debug("mint created")

	createATA, ata, err := token.CreateAssociatedTokenAccountIdempotent(payer, o.vault, mint)
	if err != nil {
		return err
	}
	o.result.VaultTokenAccount = ata

	_, err = client.GetAccountInfo(ata, o.session.Commitment())
	switch {
	case err == nil:
		log.Debug("vault token account exists")
	case errors.Cause(err) == solana.ErrNoAccountInfo:
		if err := o.submit(ctx, []solana.Instruction{createATA}); err != nil {
			return errors.Wrap(err, "failed to create vault token account")
		}
	default:
		return errors.Wrap(err, "failed to read vault token account")
	}

	if err := o.submit(ctx, []solana.Instruction{token.MintTo(mint, ata, payer, 1)}); err != nil {
		return errors.Wrap(err, "failed to mint")
	}

	log.WithField("vault_token_account", base58.Encode(ata)).Info("minted to vault")

	o.transition(StateTokenMinted)
	return nil
}

// ConfirmMint records the mint on the mint record.
func (o *Orchestrator) ConfirmMint(ctx context.Context) error {
	if err := o.require(StateTokenMinted); err != nil {
		return err
	}

	ix, err := o.program.ConfirmMint(
		o.session.PublicKey(),
		o.session.PublicKey(),
		o.result.Nonce,
		o.result.Mint,
		o.result.VaultTokenAccount,
	)
	if err != nil {
		return err
	}
	if err := o.submit(ctx, []solana.Instruction{ix}); err != nil {
		if programErr := citychests.ErrorFromTransaction(err); programErr != nil {
			return errors.Wrapf(err, "rejected by program (%s)", programErr)
		}
		return err
	}

	o.log.WithFields(logrus.Fields{
		"record": base58.Encode(o.result.Record),
		"mint":   base58.Encode(o.result.Mint),
	}).Info("mint confirmed")

	o.transition(StateConfirmed)
	return nil
}
