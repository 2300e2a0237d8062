package drop

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/citychests/vault-drop/pkg/solana"
)

// Session binds a signer to an RPC client. Every step of the drop submits
// through the same session.
type Session struct {
	log        *logrus.Entry
	client     solana.Client
	signer     ed25519.PrivateKey
	commitment solana.Commitment
}

// NewSession returns a session that pays for and signs transactions with
// signer, at the confirmed commitment level.
func NewSession(client solana.Client, signer ed25519.PrivateKey) *Session {
	return &Session{
		log:        logrus.StandardLogger().WithField("type", "drop/session"),
		client:     client,
		signer:     signer,
		commitment: solana.CommitmentConfirmed,
	}
}

func (s *Session) Client() solana.Client {
	return s.client
}

func (s *Session) Commitment() solana.Commitment {
	return s.commitment
}

func (s *Session) PublicKey() ed25519.PublicKey {
	return s.signer.Public().(ed25519.PublicKey)
}

// Submit signs the instructions with the session signer and any extra
// signers, sends them as one transaction, and waits for confirmation. A
// transaction that lands with an error returns that *solana.TransactionError.
func (s *Session) Submit(ctx context.Context, instructions []solana.Instruction, extraSigners ...ed25519.PrivateKey) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}

	bh, err := s.client.GetLatestBlockhash()
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to get latest blockhash")
	}

	txn := solana.NewTransaction(s.PublicKey(), instructions...)
	txn.SetBlockhash(bh)
	if err := txn.Sign(append([]ed25519.PrivateKey{s.signer}, extraSigners...)...); err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to sign transaction")
	}

	log := s.log.WithField("signature", txn.Signature().String())

	sig, err := s.client.SubmitTransaction(txn, s.commitment)
	if err != nil {
		log.WithError(err).Debug("transaction rejected")
		return sig, err
	}

	status, err := s.client.GetSignatureStatus(sig, s.commitment)
	if err != nil {
		log.WithError(err).Debug("transaction failed")
		return sig, err
	}
	if status.ErrorResult != nil {
		return sig, status.ErrorResult
	}

	log.WithField("slot", status.Slot).Debug("transaction confirmed")
	return sig, nil
}
