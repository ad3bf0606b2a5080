package transfer

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/wallet-tools/pkg/metrics"
	"github.com/code-payments/wallet-tools/pkg/solana"
	"github.com/code-payments/wallet-tools/pkg/solana/computebudget"
	"github.com/code-payments/wallet-tools/pkg/solana/memo"
	"github.com/code-payments/wallet-tools/pkg/solana/system"
)

const transferMetricsName = "transfer.client"

// Option configures the transaction built for a transfer or drain.
type Option func(*transferOptions)

type transferOptions struct {
	memo          string
	priorityPrice uint64
}

// WithMemo attaches a memo, signed by the sender, to the transaction.
func WithMemo(text string) Option {
	return func(o *transferOptions) {
		o.memo = text
	}
}

// WithPriorityFee sets a compute unit price in micro-lamports.
func WithPriorityFee(microLamports uint64) Option {
	return func(o *transferOptions) {
		o.priorityPrice = microLamports
	}
}

// Client moves SOL between system accounts.
type Client struct {
	log       *logrus.Entry
	sc        solana.Client
	submitter *Submitter
}

func NewClient(sc solana.Client, submitter *Submitter) *Client {
	return &Client{
		log:       logrus.StandardLogger().WithField("type", "transfer/client"),
		sc:        sc,
		submitter: submitter,
	}
}

// Transfer sends lamports from the holder of from to the to address and waits
// for confirmation.
func (c *Client) Transfer(ctx context.Context, from ed25519.PrivateKey, to ed25519.PublicKey, lamports uint64, opts ...Option) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, transferMetricsName, "Transfer")
	defer tracer.End()

	sig, err := c.transfer(ctx, from, to, lamports, opts...)
	tracer.OnError(err)
	return sig, err
}

func (c *Client) transfer(ctx context.Context, from ed25519.PrivateKey, to ed25519.PublicKey, lamports uint64, opts ...Option) (solana.Signature, error) {
	sender := from.Public().(ed25519.PublicKey)

	log := c.log.WithFields(logrus.Fields{
		"method":   "Transfer",
		"from":     base58.Encode(sender),
		"to":       base58.Encode(to),
		"lamports": lamports,
	})

	instructions, err := transferInstructions(sender, to, lamports, opts...)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := c.submitter.Send(ctx, from, nil, instructions...)
	if err != nil {
		return sig, err
	}

	log.WithField("signature", sig.String()).Info("transfer confirmed")
	return sig, nil
}

func transferInstructions(from, to ed25519.PublicKey, lamports uint64, opts ...Option) ([]solana.Instruction, error) {
	var o transferOptions
	for _, opt := range opts {
		opt(&o)
	}

	instructions := computebudget.Budget{UnitPrice: o.priorityPrice}.Instructions()
	instructions = append(instructions, system.Transfer(from, to, lamports))

	if o.memo != "" {
		memoIxn, err := memo.Instruction(o.memo, from)
		if err != nil {
			return nil, errors.Wrap(err, "invalid memo")
		}
		instructions = append(instructions, memoIxn)
	}

	return instructions, nil
}

// Send builds a transaction paid for by payer, signs it with payer and the
// additional signers, then submits and confirms it.
func (s *Submitter) Send(ctx context.Context, payer ed25519.PrivateKey, signers []ed25519.PrivateKey, instructions ...solana.Instruction) (solana.Signature, error) {
	bh, err := s.client.GetLatestBlockhash(ctx, s.commitment)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to get recent blockhash")
	}

	txn := solana.NewTransaction(payer.Public().(ed25519.PublicKey), bh, instructions...)
	if err := txn.Sign(append([]ed25519.PrivateKey{payer}, signers...)...); err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to sign transaction")
	}

	return s.SubmitAndConfirm(ctx, txn)
}
