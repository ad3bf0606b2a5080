package transfer

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/wallet-tools/pkg/metrics"
	"github.com/code-payments/wallet-tools/pkg/solana"
)

// DrainState is the last step a drain completed.
type DrainState uint8

const drainEventName = "SolanaDrain"

const (
	DrainStart DrainState = iota
	DrainBalanceFetched
	DrainCheckpointFetched
	DrainFeeEstimated
	DrainAmountComputed
	DrainSigned
	DrainSubmitted
	DrainConfirmed
	DrainFailed
)

func (s DrainState) String() string {
	switch s {
	case DrainStart:
		return "start"
	case DrainBalanceFetched:
		return "balance_fetched"
	case DrainCheckpointFetched:
		return "checkpoint_fetched"
	case DrainFeeEstimated:
		return "fee_estimated"
	case DrainAmountComputed:
		return "amount_computed"
	case DrainSigned:
		return "signed"
	case DrainSubmitted:
		return "submitted"
	case DrainConfirmed:
		return "confirmed"
	case DrainFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type DrainResult struct {
	Balance   uint64
	Fee       uint64
	Amount    uint64
	Signature solana.Signature
	State     DrainState

	// FailedAt is the state the drain was in when it failed.
	FailedAt DrainState
}

// ComputeDrainAmount returns the amount that empties an account holding
// balance after paying fee.
func ComputeDrainAmount(balance, fee uint64) (uint64, error) {
	if fee > balance {
		return 0, &InsufficientFundsError{Balance: balance, Fee: fee}
	}
	return balance - fee, nil
}

// Drain transfers the entire balance of from, less the transaction fee, to
// the to address. The source account ends with zero lamports.
//
// The fee is estimated once, on a transaction identical to the final one in
// all but the amount. The result is returned on failure too, and records how
// far the drain progressed. A drain that fails after DrainSubmitted may still
// land; check the signature with Submitter.Status before retrying.
//
// Concurrent drains of the same source are not supported.
func (c *Client) Drain(ctx context.Context, from ed25519.PrivateKey, to ed25519.PublicKey, opts ...Option) (*DrainResult, error) {
	tracer := metrics.TraceMethodCall(ctx, transferMetricsName, "Drain")
	defer tracer.End()

	result := &DrainResult{State: DrainStart}
	err := c.drain(ctx, from, to, result, opts...)
	if err != nil {
		result.FailedAt = result.State
		result.State = DrainFailed
	}

	attributes := map[string]interface{}{
		"state":   result.State.String(),
		"balance": result.Balance,
		"fee":     result.Fee,
		"amount":  result.Amount,
	}
	if err != nil {
		attributes["failed_at"] = result.FailedAt.String()
	}
	tracer.AddAttributes(attributes)
	tracer.OnError(err)
	metrics.RecordEvent(ctx, drainEventName, attributes)

	return result, err
}

func (c *Client) drain(ctx context.Context, from ed25519.PrivateKey, to ed25519.PublicKey, result *DrainResult, opts ...Option) error {
	sender := from.Public().(ed25519.PublicKey)
	commitment := c.submitter.Commitment()

	log := c.log.WithFields(logrus.Fields{
		"method": "Drain",
		"from":   base58.Encode(sender),
		"to":     base58.Encode(to),
	})

	balance, err := c.sc.GetBalance(ctx, sender, commitment)
	if err != nil {
		return errors.Wrap(err, "failed to get balance")
	}
	if balance == 0 {
		return errors.Wrapf(solana.ErrAccountNotFound, "%s has no lamports", base58.Encode(sender))
	}
	result.Balance = balance
	result.State = DrainBalanceFetched

	bh, err := c.sc.GetLatestBlockhash(ctx, commitment)
	if err != nil {
		return errors.Wrap(err, "failed to get recent blockhash")
	}
	result.State = DrainCheckpointFetched

	draft, err := transferInstructions(sender, to, balance, opts...)
	if err != nil {
		return err
	}
	draftTxn := solana.NewTransaction(sender, bh, draft...)

	fee, err := c.sc.GetFeeForMessage(ctx, draftTxn.Message, commitment)
	if err != nil {
		return errors.Wrap(err, "failed to estimate fee")
	}
	result.Fee = fee
	result.State = DrainFeeEstimated

	amount, err := ComputeDrainAmount(balance, fee)
	if err != nil {
		log.WithError(err).Info("balance does not cover fee")
		return err
	}
	result.Amount = amount
	result.State = DrainAmountComputed

	final, err := transferInstructions(sender, to, amount, opts...)
	if err != nil {
		return err
	}
	txn := solana.NewTransaction(sender, bh, final...)
	if err := txn.Sign(from); err != nil {
		return errors.Wrap(err, "failed to sign transaction")
	}
	result.Signature = txn.Signature()
	result.State = DrainSigned

	log = log.WithFields(logrus.Fields{
		"balance":   balance,
		"fee":       fee,
		"amount":    amount,
		"signature": result.Signature.String(),
	})

	sig, err := c.submitter.SubmitAndConfirm(ctx, txn)
	result.Signature = sig
	if err != nil {
		if !errors.Is(err, ErrTransactionTooLarge) && !errors.Is(err, solana.ErrMissingSignature) {
			result.State = DrainSubmitted
		}
		log.WithError(err).WithField("state", result.State.String()).Warn("drain failed")
		return err
	}
	result.State = DrainConfirmed

	log.Info("account drained")
	return nil
}
