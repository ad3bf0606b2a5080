package transfer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/wallet-tools/pkg/metrics"
	"github.com/code-payments/wallet-tools/pkg/retry"
	"github.com/code-payments/wallet-tools/pkg/retry/backoff"
	"github.com/code-payments/wallet-tools/pkg/solana"
)

const (
	metricsStructName = "transfer.submitter"

	submittedMetricName           = "Transfer/Submitted"
	confirmationLatencyMetricName = "Transfer/ConfirmationLatency"

	defaultPollInterval = 500 * time.Millisecond
)

var errNotConfirmed = errors.New("transaction not yet confirmed")

// Submitter broadcasts signed transactions and waits for them to reach a
// commitment level. It never resubmits a transaction.
type Submitter struct {
	log            *logrus.Entry
	client         solana.Client
	commitment     solana.Commitment
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

type SubmitterOption func(*Submitter)

// WithPollInterval sets how often signature status is polled.
func WithPollInterval(interval time.Duration) SubmitterOption {
	return func(s *Submitter) {
		s.pollInterval = interval
	}
}

func NewSubmitter(client solana.Client, commitment solana.Commitment, confirmTimeout time.Duration, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		log:            logrus.StandardLogger().WithField("type", "transfer/submitter"),
		client:         client,
		commitment:     commitment,
		confirmTimeout: confirmTimeout,
		pollInterval:   defaultPollInterval,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Commitment is the level transactions are confirmed to.
func (s *Submitter) Commitment() solana.Commitment {
	return s.commitment
}

// SubmitAndConfirm submits txn and blocks until it reaches the configured
// commitment.
//
// Errors are distinguishable with errors.Is:
//   - solana.ErrMissingSignature or ErrTransactionTooLarge: nothing was sent.
//   - ErrRejected: the network rejected the transaction, see *RejectedError.
//   - ErrConfirmationTimeout: the outcome is unknown, see *TimeoutError.
//   - solana.ErrNetwork: submission failed in transit and the outcome is
//     unknown.
//
// On ErrConfirmationTimeout and solana.ErrNetwork the returned signature
// identifies the transaction for Status.
func (s *Submitter) SubmitAndConfirm(ctx context.Context, txn solana.Transaction) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "SubmitAndConfirm")
	defer tracer.End()

	sig, err := s.submitAndConfirm(ctx, txn)
	tracer.AddAttribute("signature", sig.String())
	tracer.OnError(err)
	return sig, err
}

func (s *Submitter) submitAndConfirm(ctx context.Context, txn solana.Transaction) (solana.Signature, error) {
	sig := txn.Signature()
	log := s.log.WithFields(logrus.Fields{
		"method":    "SubmitAndConfirm",
		"signature": sig.String(),
	})

	if err := checkSigned(txn); err != nil {
		return sig, err
	}
	if size := len(txn.Marshal()); size > solana.MaxTransactionSize {
		return sig, errors.Wrapf(ErrTransactionTooLarge, "%d bytes", size)
	}

	sig, err := s.client.SubmitTransaction(ctx, txn, s.commitment)
	if err != nil {
		var txErr *solana.TransactionError
		var submitErr *solana.SubmitError
		switch {
		case errors.As(err, &txErr):
			log.WithError(err).Info("transaction rejected in preflight")
			return sig, &RejectedError{Signature: sig, Reason: txErr}
		case errors.As(err, &submitErr):
			log.WithError(err).Info("transaction refused by node")
			return sig, &RejectedError{Signature: sig, Message: submitErr.Message}
		}
		return sig, errors.Wrap(err, "failed to submit transaction")
	}

	log.Debug("transaction submitted")
	metrics.RecordCount(ctx, submittedMetricName, 1)

	status, err := s.waitForCommitment(ctx, sig)
	if err != nil {
		var timeoutErr *TimeoutError
		if errors.As(err, &timeoutErr) {
			log.WithError(err).Warn("transaction not confirmed in time")
		}
		return sig, err
	}

	log.WithField("slot", status.Slot).Info("transaction confirmed")
	return sig, nil
}

// Confirm waits for an already submitted transaction, such as an airdrop, to
// reach the configured commitment.
func (s *Submitter) Confirm(ctx context.Context, sig solana.Signature) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Confirm")
	defer tracer.End()

	_, err := s.waitForCommitment(ctx, sig)
	tracer.OnError(err)
	return err
}

// Status returns the status of the transaction, or nil if the network does
// not know about it.
func (s *Submitter) Status(ctx context.Context, sig solana.Signature) (*solana.SignatureStatus, error) {
	statuses, err := s.client.GetSignatureStatuses(ctx, []solana.Signature{sig})
	if err != nil {
		return nil, err
	}
	if len(statuses) != 1 {
		return nil, errors.Errorf("expected 1 status, got %d", len(statuses))
	}
	return statuses[0], nil
}

func (s *Submitter) waitForCommitment(ctx context.Context, sig solana.Signature) (*solana.SignatureStatus, error) {
	start := time.Now()
	pollCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	var status *solana.SignatureStatus
	_, err := retry.Retry(
		pollCtx,
		func() error {
			st, err := s.Status(pollCtx, sig)
			if err != nil {
				return err
			}
			if st == nil {
				return errNotConfirmed
			}
			if st.ErrorResult != nil {
				return &RejectedError{Signature: sig, Reason: st.ErrorResult}
			}
			if !st.Reached(s.commitment) {
				return errNotConfirmed
			}

			status = st
			return nil
		},
		retry.RetriableErrors(errNotConfirmed, solana.ErrNetwork),
		retry.Backoff(backoff.Constant(s.pollInterval), s.pollInterval),
	)
	if err == nil {
		metrics.RecordDuration(ctx, confirmationLatencyMetricName, time.Since(start))
		return status, nil
	}

	if pollCtx.Err() != nil {
		return nil, &TimeoutError{Signature: sig, Err: pollCtx.Err()}
	}
	return nil, err
}

func checkSigned(txn solana.Transaction) error {
	if len(txn.Signatures) != int(txn.Message.Header.NumSignatures) {
		return errors.Errorf("signature count mismatch: %d signatures, %d signers", len(txn.Signatures), txn.Message.Header.NumSignatures)
	}

	for i, sig := range txn.Signatures {
		if sig == (solana.Signature{}) {
			return &solana.MissingSignatureError{Account: txn.Message.Accounts[i]}
		}
	}

	if !txn.VerifySignatures() {
		return errors.New("transaction has an invalid signature")
	}
	return nil
}
