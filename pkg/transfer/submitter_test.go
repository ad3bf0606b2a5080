package transfer

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/wallet-tools/pkg/solana"
	"github.com/code-payments/wallet-tools/pkg/solana/system"
	"github.com/code-payments/wallet-tools/pkg/testutil"
)

const (
	testPollInterval   = time.Millisecond
	testConfirmTimeout = 50 * time.Millisecond
)

func newTestSubmitter(sc solana.Client, commitment solana.Commitment) *Submitter {
	return NewSubmitter(sc, commitment, testConfirmTimeout, WithPollInterval(testPollInterval))
}

func newSignedTransfer(t *testing.T, sc *testutil.SolanaClient) (ed25519.PrivateKey, solana.Transaction) {
	sender := testutil.GenerateSolanaKeypair(t)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	txn := solana.NewTransaction(sender.Public().(ed25519.PublicKey), sc.Blockhash, system.Transfer(sender.Public().(ed25519.PublicKey), receiver, 10))
	require.NoError(t, txn.Sign(sender))
	return sender, txn
}

func TestSubmitter_Confirmed(t *testing.T) {
	sc := testutil.NewSolanaClient()
	sc.Land = solana.CommitmentConfirmed
	s := newTestSubmitter(sc, solana.CommitmentConfirmed)

	_, txn := newSignedTransfer(t, sc)

	sig, err := s.SubmitAndConfirm(context.Background(), txn)
	require.NoError(t, err)
	assert.Equal(t, txn.Signature(), sig)
	require.Len(t, sc.Submitted, 1)
	assert.Equal(t, txn.Marshal(), sc.Submitted[0].Marshal())

	status, err := s.Status(context.Background(), sig)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.True(t, status.Confirmed())
}

func TestSubmitter_WaitsForCommitment(t *testing.T) {
	sc := testutil.NewSolanaClient()
	sc.Land = solana.CommitmentProcessed
	s := NewSubmitter(sc, solana.CommitmentFinalized, time.Second, WithPollInterval(testPollInterval))

	_, txn := newSignedTransfer(t, sc)

	go func() {
		for {
			sc.Lock()
			queries := sc.StatusQueries
			sc.Unlock()

			if queries >= 3 {
				sc.SetStatus(txn.Signature(), solana.CommitmentFinalized, nil)
				return
			}
			time.Sleep(testPollInterval)
		}
	}()

	sig, err := s.SubmitAndConfirm(context.Background(), txn)
	require.NoError(t, err)
	assert.Equal(t, txn.Signature(), sig)

	sc.Lock()
	defer sc.Unlock()
	assert.True(t, sc.StatusQueries >= 3)
	assert.Len(t, sc.Submitted, 1)
}

func TestSubmitter_Timeout(t *testing.T) {
	sc := testutil.NewSolanaClient()
	sc.Land = solana.CommitmentProcessed
	s := newTestSubmitter(sc, solana.CommitmentConfirmed)

	_, txn := newSignedTransfer(t, sc)

	sig, err := s.SubmitAndConfirm(context.Background(), txn)
	assert.True(t, errors.Is(err, ErrConfirmationTimeout))
	assert.Equal(t, txn.Signature(), sig)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, txn.Signature(), timeoutErr.Signature)

	// Never resubmitted.
	assert.Len(t, sc.Submitted, 1)
}

func TestSubmitter_ContextCancelled(t *testing.T) {
	sc := testutil.NewSolanaClient()
	sc.Land = solana.Commitment{}
	s := NewSubmitter(sc, solana.CommitmentConfirmed, time.Minute, WithPollInterval(testPollInterval))

	_, txn := newSignedTransfer(t, sc)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.SubmitAndConfirm(ctx, txn)
	assert.True(t, errors.Is(err, ErrConfirmationTimeout))
}

func TestSubmitter_RejectedInPreflight(t *testing.T) {
	sc := testutil.NewSolanaClient()
	sc.SubmitErr = solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee)
	s := newTestSubmitter(sc, solana.CommitmentConfirmed)

	_, txn := newSignedTransfer(t, sc)

	sig, err := s.SubmitAndConfirm(context.Background(), txn)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Equal(t, txn.Signature(), sig)

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, txn.Signature(), rejected.Signature)
	assert.Equal(t, solana.TransactionErrorInsufficientFundsForFee, rejected.Reason.ErrorKey())
	assert.Zero(t, sc.StatusQueries)
}

func TestSubmitter_RefusedByNode(t *testing.T) {
	sc := testutil.NewSolanaClient()
	sc.SubmitErr = &solana.SubmitError{Code: -32003, Message: "Transaction signature verification failure"}
	s := newTestSubmitter(sc, solana.CommitmentConfirmed)

	_, txn := newSignedTransfer(t, sc)

	sig, err := s.SubmitAndConfirm(context.Background(), txn)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.False(t, errors.Is(err, solana.ErrNetwork))
	assert.Equal(t, txn.Signature(), sig)

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Nil(t, rejected.Reason)
	assert.Equal(t, "Transaction signature verification failure", rejected.Message)
	assert.Contains(t, err.Error(), rejected.Message)
	assert.Zero(t, sc.StatusQueries)
}

func TestSubmitter_Traced(t *testing.T) {
	sc := testutil.NewSolanaClient()
	sc.Land = solana.CommitmentConfirmed
	s := newTestSubmitter(sc, solana.CommitmentConfirmed)

	_, txn := newSignedTransfer(t, sc)

	sig, err := s.SubmitAndConfirm(testutil.NewTracedContext(t), txn)
	require.NoError(t, err)
	assert.Equal(t, txn.Signature(), sig)
}

func TestSubmitter_RejectedOnChain(t *testing.T) {
	sc := testutil.NewSolanaClient()
	sc.Land = solana.Commitment{}
	sc.OnSubmit = func(txn solana.Transaction) {
		sc.Statuses[txn.Signature()] = &solana.SignatureStatus{
			Slot:               10,
			ErrorResult:        solana.NewInstructionTransactionError(0, solana.CustomError(1)),
			ConfirmationStatus: "confirmed",
		}
	}
	s := newTestSubmitter(sc, solana.CommitmentConfirmed)

	_, txn := newSignedTransfer(t, sc)

	_, err := s.SubmitAndConfirm(context.Background(), txn)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.False(t, errors.Is(err, ErrConfirmationTimeout))

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	require.NotNil(t, rejected.Reason.InstructionError())
	assert.Equal(t, 0, rejected.Reason.InstructionError().Index)
}

func TestSubmitter_NetworkError(t *testing.T) {
	sc := testutil.NewSolanaClient()
	sc.SubmitErr = &solana.NetworkError{Method: "sendTransaction", Err: errors.New("connection reset")}
	s := newTestSubmitter(sc, solana.CommitmentConfirmed)

	_, txn := newSignedTransfer(t, sc)

	sig, err := s.SubmitAndConfirm(context.Background(), txn)
	assert.True(t, errors.Is(err, solana.ErrNetwork))
	assert.False(t, errors.Is(err, ErrRejected))
	assert.Equal(t, txn.Signature(), sig)
}

func TestSubmitter_TransientStatusErrors(t *testing.T) {
	sc := testutil.NewSolanaClient()
	sc.Land = solana.CommitmentConfirmed
	sc.StatusErr = &solana.NetworkError{Method: "getSignatureStatuses", Err: errors.New("timeout")}
	s := NewSubmitter(sc, solana.CommitmentConfirmed, time.Second, WithPollInterval(testPollInterval))

	_, txn := newSignedTransfer(t, sc)

	go func() {
		time.Sleep(10 * time.Millisecond)
		sc.Lock()
		sc.StatusErr = nil
		sc.Unlock()
	}()

	_, err := s.SubmitAndConfirm(context.Background(), txn)
	require.NoError(t, err)
}

func TestSubmitter_LocalChecks(t *testing.T) {
	sc := testutil.NewSolanaClient()
	s := newTestSubmitter(sc, solana.CommitmentConfirmed)

	sender := testutil.GenerateSolanaKeypair(t)
	receiver := testutil.GenerateSolanaKeys(t, 1)[0]

	unsigned := solana.NewTransaction(sender.Public().(ed25519.PublicKey), sc.Blockhash, system.Transfer(sender.Public().(ed25519.PublicKey), receiver, 10))
	_, err := s.SubmitAndConfirm(context.Background(), unsigned)
	assert.True(t, errors.Is(err, solana.ErrMissingSignature))

	var missing *solana.MissingSignatureError
	require.True(t, errors.As(err, &missing))
	assert.EqualValues(t, sender.Public(), missing.Account)

	// A signature over a different message is invalid.
	_, other := newSignedTransfer(t, sc)
	forged := unsigned
	forged.Signatures = []solana.Signature{other.Signature()}
	_, err = s.SubmitAndConfirm(context.Background(), forged)
	assert.Error(t, err)

	assert.Empty(t, sc.Submitted)
}

func TestSubmitter_Confirm(t *testing.T) {
	sc := testutil.NewSolanaClient()
	s := newTestSubmitter(sc, solana.CommitmentFinalized)

	recipient := testutil.GenerateSolanaKeys(t, 1)[0]
	sig, err := sc.RequestAirdrop(context.Background(), recipient, 1_000_000_000, solana.CommitmentFinalized)
	require.NoError(t, err)

	require.NoError(t, s.Confirm(context.Background(), sig))

	var unknown solana.Signature
	unknown[0] = 1
	assert.True(t, errors.Is(s.Confirm(context.Background(), unknown), ErrConfirmationTimeout))
}
