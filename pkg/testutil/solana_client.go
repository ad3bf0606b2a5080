package testutil

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"sync"

	"github.com/mr-tron/base58"

	"github.com/code-payments/wallet-tools/pkg/solana"
)

// SolanaClient is an in-memory solana.Client.
//
// Submitted transactions are recorded and, when Land is set, are given a
// status at that commitment on submission. Airdrops credit Balances.
type SolanaClient struct {
	sync.Mutex

	Accounts      map[string]solana.AccountInfo
	Balances      map[string]uint64
	TokenBalances map[string]uint64
	Statuses      map[solana.Signature]*solana.SignatureStatus

	Blockhash      solana.Blockhash
	Fee            uint64
	MinimumBalance uint64

	// Land is the commitment submitted transactions reach immediately. An
	// empty value leaves them without a status.
	Land solana.Commitment

	// When set, the corresponding method fails with the error.
	AccountErr   error
	BalanceErr   error
	FeeErr       error
	BlockhashErr error
	SubmitErr    error
	StatusErr    error
	AirdropErr   error

	// OnSubmit is invoked with every transaction that passes SubmitErr. It
	// runs with the client locked and may modify fields directly.
	OnSubmit func(solana.Transaction)

	Submitted       []solana.Transaction
	FeeQueries      []solana.Message
	StatusQueries   int
	BlockhashCalls  int
	BalanceQueries  int
	AirdropRequests map[string]uint64
}

func NewSolanaClient() *SolanaClient {
	bh := sha256.Sum256([]byte("blockhash"))

	return &SolanaClient{
		Accounts:        make(map[string]solana.AccountInfo),
		Balances:        make(map[string]uint64),
		TokenBalances:   make(map[string]uint64),
		Statuses:        make(map[solana.Signature]*solana.SignatureStatus),
		AirdropRequests: make(map[string]uint64),
		Blockhash:       bh,
		Fee:             5000,
		MinimumBalance:  1461600,
		Land:            solana.CommitmentFinalized,
	}
}

func (c *SolanaClient) SetBalance(account ed25519.PublicKey, lamports uint64) {
	c.Lock()
	defer c.Unlock()
	c.Balances[base58.Encode(account)] = lamports
}

// SetStatus records a status for sig at the commitment level.
func (c *SolanaClient) SetStatus(sig solana.Signature, commitment solana.Commitment, txErr *solana.TransactionError) {
	c.Lock()
	defer c.Unlock()
	c.Statuses[sig] = newStatus(commitment, txErr)
}

func (c *SolanaClient) GetAccountInfo(_ context.Context, account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	c.Lock()
	defer c.Unlock()

	if c.AccountErr != nil {
		return solana.AccountInfo{}, c.AccountErr
	}

	info, ok := c.Accounts[base58.Encode(account)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrAccountNotFound
	}
	return info, nil
}

func (c *SolanaClient) GetBalance(_ context.Context, account ed25519.PublicKey, _ solana.Commitment) (uint64, error) {
	c.Lock()
	defer c.Unlock()

	c.BalanceQueries++
	if c.BalanceErr != nil {
		return 0, c.BalanceErr
	}
	return c.Balances[base58.Encode(account)], nil
}

func (c *SolanaClient) GetFeeForMessage(_ context.Context, m solana.Message, _ solana.Commitment) (uint64, error) {
	c.Lock()
	defer c.Unlock()

	c.FeeQueries = append(c.FeeQueries, m)
	if c.FeeErr != nil {
		return 0, c.FeeErr
	}
	return c.Fee, nil
}

func (c *SolanaClient) GetLatestBlockhash(_ context.Context, _ solana.Commitment) (solana.Blockhash, error) {
	c.Lock()
	defer c.Unlock()

	c.BlockhashCalls++
	if c.BlockhashErr != nil {
		return solana.Blockhash{}, c.BlockhashErr
	}
	return c.Blockhash, nil
}

func (c *SolanaClient) GetMinimumBalanceForRentExemption(_ context.Context, _ uint64) (uint64, error) {
	return c.MinimumBalance, nil
}

func (c *SolanaClient) GetSignatureStatuses(_ context.Context, sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	c.Lock()
	defer c.Unlock()

	c.StatusQueries++
	if c.StatusErr != nil {
		return nil, c.StatusErr
	}

	statuses := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		statuses[i] = c.Statuses[sig]
	}
	return statuses, nil
}

func (c *SolanaClient) GetTokenAccountBalance(_ context.Context, account ed25519.PublicKey, _ solana.Commitment) (uint64, error) {
	c.Lock()
	defer c.Unlock()

	balance, ok := c.TokenBalances[base58.Encode(account)]
	if !ok {
		return 0, solana.ErrAccountNotFound
	}
	return balance, nil
}

func (c *SolanaClient) RequestAirdrop(_ context.Context, account ed25519.PublicKey, lamports uint64, _ solana.Commitment) (solana.Signature, error) {
	c.Lock()
	defer c.Unlock()

	if c.AirdropErr != nil {
		return solana.Signature{}, c.AirdropErr
	}

	key := base58.Encode(account)
	c.AirdropRequests[key] += lamports
	c.Balances[key] += lamports

	var sig solana.Signature
	h := sha256.Sum256(append([]byte("airdrop"), account...))
	copy(sig[:], h[:])
	if c.Land != (solana.Commitment{}) {
		c.Statuses[sig] = newStatus(c.Land, nil)
	}
	return sig, nil
}

func (c *SolanaClient) SubmitTransaction(_ context.Context, txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	c.Lock()
	defer c.Unlock()

	if c.SubmitErr != nil {
		return txn.Signature(), c.SubmitErr
	}

	c.Submitted = append(c.Submitted, txn)
	if c.Land != (solana.Commitment{}) {
		c.Statuses[txn.Signature()] = newStatus(c.Land, nil)
	}
	if c.OnSubmit != nil {
		c.OnSubmit(txn)
	}

	return txn.Signature(), nil
}

func newStatus(commitment solana.Commitment, txErr *solana.TransactionError) *solana.SignatureStatus {
	status := &solana.SignatureStatus{
		Slot:               1,
		ErrorResult:        txErr,
		ConfirmationStatus: commitment.Commitment,
	}

	// Finalized transactions are rooted and carry no confirmation count.
	if commitment != solana.CommitmentFinalized {
		confirmations := 0
		if commitment == solana.CommitmentConfirmed {
			confirmations = 1
		}
		status.Confirmations = &confirmations
	}

	return status
}
