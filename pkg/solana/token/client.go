package token

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/wallet-tools/pkg/solana"
)

var (
	// ErrInvalidTokenAccount indicates that a Solana account exists at the
	// given address, but it is either not initialized, or not configured correctly.
	ErrInvalidTokenAccount = errors.New("invalid token account")

	// ErrInvalidMint indicates the account at the given address is not an
	// initialized mint.
	ErrInvalidMint = errors.New("invalid mint")
)

// Client reads token program state through a solana.Client.
type Client struct {
	sc solana.Client
}

func NewClient(sc solana.Client) *Client {
	return &Client{sc: sc}
}

// GetAccount returns the token account at the address.
//
// solana.ErrAccountNotFound is returned if nothing exists at the address. If
// the account is not initialized, or belongs to a mint other than the one
// provided, ErrInvalidTokenAccount is returned. A nil mint matches any mint.
func (c *Client) GetAccount(ctx context.Context, address, mint ed25519.PublicKey, commitment solana.Commitment) (*Account, error) {
	info, err := c.sc.GetAccountInfo(ctx, address, commitment)
	if err != nil {
		return nil, err
	}

	if !info.Owner.Equal(ProgramKey) {
		return nil, ErrInvalidTokenAccount
	}

	var account Account
	if !account.Unmarshal(info.Data) || account.State == AccountStateUninitialized {
		return nil, ErrInvalidTokenAccount
	}
	if len(mint) > 0 && !account.Mint.Equal(mint) {
		return nil, ErrInvalidTokenAccount
	}

	return &account, nil
}

// GetMint returns the mint at the address.
func (c *Client) GetMint(ctx context.Context, address ed25519.PublicKey, commitment solana.Commitment) (*Mint, error) {
	info, err := c.sc.GetAccountInfo(ctx, address, commitment)
	if err != nil {
		return nil, err
	}

	if !info.Owner.Equal(ProgramKey) {
		return nil, ErrInvalidMint
	}

	var mint Mint
	if !mint.Unmarshal(info.Data) || !mint.IsInitialized {
		return nil, ErrInvalidMint
	}

	return &mint, nil
}
