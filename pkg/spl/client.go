// Package spl implements token flows against the SPL token program: mint
// creation, associated accounts, minting and transfers, plus Metaplex token
// metadata.
package spl

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/wallet-tools/pkg/cache"
	"github.com/code-payments/wallet-tools/pkg/metrics"
	"github.com/code-payments/wallet-tools/pkg/programs"
	"github.com/code-payments/wallet-tools/pkg/solana"
	"github.com/code-payments/wallet-tools/pkg/solana/system"
	"github.com/code-payments/wallet-tools/pkg/solana/token"
	"github.com/code-payments/wallet-tools/pkg/transfer"
)

const (
	metricsStructName = "spl.client"

	mintCacheBudget = 1024
)

type Option func(*Client)

// WithPrograms sets the table the token metadata program interface is taken
// from. The default is programs.Default.
func WithPrograms(table *programs.Table) Option {
	return func(c *Client) {
		c.programs = table
	}
}

type Client struct {
	log       *logrus.Entry
	sc        solana.Client
	tokens    *token.Client
	submitter *transfer.Submitter
	programs  *programs.Table

	// Mint decimals keyed by base58 mint address.
	decimals cache.Cache
}

func NewClient(sc solana.Client, submitter *transfer.Submitter, opts ...Option) *Client {
	c := &Client{
		log:       logrus.StandardLogger().WithField("type", "spl/client"),
		sc:        sc,
		tokens:    token.NewClient(sc),
		submitter: submitter,
		programs:  programs.Default(),
		decimals:  cache.New(mintCacheBudget),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type CreateMintResult struct {
	Mint      ed25519.PublicKey
	Signature solana.Signature
}

// CreateMint creates a new mint at a fresh address with payer as its mint
// and freeze authority.
func (c *Client) CreateMint(ctx context.Context, payer ed25519.PrivateKey, decimals uint8) (*CreateMintResult, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "CreateMint")
	defer tracer.End()

	result, err := c.createMint(ctx, payer, decimals)
	tracer.OnError(err)
	return result, err
}

func (c *Client) createMint(ctx context.Context, payer ed25519.PrivateKey, decimals uint8) (*CreateMintResult, error) {
	payerKey := payer.Public().(ed25519.PublicKey)

	_, mint, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate mint keypair")
	}
	mintKey := mint.Public().(ed25519.PublicKey)

	rent, err := c.sc.GetMinimumBalanceForRentExemption(ctx, token.MintSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rent exemption")
	}

	sig, err := c.submitter.Send(
		ctx,
		payer,
		[]ed25519.PrivateKey{mint},
		system.CreateAccount(payerKey, mintKey, token.ProgramKey, rent, token.MintSize),
		token.InitializeMint2(mintKey, payerKey, payerKey, decimals),
	)
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"method":    "CreateMint",
		"mint":      base58.Encode(mintKey),
		"decimals":  decimals,
		"signature": sig.String(),
	}).Info("mint created")

	return &CreateMintResult{Mint: mintKey, Signature: sig}, nil
}

// GetOrCreateAssociatedAccount returns the associated token account of owner
// for mint, creating it at payer's expense if it does not exist.
func (c *Client) GetOrCreateAssociatedAccount(ctx context.Context, payer ed25519.PrivateKey, mint, owner ed25519.PublicKey) (ed25519.PublicKey, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetOrCreateAssociatedAccount")
	defer tracer.End()

	address, err := c.getOrCreateAssociatedAccount(ctx, payer, mint, owner)
	tracer.OnError(err)
	return address, err
}

func (c *Client) getOrCreateAssociatedAccount(ctx context.Context, payer ed25519.PrivateKey, mint, owner ed25519.PublicKey) (ed25519.PublicKey, error) {
	ixn, address, err := token.CreateAssociatedTokenAccountIdempotent(payer.Public().(ed25519.PublicKey), owner, mint)
	if err != nil {
		return nil, err
	}

	_, err = c.tokens.GetAccount(ctx, address, mint, c.submitter.Commitment())
	if err == nil {
		return address, nil
	} else if !errors.Is(err, solana.ErrAccountNotFound) {
		return nil, errors.Wrap(err, "failed to get associated account")
	}

	sig, err := c.submitter.Send(ctx, payer, nil, ixn)
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"method":    "GetOrCreateAssociatedAccount",
		"owner":     base58.Encode(owner),
		"mint":      base58.Encode(mint),
		"address":   base58.Encode(address),
		"signature": sig.String(),
	}).Info("associated account created")

	return address, nil
}

// MintTo mints amount base units of mint into the destination token account.
// authority must be the mint authority and pays the fee.
func (c *Client) MintTo(ctx context.Context, authority ed25519.PrivateKey, mint, destination ed25519.PublicKey, amount uint64) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "MintTo")
	defer tracer.End()

	authorityKey := authority.Public().(ed25519.PublicKey)

	sig, err := c.submitter.Send(ctx, authority, nil, token.MintTo(mint, destination, authorityKey, amount))
	if err != nil {
		tracer.OnError(err)
		return sig, err
	}

	c.log.WithFields(logrus.Fields{
		"method":      "MintTo",
		"mint":        base58.Encode(mint),
		"destination": base58.Encode(destination),
		"amount":      amount,
		"signature":   sig.String(),
	}).Info("tokens minted")

	return sig, nil
}

// TransferTokens moves amount base units of mint from owner's associated
// account to the associated account of to, creating the latter if needed.
func (c *Client) TransferTokens(ctx context.Context, owner ed25519.PrivateKey, mint, to ed25519.PublicKey, amount uint64) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "TransferTokens")
	defer tracer.End()

	sig, err := c.transferTokens(ctx, owner, mint, to, amount)
	tracer.OnError(err)
	return sig, err
}

func (c *Client) transferTokens(ctx context.Context, owner ed25519.PrivateKey, mint, to ed25519.PublicKey, amount uint64) (solana.Signature, error) {
	ownerKey := owner.Public().(ed25519.PublicKey)

	decimals, err := c.mintDecimals(ctx, mint)
	if err != nil {
		return solana.Signature{}, err
	}

	source, err := token.GetAssociatedAccount(ownerKey, mint)
	if err != nil {
		return solana.Signature{}, err
	}

	createIxn, destination, err := token.CreateAssociatedTokenAccountIdempotent(ownerKey, to, mint)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := c.submitter.Send(
		ctx,
		owner,
		nil,
		createIxn,
		token.TransferChecked(source, mint, destination, ownerKey, amount, decimals),
	)
	if err != nil {
		return sig, err
	}

	c.log.WithFields(logrus.Fields{
		"method":      "TransferTokens",
		"mint":        base58.Encode(mint),
		"source":      base58.Encode(source),
		"destination": base58.Encode(destination),
		"amount":      amount,
		"signature":   sig.String(),
	}).Info("tokens transferred")

	return sig, nil
}

func (c *Client) mintDecimals(ctx context.Context, mint ed25519.PublicKey) (uint8, error) {
	key := base58.Encode(mint)
	if cached, ok := c.decimals.Retrieve(key); ok {
		return cached.(uint8), nil
	}

	state, err := c.tokens.GetMint(ctx, mint, c.submitter.Commitment())
	if err != nil {
		return 0, errors.Wrap(err, "failed to get mint")
	}

	// A concurrent lookup may have inserted the same value.
	_ = c.decimals.Insert(key, state.Decimals, 1)
	return state.Decimals, nil
}

// Balance returns the balance of owner's associated account for mint.
func (c *Client) Balance(ctx context.Context, owner, mint ed25519.PublicKey) (uint64, error) {
	address, err := token.GetAssociatedAccount(owner, mint)
	if err != nil {
		return 0, err
	}
	return c.sc.GetTokenAccountBalance(ctx, address, c.submitter.Commitment())
}

// Metadata is the DataV2 of a token metadata account. Creators, collection
// and uses are left unset.
type Metadata struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	IsMutable            bool
}

type CreateMetadataResult struct {
	Metadata  ed25519.PublicKey
	Signature solana.Signature
}

// MetadataAccount returns the metadata address of mint.
func (c *Client) MetadataAccount(mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	program, err := c.programs.Get(programs.TokenMetadataProgramName)
	if err != nil {
		return nil, err
	}
	return program.ResolveAccount(programs.InstructionCreateMetadataV3, programs.RoleMetadata, map[string]ed25519.PublicKey{
		programs.RoleMint: mint,
	})
}

// CreateMetadata creates the metadata account of mint. authority must be the
// mint authority; it pays for the account and becomes the update authority.
func (c *Client) CreateMetadata(ctx context.Context, authority ed25519.PrivateKey, mint ed25519.PublicKey, md Metadata) (*CreateMetadataResult, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "CreateMetadata")
	defer tracer.End()

	result, err := c.createMetadata(ctx, authority, mint, md)
	tracer.OnError(err)
	return result, err
}

func (c *Client) createMetadata(ctx context.Context, authority ed25519.PrivateKey, mint ed25519.PublicKey, md Metadata) (*CreateMetadataResult, error) {
	authorityKey := authority.Public().(ed25519.PublicKey)

	program, err := c.programs.Get(programs.TokenMetadataProgramName)
	if err != nil {
		return nil, err
	}

	accounts := map[string]ed25519.PublicKey{
		programs.RoleMint:            mint,
		programs.RoleMintAuthority:   authorityKey,
		programs.RolePayer:           authorityKey,
		programs.RoleUpdateAuthority: authorityKey,
	}
	metadata, err := program.ResolveAccount(programs.InstructionCreateMetadataV3, programs.RoleMetadata, accounts)
	if err != nil {
		return nil, err
	}

	ixn, err := program.Build(
		programs.InstructionCreateMetadataV3,
		accounts,
		md.Name,
		md.Symbol,
		md.URI,
		md.SellerFeeBasisPoints,
		nil, // creators
		nil, // collection
		nil, // uses
		md.IsMutable,
		nil, // collection_details
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build create metadata instruction")
	}

	sig, err := c.submitter.Send(ctx, authority, nil, ixn)
	if err != nil {
		return &CreateMetadataResult{Metadata: metadata, Signature: sig}, err
	}

	c.log.WithFields(logrus.Fields{
		"method":    "CreateMetadata",
		"mint":      base58.Encode(mint),
		"metadata":  base58.Encode(metadata),
		"name":      md.Name,
		"signature": sig.String(),
	}).Info("metadata created")

	return &CreateMetadataResult{Metadata: metadata, Signature: sig}, nil
}
