package spl

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/wallet-tools/pkg/programs"
	"github.com/code-payments/wallet-tools/pkg/solana"
	"github.com/code-payments/wallet-tools/pkg/solana/system"
	"github.com/code-payments/wallet-tools/pkg/solana/token"
	"github.com/code-payments/wallet-tools/pkg/testutil"
	"github.com/code-payments/wallet-tools/pkg/transfer"
)

func newTestClient(sc *testutil.SolanaClient) *Client {
	submitter := transfer.NewSubmitter(sc, solana.CommitmentConfirmed, time.Second, transfer.WithPollInterval(time.Millisecond))
	return NewClient(sc, submitter)
}

func setMint(sc *testutil.SolanaClient, mint, authority ed25519.PublicKey, decimals uint8) {
	m := token.Mint{
		MintAuthority: authority,
		Decimals:      decimals,
		IsInitialized: true,
	}
	sc.Accounts[base58.Encode(mint)] = solana.AccountInfo{Owner: token.ProgramKey, Data: m.Marshal()}
}

func setTokenAccount(sc *testutil.SolanaClient, address, mint, owner ed25519.PublicKey, amount uint64) {
	a := token.Account{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  token.AccountStateInitialized,
	}
	sc.Accounts[base58.Encode(address)] = solana.AccountInfo{Owner: token.ProgramKey, Data: a.Marshal()}
	sc.TokenBalances[base58.Encode(address)] = amount
}

func TestCreateMint(t *testing.T) {
	sc := testutil.NewSolanaClient()
	c := newTestClient(sc)

	payer := testutil.GenerateSolanaKeypair(t)
	payerKey := payer.Public().(ed25519.PublicKey)

	result, err := c.CreateMint(context.Background(), payer, 6)
	require.NoError(t, err)

	require.Len(t, sc.Submitted, 1)
	txn := sc.Submitted[0]
	assert.Equal(t, result.Signature, txn.Signature())
	assert.True(t, txn.VerifySignatures())
	assert.Len(t, txn.Signatures, 2)
	require.Len(t, txn.Message.Instructions, 2)

	create, err := system.DecompileCreateAccount(txn.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, payerKey, create.Funder)
	assert.Equal(t, result.Mint, create.Address)
	assert.Equal(t, token.ProgramKey, create.Owner)
	assert.EqualValues(t, token.MintSize, create.Size)
	assert.Equal(t, sc.MinimumBalance, create.Lamports)

	initMint, err := token.DecompileInitializeMint2(txn.Message, 1)
	require.NoError(t, err)
	assert.Equal(t, result.Mint, initMint.Mint)
	assert.Equal(t, payerKey, initMint.MintAuthority)
	assert.Equal(t, payerKey, initMint.FreezeAuthority)
	assert.EqualValues(t, 6, initMint.Decimals)
}

func TestGetOrCreateAssociatedAccount(t *testing.T) {
	sc := testutil.NewSolanaClient()
	c := newTestClient(sc)

	payer := testutil.GenerateSolanaKeypair(t)
	keys := testutil.GenerateSolanaKeys(t, 2)
	mint, owner := keys[0], keys[1]

	expected, err := token.GetAssociatedAccount(owner, mint)
	require.NoError(t, err)

	address, err := c.GetOrCreateAssociatedAccount(context.Background(), payer, mint, owner)
	require.NoError(t, err)
	assert.Equal(t, expected, address)

	require.Len(t, sc.Submitted, 1)
	create, err := token.DecompileCreateAssociatedAccount(sc.Submitted[0].Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, payer.Public(), create.Payer)
	assert.Equal(t, expected, create.Address)
	assert.Equal(t, owner, create.Owner)
	assert.Equal(t, mint, create.Mint)

	// Existing accounts are returned without submitting.
	setTokenAccount(sc, expected, mint, owner, 0)

	address, err = c.GetOrCreateAssociatedAccount(context.Background(), payer, mint, owner)
	require.NoError(t, err)
	assert.Equal(t, expected, address)
	assert.Len(t, sc.Submitted, 1)
}

func TestGetOrCreateAssociatedAccount_Invalid(t *testing.T) {
	sc := testutil.NewSolanaClient()
	c := newTestClient(sc)

	payer := testutil.GenerateSolanaKeypair(t)
	keys := testutil.GenerateSolanaKeys(t, 3)
	mint, owner, otherMint := keys[0], keys[1], keys[2]

	address, err := token.GetAssociatedAccount(owner, mint)
	require.NoError(t, err)
	setTokenAccount(sc, address, otherMint, owner, 0)

	_, err = c.GetOrCreateAssociatedAccount(context.Background(), payer, mint, owner)
	assert.True(t, errors.Is(err, token.ErrInvalidTokenAccount))
	assert.Empty(t, sc.Submitted)
}

func TestMintTo(t *testing.T) {
	sc := testutil.NewSolanaClient()
	c := newTestClient(sc)

	authority := testutil.GenerateSolanaKeypair(t)
	keys := testutil.GenerateSolanaKeys(t, 2)
	mint, destination := keys[0], keys[1]

	sig, err := c.MintTo(context.Background(), authority, mint, destination, 1_000_000)
	require.NoError(t, err)

	require.Len(t, sc.Submitted, 1)
	assert.Equal(t, sig, sc.Submitted[0].Signature())

	decompiled, err := token.DecompileMintTo(sc.Submitted[0].Message, 0)
	require.NoError(t, err)
	assert.Equal(t, mint, decompiled.Mint)
	assert.Equal(t, destination, decompiled.Destination)
	assert.EqualValues(t, authority.Public(), decompiled.Authority)
	assert.EqualValues(t, 1_000_000, decompiled.Amount)
}

func TestTransferTokens(t *testing.T) {
	sc := testutil.NewSolanaClient()
	c := newTestClient(sc)

	owner := testutil.GenerateSolanaKeypair(t)
	ownerKey := owner.Public().(ed25519.PublicKey)
	keys := testutil.GenerateSolanaKeys(t, 2)
	mint, to := keys[0], keys[1]

	setMint(sc, mint, ownerKey, 6)

	sig, err := c.TransferTokens(context.Background(), owner, mint, to, 1_000_000)
	require.NoError(t, err)

	require.Len(t, sc.Submitted, 1)
	txn := sc.Submitted[0]
	assert.Equal(t, sig, txn.Signature())
	require.Len(t, txn.Message.Instructions, 2)

	source, err := token.GetAssociatedAccount(ownerKey, mint)
	require.NoError(t, err)
	destination, err := token.GetAssociatedAccount(to, mint)
	require.NoError(t, err)

	create, err := token.DecompileCreateAssociatedAccount(txn.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, destination, create.Address)
	assert.Equal(t, to, create.Owner)

	decompiled, err := token.DecompileTransferChecked(txn.Message, 1)
	require.NoError(t, err)
	assert.Equal(t, source, decompiled.Source)
	assert.Equal(t, destination, decompiled.Destination)
	assert.Equal(t, ownerKey, decompiled.Owner)
	assert.EqualValues(t, 1_000_000, decompiled.Amount)
	require.NotNil(t, decompiled.Decimals)
	assert.EqualValues(t, 6, *decompiled.Decimals)
}

func TestTransferTokens_UnknownMint(t *testing.T) {
	sc := testutil.NewSolanaClient()
	c := newTestClient(sc)

	owner := testutil.GenerateSolanaKeypair(t)
	keys := testutil.GenerateSolanaKeys(t, 2)

	_, err := c.TransferTokens(context.Background(), owner, keys[0], keys[1], 1)
	assert.True(t, errors.Is(err, solana.ErrAccountNotFound))
	assert.Empty(t, sc.Submitted)
}

func TestBalance(t *testing.T) {
	sc := testutil.NewSolanaClient()
	c := newTestClient(sc)

	keys := testutil.GenerateSolanaKeys(t, 2)
	mint, owner := keys[0], keys[1]

	_, err := c.Balance(context.Background(), owner, mint)
	assert.True(t, errors.Is(err, solana.ErrAccountNotFound))

	address, err := token.GetAssociatedAccount(owner, mint)
	require.NoError(t, err)
	setTokenAccount(sc, address, mint, owner, 42)

	balance, err := c.Balance(context.Background(), owner, mint)
	require.NoError(t, err)
	assert.EqualValues(t, 42, balance)
}

func TestTransferTokens_CachesDecimals(t *testing.T) {
	sc := testutil.NewSolanaClient()
	c := newTestClient(sc)

	owner := testutil.GenerateSolanaKeypair(t)
	keys := testutil.GenerateSolanaKeys(t, 2)
	mint, to := keys[0], keys[1]

	setMint(sc, mint, owner.Public().(ed25519.PublicKey), 2)

	_, err := c.TransferTokens(context.Background(), owner, mint, to, 1)
	require.NoError(t, err)

	delete(sc.Accounts, base58.Encode(mint))

	_, err = c.TransferTokens(context.Background(), owner, mint, to, 2)
	require.NoError(t, err)
	require.Len(t, sc.Submitted, 2)

	decompiled, err := token.DecompileTransferChecked(sc.Submitted[1].Message, 1)
	require.NoError(t, err)
	require.NotNil(t, decompiled.Decimals)
	assert.EqualValues(t, 2, *decompiled.Decimals)
}

func TestCreateMetadata(t *testing.T) {
	sc := testutil.NewSolanaClient()
	c := newTestClient(sc)

	authority := testutil.GenerateSolanaKeypair(t)
	authorityKey := authority.Public().(ed25519.PublicKey)
	mint := testutil.GenerateSolanaKeys(t, 1)[0]

	result, err := c.CreateMetadata(context.Background(), authority, mint, Metadata{
		Name:      "OPOS",
		Symbol:    "OPOS",
		URI:       "https://x.io/m.json",
		IsMutable: true,
	})
	require.NoError(t, err)

	metadataProgram := solana.MustPublicKeyFromString(programs.TokenMetadataProgramID)
	expected, err := solana.FindProgramAddress(metadataProgram, []byte("metadata"), metadataProgram, mint)
	require.NoError(t, err)
	assert.Equal(t, expected, result.Metadata)

	address, err := c.MetadataAccount(mint)
	require.NoError(t, err)
	assert.Equal(t, expected, address)

	require.Len(t, sc.Submitted, 1)
	txn := sc.Submitted[0]
	assert.Equal(t, result.Signature, txn.Signature())
	assert.Len(t, txn.Signatures, 1)
	assert.Equal(t, authorityKey, txn.Message.Accounts[0])

	ixn, err := txn.Message.ResolveInstruction(0)
	require.NoError(t, err)
	assert.Equal(t, metadataProgram, ixn.Program)
	assert.Equal(t, expected, ixn.Accounts[0].PublicKey)
	assert.Equal(t, mint, ixn.Accounts[1].PublicKey)

	data := []byte{33, 4, 0, 0, 0, 'O', 'P', 'O', 'S', 4, 0, 0, 0, 'O', 'P', 'O', 'S', 19, 0, 0, 0}
	data = append(data, "https://x.io/m.json"...)
	data = append(data, 0, 0, 0, 0, 0, 1, 0)
	assert.Equal(t, data, ixn.Data)
}

func TestCreateMetadata_MissingProgram(t *testing.T) {
	sc := testutil.NewSolanaClient()
	submitter := transfer.NewSubmitter(sc, solana.CommitmentConfirmed, time.Second)
	c := NewClient(sc, submitter, WithPrograms(&programs.Table{}))

	_, err := c.CreateMetadata(context.Background(), testutil.GenerateSolanaKeypair(t), testutil.GenerateSolanaKeys(t, 1)[0], Metadata{Name: "x"})
	assert.True(t, errors.Is(err, programs.ErrUnknownProgram))
	assert.Empty(t, sc.Submitted)
}
