package token

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/wallet-tools/pkg/solana"
	"github.com/code-payments/wallet-tools/pkg/solana/system"
)

// AssociatedTokenAccountProgramKey is the address of the associated token
// account program.
//
// Current key: ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL
var AssociatedTokenAccountProgramKey = solana.MustPublicKeyFromString("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

// Reference: https://github.com/solana-labs/solana-program-library/blob/associated-token-account-v1.1.0/associated-token-account/program/src/instruction.rs
const (
	commandCreate           byte = 0
	commandCreateIdempotent byte = 1
)

// GetAssociatedAccount returns the associated account address for an SPL token.
//
// Reference: https://spl.solana.com/associated-token-account#finding-the-associated-token-account-address
func GetAssociatedAccount(wallet, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	return solana.FindProgramAddress(
		AssociatedTokenAccountProgramKey,
		wallet,
		ProgramKey,
		mint,
	)
}

// CreateAssociatedTokenAccountIdempotent returns an instruction that creates
// the associated token account of wallet for mint, paid for by payer. The
// instruction succeeds without effect if the account already exists.
//
//   0. [WRITE, SIGNER] Funding account
//   1. [WRITE] Associated token account address
//   2. [] Wallet address for the new associated token account
//   3. [] The token mint for the new associated token account
//   4. [] System program
//   5. [] SPL Token program
func CreateAssociatedTokenAccountIdempotent(payer, wallet, mint ed25519.PublicKey) (solana.Instruction, ed25519.PublicKey, error) {
	addr, err := GetAssociatedAccount(wallet, mint)
	if err != nil {
		return solana.Instruction{}, nil, err
	}

	return solana.NewInstruction(
		AssociatedTokenAccountProgramKey,
		[]byte{commandCreateIdempotent},
		solana.NewAccountMeta(payer, true),
		solana.NewAccountMeta(addr, false),
		solana.NewReadonlyAccountMeta(wallet, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
		solana.NewReadonlyAccountMeta(ProgramKey, false),
	), addr, nil
}

type DecompiledCreateAssociatedAccount struct {
	Payer   ed25519.PublicKey
	Address ed25519.PublicKey
	Owner   ed25519.PublicKey
	Mint    ed25519.PublicKey
}

// DecompileCreateAssociatedAccount accepts both the create and the
// idempotent create instructions.
func DecompileCreateAssociatedAccount(m solana.Message, index int) (*DecompiledCreateAssociatedAccount, error) {
	i, err := m.ResolveInstruction(index)
	if err != nil {
		return nil, err
	}

	if !i.Program.Equal(AssociatedTokenAccountProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if len(i.Data) > 1 || (len(i.Data) == 1 && i.Data[0] != commandCreate && i.Data[0] != commandCreateIdempotent) {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) < 6 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if !i.Accounts[4].PublicKey.Equal(system.ProgramKey) {
		return nil, errors.New("system program key mismatch")
	}
	if !i.Accounts[5].PublicKey.Equal(ProgramKey) {
		return nil, errors.New("token program key mismatch")
	}

	return &DecompiledCreateAssociatedAccount{
		Payer:   i.Accounts[0].PublicKey,
		Address: i.Accounts[1].PublicKey,
		Owner:   i.Accounts[2].PublicKey,
		Mint:    i.Accounts[3].PublicKey,
	}, nil
}
