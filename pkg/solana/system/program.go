package system

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/wallet-tools/pkg/solana"
)

// ProgramKey is the address of the system program.
//
// https://explorer.solana.com/address/11111111111111111111111111111111
var ProgramKey = make(ed25519.PublicKey, ed25519.PublicKeySize)

// Instruction tags are little endian u32s.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
const (
	commandCreateAccount uint32 = 0
	commandTransfer      uint32 = 2
)

const (
	createAccountSize = 4 + 8 + 8 + ed25519.PublicKeySize
	transferSize      = 4 + 8
)

// CreateAccount returns an instruction that funds a new account with
// lamports, allocates size bytes for it and assigns it to owner.
//
//   0. [WRITE, SIGNER] Funding account
//   1. [WRITE, SIGNER] New account
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	data := make([]byte, createAccountSize)
	binary.LittleEndian.PutUint32(data, commandCreateAccount)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[12:], size)
	copy(data[20:], owner)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

// Transfer returns an instruction that moves lamports from one system
// account to another.
//
//   0. [WRITE, SIGNER] Funding account
//   1. [WRITE] Recipient account
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	data := make([]byte, transferSize)
	binary.LittleEndian.PutUint32(data, commandTransfer)
	binary.LittleEndian.PutUint64(data[4:], lamports)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecompileCreateAccount(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	i, err := resolve(m, index, commandCreateAccount, 2, createAccountSize)
	if err != nil {
		return nil, err
	}

	return &DecompiledCreateAccount{
		Funder:   i.Accounts[0].PublicKey,
		Address:  i.Accounts[1].PublicKey,
		Lamports: binary.LittleEndian.Uint64(i.Data[4:]),
		Size:     binary.LittleEndian.Uint64(i.Data[12:]),
		Owner:    append(ed25519.PublicKey(nil), i.Data[20:]...),
	}, nil
}

type DecompiledTransfer struct {
	From     ed25519.PublicKey
	To       ed25519.PublicKey
	Lamports uint64
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	i, err := resolve(m, index, commandTransfer, 2, transferSize)
	if err != nil {
		return nil, err
	}

	return &DecompiledTransfer{
		From:     i.Accounts[0].PublicKey,
		To:       i.Accounts[1].PublicKey,
		Lamports: binary.LittleEndian.Uint64(i.Data[4:]),
	}, nil
}

func resolve(m solana.Message, index int, command uint32, accounts, size int) (solana.Instruction, error) {
	i, err := m.ResolveInstruction(index)
	if err != nil {
		return i, err
	}

	if !i.Program.Equal(ProgramKey) {
		return i, solana.ErrIncorrectProgram
	}
	if len(i.Data) < 4 || binary.LittleEndian.Uint32(i.Data) != command {
		return i, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) != accounts {
		return i, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) != size {
		return i, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	return i, nil
}
