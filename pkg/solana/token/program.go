package token

import (
	"crypto/ed25519"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/code-payments/wallet-tools/pkg/solana"
)

// ProgramKey is the address of the SPL token program.
//
// Current key: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
var ProgramKey = solana.MustPublicKeyFromString("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

type Command byte

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs
const (
	CommandInitializeMint    Command = 0
	CommandInitializeAccount Command = 1
	CommandTransfer          Command = 3
	CommandMintTo            Command = 7
	CommandCloseAccount      Command = 9
	CommandTransferChecked   Command = 12
	CommandInitializeMint2   Command = 20

	CommandUnknown = Command(math.MaxUint8)
)

const (
	ErrorNotRentExempt solana.CustomError = iota
	ErrorInsufficientFunds
	ErrorInvalidMint
	ErrorMintMismatch
	ErrorOwnerMismatch
	ErrorFixedSupply
	ErrorAlreadyInUse
	ErrorInvalidNumberOfProvidedSigners
	ErrorInvalidNumberOfRequiredSigners
	ErrorUninitializedState
	ErrorNativeNotSupported
	ErrorNonNativeHasBalance
	ErrorInvalidInstruction
	ErrorInvalidState
	ErrorOverflow
	ErrorAuthorityTypeNotSupported
	ErrorMintCannotFreeze
	ErrorAccountFrozen
	ErrorMintDecimalsMismatch
)

const (
	amountSize        = 1 + 8
	amountCheckedSize = 1 + 8 + 1

	// The freeze authority is a one byte tagged option in instruction data.
	initializeMintSize       = 1 + 1 + ed25519.PublicKeySize + 1
	initializeMintFreezeSize = initializeMintSize + ed25519.PublicKeySize
)

func GetCommand(m solana.Message, index int) (Command, error) {
	i, err := m.ResolveInstruction(index)
	if err != nil {
		return CommandUnknown, err
	}

	if !i.Program.Equal(ProgramKey) {
		return CommandUnknown, solana.ErrIncorrectProgram
	}
	if len(i.Data) == 0 {
		return CommandUnknown, errors.New("token instruction missing data")
	}

	return Command(i.Data[0]), nil
}

// InitializeMint2 returns an instruction that initializes a mint account
// which was already allocated and assigned to the token program. Unlike
// InitializeMint it does not require the rent sysvar.
//
//   0. [WRITE] The mint to initialize.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L385-L398
func InitializeMint2(mint, mintAuthority, freezeAuthority ed25519.PublicKey, decimals uint8) solana.Instruction {
	size := initializeMintSize
	if len(freezeAuthority) > 0 {
		size = initializeMintFreezeSize
	}

	data := make([]byte, size)
	data[0] = byte(CommandInitializeMint2)
	data[1] = decimals
	copy(data[2:], mintAuthority)
	if len(freezeAuthority) > 0 {
		data[2+ed25519.PublicKeySize] = 1
		copy(data[3+ed25519.PublicKeySize:], freezeAuthority)
	}

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

type DecompiledInitializeMint struct {
	Mint            ed25519.PublicKey
	MintAuthority   ed25519.PublicKey
	FreezeAuthority ed25519.PublicKey
	Decimals        uint8
}

func DecompileInitializeMint2(m solana.Message, index int) (*DecompiledInitializeMint, error) {
	i, err := resolve(m, index, CommandInitializeMint2, 1)
	if err != nil {
		return nil, err
	}
	if len(i.Data) != initializeMintSize && len(i.Data) != initializeMintFreezeSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	decompiled := &DecompiledInitializeMint{
		Mint:          i.Accounts[0].PublicKey,
		Decimals:      i.Data[1],
		MintAuthority: append(ed25519.PublicKey(nil), i.Data[2:2+ed25519.PublicKeySize]...),
	}
	if i.Data[2+ed25519.PublicKeySize] == 1 {
		if len(i.Data) != initializeMintFreezeSize {
			return nil, errors.New("freeze authority flagged but missing")
		}
		decompiled.FreezeAuthority = append(ed25519.PublicKey(nil), i.Data[3+ed25519.PublicKeySize:]...)
	}

	return decompiled, nil
}

// MintTo returns an instruction that mints new tokens into an account.
//
//   0. [WRITE] The mint.
//   1. [WRITE] The account to mint tokens to.
//   2. [SIGNER] The mint's minting authority.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L175-L190
func MintTo(mint, destination, authority ed25519.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		amountData(CommandMintTo, amount),
		solana.NewAccountMeta(mint, false),
		solana.NewAccountMeta(destination, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

type DecompiledMintTo struct {
	Mint        ed25519.PublicKey
	Destination ed25519.PublicKey
	Authority   ed25519.PublicKey
	Amount      uint64
}

func DecompileMintTo(m solana.Message, index int) (*DecompiledMintTo, error) {
	i, err := resolve(m, index, CommandMintTo, 3)
	if err != nil {
		return nil, err
	}
	if len(i.Data) != amountSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	return &DecompiledMintTo{
		Mint:        i.Accounts[0].PublicKey,
		Destination: i.Accounts[1].PublicKey,
		Authority:   i.Accounts[2].PublicKey,
		Amount:      binary.LittleEndian.Uint64(i.Data[1:]),
	}, nil
}

// Transfer returns an instruction that moves tokens between two accounts
// of the same mint.
//
//   0. [WRITE] The source account.
//   1. [WRITE] The destination account.
//   2. [SIGNER] The source account's owner/delegate.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L76-L91
func Transfer(source, dest, owner ed25519.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		amountData(CommandTransfer, amount),
		solana.NewAccountMeta(source, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type DecompiledTransfer struct {
	Source      ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
	Amount      uint64
	Decimals    *uint8
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	i, err := resolve(m, index, CommandTransfer, 3)
	if err != nil {
		return nil, err
	}
	if len(i.Data) != amountSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	return &DecompiledTransfer{
		Source:      i.Accounts[0].PublicKey,
		Destination: i.Accounts[1].PublicKey,
		Owner:       i.Accounts[2].PublicKey,
		Amount:      binary.LittleEndian.Uint64(i.Data[1:]),
	}, nil
}

// TransferChecked is Transfer with the mint and its decimals asserted by the
// token program.
//
//   0. [WRITE] The source account.
//   1. [] The token mint.
//   2. [WRITE] The destination account.
//   3. [SIGNER] The source account's owner/delegate.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L238-L259
func TransferChecked(source, mint, dest, owner ed25519.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	data := make([]byte, amountCheckedSize)
	data[0] = byte(CommandTransferChecked)
	binary.LittleEndian.PutUint64(data[1:], amount)
	data[9] = decimals

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(source, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

func DecompileTransferChecked(m solana.Message, index int) (*DecompiledTransfer, error) {
	i, err := resolve(m, index, CommandTransferChecked, 4)
	if err != nil {
		return nil, err
	}
	if len(i.Data) != amountCheckedSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	decimals := i.Data[9]
	return &DecompiledTransfer{
		Source:      i.Accounts[0].PublicKey,
		Destination: i.Accounts[2].PublicKey,
		Owner:       i.Accounts[3].PublicKey,
		Amount:      binary.LittleEndian.Uint64(i.Data[1:]),
		Decimals:    &decimals,
	}, nil
}

func amountData(cmd Command, amount uint64) []byte {
	data := make([]byte, amountSize)
	data[0] = byte(cmd)
	binary.LittleEndian.PutUint64(data[1:], amount)
	return data
}

func resolve(m solana.Message, index int, cmd Command, accounts int) (solana.Instruction, error) {
	i, err := m.ResolveInstruction(index)
	if err != nil {
		return i, err
	}

	if !i.Program.Equal(ProgramKey) {
		return i, solana.ErrIncorrectProgram
	}
	if len(i.Data) == 0 || Command(i.Data[0]) != cmd {
		return i, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) != accounts {
		return i, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	return i, nil
}
