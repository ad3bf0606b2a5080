package system

import (
	"crypto/ed25519"
	"encoding/binary"
	"strings"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	solanasystem "github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/wallet-tools/pkg/solana"
)

func TestCreateAccount(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := CreateAccount(keys[0], keys[1], keys[2], 12345, 67890)

	lamports := make([]byte, 8)
	binary.LittleEndian.PutUint64(lamports, 12345)
	size := make([]byte, 8)
	binary.LittleEndian.PutUint64(size, 67890)

	assert.Equal(t, make([]byte, 4), instruction.Data[0:4])
	assert.Equal(t, lamports, instruction.Data[4:12])
	assert.Equal(t, size, instruction.Data[12:20])
	assert.Equal(t, []byte(keys[2]), instruction.Data[20:52])

	var tx solana.Transaction
	require.NoError(t, tx.Unmarshal(solana.NewTransaction(keys[0], solana.Blockhash{}, instruction).Marshal()))

	decompiled, err := DecompileCreateAccount(tx.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Funder)
	assert.Equal(t, keys[1], decompiled.Address)
	assert.Equal(t, keys[2], decompiled.Owner)
	assert.EqualValues(t, 12345, decompiled.Lamports)
	assert.EqualValues(t, 67890, decompiled.Size)
}

func TestTransfer(t *testing.T) {
	keys := generateKeys(t, 2)

	instruction := Transfer(keys[0], keys[1], 1_999_995_000)
	assert.Equal(t, ProgramKey, instruction.Program)
	assert.Equal(t, []byte{2, 0, 0, 0}, instruction.Data[:4])
	assert.EqualValues(t, 1_999_995_000, binary.LittleEndian.Uint64(instruction.Data[4:]))

	expected, err := solanasystem.NewTransferInstruction(
		1_999_995_000,
		solanago.PublicKeyFromBytes(keys[0]),
		solanago.PublicKeyFromBytes(keys[1]),
	).Build().Data()
	require.NoError(t, err)
	assert.Equal(t, expected, instruction.Data)

	tx := solana.NewTransaction(keys[0], solana.Blockhash{}, instruction)
	assert.Equal(t, solana.Header{NumSignatures: 1, NumReadOnly: 1}, tx.Message.Header)

	decompiled, err := DecompileTransfer(tx.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.From)
	assert.Equal(t, keys[1], decompiled.To)
	assert.EqualValues(t, 1_999_995_000, decompiled.Lamports)

	_, err = DecompileCreateAccount(tx.Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)
}

func TestDecompile_Invalid(t *testing.T) {
	keys := generateKeys(t, 4)

	instruction := CreateAccount(keys[0], keys[1], keys[2], 12345, 67890)

	instruction.Accounts = instruction.Accounts[:1]
	_, err := DecompileCreateAccount(solana.NewTransaction(keys[0], solana.Blockhash{}, instruction).Message, 0)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid number of accounts"), err)

	instruction = Transfer(keys[0], keys[1], 10)
	instruction.Data = append(instruction.Data, 0)
	_, err = DecompileTransfer(solana.NewTransaction(keys[0], solana.Blockhash{}, instruction).Message, 0)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid instruction data size"), err)

	instruction.Data = make([]byte, 3)
	_, err = DecompileTransfer(solana.NewTransaction(keys[0], solana.Blockhash{}, instruction).Message, 0)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	instruction.Program = keys[3]
	_, err = DecompileTransfer(solana.NewTransaction(keys[0], solana.Blockhash{}, instruction).Message, 0)
	assert.Equal(t, solana.ErrIncorrectProgram, err)

	_, err = DecompileTransfer(solana.NewTransaction(keys[0], solana.Blockhash{}, instruction).Message, 1)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "instruction doesn't exist"))
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)
	for i := range keys {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}
	return keys
}
