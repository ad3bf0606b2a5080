package programs

import (
	"crypto/ed25519"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/wallet-tools/pkg/solana"
	"github.com/code-payments/wallet-tools/pkg/solana/system"
	"github.com/code-payments/wallet-tools/pkg/testutil"
)

func TestBuild_Initialize(t *testing.T) {
	user := testutil.GenerateSolanaKeys(t, 1)[0]

	prereq, err := Default().Get(PrereqProgramName)
	require.NoError(t, err)

	instruction, err := prereq.Build(InstructionInitialize, map[string]ed25519.PublicKey{RoleUser: user}, "octocat")
	require.NoError(t, err)

	program := solana.MustPublicKeyFromString(PrereqProgramID)
	enrollment, err := solana.FindProgramAddress(program, []byte("prereqs"), user)
	require.NoError(t, err)

	assert.Equal(t, program, instruction.Program)
	require.Len(t, instruction.Accounts, 3)
	assert.Equal(t, solana.NewAccountMeta(user, true), instruction.Accounts[0])
	assert.Equal(t, solana.NewAccountMeta(enrollment, false), instruction.Accounts[1])
	assert.Equal(t, solana.NewReadonlyAccountMeta(system.ProgramKey, false), instruction.Accounts[2])

	expected := append(AnchorDiscriminator(InstructionInitialize), 7, 0, 0, 0)
	expected = append(expected, "octocat"...)
	assert.Equal(t, expected, instruction.Data)
}

func TestBuild_SubmitRs(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 3)
	user, mint, collection := keys[0], keys[1], keys[2]

	prereq, err := Default().Get(PrereqProgramName)
	require.NoError(t, err)

	instruction, err := prereq.Build(InstructionSubmitRs, map[string]ed25519.PublicKey{
		RoleUser:       user,
		RoleMint:       mint,
		RoleCollection: collection,
	})
	require.NoError(t, err)

	program := solana.MustPublicKeyFromString(PrereqProgramID)
	enrollment, err := solana.FindProgramAddress(program, []byte("prereqs"), user)
	require.NoError(t, err)
	authority, err := solana.FindProgramAddress(program, []byte("collection"), collection)
	require.NoError(t, err)

	// The instruction carries no arguments, so the data is exactly the
	// discriminator.
	assert.Equal(t, []byte{77, 124, 82, 163, 21, 133, 181, 206}, instruction.Data)

	assert.Equal(t, []solana.AccountMeta{
		solana.NewAccountMeta(user, true),
		solana.NewAccountMeta(enrollment, false),
		solana.NewAccountMeta(mint, true),
		solana.NewAccountMeta(collection, false),
		solana.NewReadonlyAccountMeta(authority, false),
		solana.NewReadonlyAccountMeta(solana.MustPublicKeyFromString(MplCoreProgramID), false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	}, instruction.Accounts)

	tx := solana.NewTransaction(user, solana.Blockhash{}, instruction)
	assert.EqualValues(t, 2, tx.Message.Header.NumSignatures)
	assert.Equal(t, user, tx.Message.Signers()[0])
}

func TestBuild_OverrideDerivedAccount(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)

	prereq, err := Default().Get(PrereqProgramName)
	require.NoError(t, err)

	resolved, err := prereq.ResolveAccounts(InstructionInitialize, map[string]ed25519.PublicKey{
		RoleUser:    keys[0],
		RoleAccount: keys[1],
	})
	require.NoError(t, err)
	assert.Equal(t, keys[1], resolved[RoleAccount])
}

func TestBuild_Errors(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)

	prereq, err := Default().Get(PrereqProgramName)
	require.NoError(t, err)

	_, err = prereq.Build(InstructionInitialize, nil, "octocat")
	assert.True(t, errors.Is(err, ErrMissingAccount))

	_, err = prereq.Build(InstructionSubmitRs, map[string]ed25519.PublicKey{RoleUser: keys[0], RoleMint: keys[1]})
	assert.True(t, errors.Is(err, ErrMissingAccount))

	_, err = prereq.Build(InstructionInitialize, map[string]ed25519.PublicKey{RoleUser: keys[0]})
	assert.True(t, errors.Is(err, ErrArgumentCount))

	_, err = prereq.Build(InstructionInitialize, map[string]ed25519.PublicKey{RoleUser: keys[0]}, 42)
	assert.True(t, errors.Is(err, ErrArgumentType))

	_, err = prereq.Build(InstructionSubmitRs, map[string]ed25519.PublicKey{RoleUser: keys[0][:5]})
	assert.Error(t, err)

	_, err = prereq.Build("unknown", nil)
	assert.True(t, errors.Is(err, ErrUnknownInstruction))
}

func TestBuild_SystemTransfer(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)

	sys, err := Default().Get(SystemProgramName)
	require.NoError(t, err)

	instruction, err := sys.Build("transfer", map[string]ed25519.PublicKey{"from": keys[0], "to": keys[1]}, uint64(100_000_000))
	require.NoError(t, err)

	assert.Equal(t, system.Transfer(keys[0], keys[1], 100_000_000), instruction)
}

func TestEncodeArgs_AllTypes(t *testing.T) {
	key := testutil.GenerateSolanaKeys(t, 1)[0]

	def := InstructionDef{
		Name:          "everything",
		Discriminator: []byte{9},
		Args: []ArgDef{
			{Name: "s", Type: ArgString},
			{Name: "b", Type: ArgBytes},
			{Name: "k", Type: ArgPubkey},
			{Name: "k58", Type: ArgPubkey},
			{Name: "f", Type: ArgBool},
			{Name: "a", Type: ArgU8},
			{Name: "c", Type: ArgU16},
			{Name: "d", Type: ArgU32},
			{Name: "e", Type: ArgU64},
		},
	}

	data, err := def.encodeArgs([]interface{}{
		"a", []byte{1}, key, base58.Encode(key), true, uint8(2), uint16(3), uint32(4), uint64(5),
	})
	require.NoError(t, err)

	expected := []byte{9, 1, 0, 0, 0, 'a', 1, 0, 0, 0, 1}
	expected = append(expected, key...)
	expected = append(expected, key...)
	expected = append(expected, 1, 2, 3, 0, 4, 0, 0, 0, 5, 0, 0, 0, 0, 0, 0, 0)
	assert.Equal(t, expected, data)
}

func TestBuild_CreateMetadataV3(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)
	mint, authority := keys[0], keys[1]

	metadata, err := Default().Get(TokenMetadataProgramName)
	require.NoError(t, err)

	instruction, err := metadata.Build(
		InstructionCreateMetadataV3,
		map[string]ed25519.PublicKey{
			RoleMint:            mint,
			RoleMintAuthority:   authority,
			RolePayer:           authority,
			RoleUpdateAuthority: authority,
		},
		"OPOS", "OPOS", "https://x.io/m.json", uint16(500), nil, nil, nil, true, nil,
	)
	require.NoError(t, err)

	program := solana.MustPublicKeyFromString(TokenMetadataProgramID)
	expectedPDA, _, err := solanago.FindProgramAddress(
		[][]byte{[]byte("metadata"), program, mint},
		solanago.PublicKeyFromBytes(program),
	)
	require.NoError(t, err)

	assert.Equal(t, program, instruction.Program)
	assert.Equal(t, []solana.AccountMeta{
		solana.NewAccountMeta(expectedPDA.Bytes(), false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, true),
		solana.NewAccountMeta(authority, true),
		solana.NewReadonlyAccountMeta(authority, true),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
		solana.NewReadonlyAccountMeta(solana.MustPublicKeyFromString(SysvarRentID), false),
	}, instruction.Accounts)

	expected := []byte{
		33,
		4, 0, 0, 0, 'O', 'P', 'O', 'S',
		4, 0, 0, 0, 'O', 'P', 'O', 'S',
		19, 0, 0, 0,
	}
	expected = append(expected, "https://x.io/m.json"...)
	expected = append(expected,
		0xf4, 0x01, // seller_fee_basis_points
		0, // creators
		0, // collection
		0, // uses
		1, // is_mutable
		0, // collection_details
	)
	assert.Equal(t, expected, instruction.Data)

	pda, err := metadata.ResolveAccount(InstructionCreateMetadataV3, RoleMetadata, map[string]ed25519.PublicKey{RoleMint: mint})
	require.NoError(t, err)
	assert.EqualValues(t, expectedPDA.Bytes(), pda)
}

func TestResolveAccount(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)

	prereq, err := Default().Get(PrereqProgramName)
	require.NoError(t, err)

	// Only the collection is needed for the authority.
	authority, err := prereq.ResolveAccount(InstructionSubmitRs, RoleAuthority, map[string]ed25519.PublicKey{RoleCollection: keys[0]})
	require.NoError(t, err)
	expected, err := solana.FindProgramAddress(solana.MustPublicKeyFromString(PrereqProgramID), []byte("collection"), keys[0])
	require.NoError(t, err)
	assert.Equal(t, expected, authority)

	_, err = prereq.ResolveAccount(InstructionSubmitRs, RoleAccount, map[string]ed25519.PublicKey{RoleCollection: keys[0]})
	assert.True(t, errors.Is(err, ErrMissingAccount))

	_, err = prereq.ResolveAccount(InstructionSubmitRs, "vault", map[string]ed25519.PublicKey{RoleUser: keys[1]})
	assert.True(t, errors.Is(err, ErrMissingAccount))
}

func TestEncodeArgs_Optional(t *testing.T) {
	def := InstructionDef{
		Name:          "optional",
		Discriminator: []byte{1},
		Args: []ArgDef{
			{Name: "none", Type: Option(ArgU16)},
			{Name: "some", Type: Option(ArgU16)},
			{Name: "raw", Type: Option(ArgRaw)},
		},
	}

	data, err := def.encodeArgs([]interface{}{nil, uint16(7), []byte{1, 0xaa}})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 1, 7, 0, 1, 1, 0xaa}, data)

	_, err = def.encodeArgs([]interface{}{nil, 7, nil})
	assert.True(t, errors.Is(err, ErrArgumentType))
}
