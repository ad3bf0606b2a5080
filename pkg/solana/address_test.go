package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"hash"
	"testing"

	"filippo.io/edwards25519"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProgramAddress(t *testing.T) {
	exceededSeed := make([]byte, maxSeedLength+1)
	maxSeed := make([]byte, maxSeedLength)

	// The typo here was taken directly from the Solana test case,
	// which was used to derive the expected outputs.
	publicKey, err := base58.Decode("SeedPubey1111111111111111111111111111111111")
	require.NoError(t, err)
	programID, err := base58.Decode("BPFLoader1111111111111111111111111111111111")
	require.NoError(t, err)

	_, err = CreateProgramAddress(programID, exceededSeed)
	assert.Equal(t, ErrMaxSeedLengthExceeded, err)
	_, err = CreateProgramAddress(programID, []byte("short seed"), exceededSeed)
	assert.Equal(t, ErrMaxSeedLengthExceeded, err)

	_, err = CreateProgramAddress(programID, maxSeed)
	assert.NoError(t, err)

	tooMany := make([][]byte, maxSeeds+1)
	_, err = CreateProgramAddress(programID, tooMany...)
	assert.Equal(t, ErrTooManySeeds, err)

	for _, tc := range []struct {
		expected string
		input    [][]byte
	}{
		{"3gF2KMe9KiC6FNVBmfg9i267aMPvK37FewCip4eGBFcT", [][]byte{{}, {1}}},
		{"7ytmC1nT1xY4RfxCV2ZgyA7UakC93do5ZdyhdF3EtPj7", [][]byte{[]byte("☉")}},
		{"HwRVBufQ4haG5XSgpspwKtNd3PC9GM9m1196uJW36vds", [][]byte{[]byte("Talking"), []byte("Squirrels")}},
		{"GUs5qLUfsEHkcMB9T38vjr18ypEhRuNWiePW2LoK4E3K", [][]byte{publicKey}},
	} {
		key, err := CreateProgramAddress(programID, tc.input...)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, base58.Encode(key))
	}

	a, err := CreateProgramAddress(programID, []byte("Talking"))
	require.NoError(t, err)
	b, err := CreateProgramAddress(programID, []byte("Talking"), []byte("Squirrels"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

type fixedHash struct {
	sum []byte
}

func (h *fixedHash) Write(p []byte) (int, error) { return len(p), nil }
func (h *fixedHash) Sum(_ []byte) []byte         { return h.sum }
func (h *fixedHash) Reset()                      {}
func (h *fixedHash) Size() int                   { return sha256.Size }
func (h *fixedHash) BlockSize() int              { return sha256.BlockSize }

func withFixedProgramHash(t *testing.T, sum []byte) {
	programHashCtor = func() hash.Hash {
		return &fixedHash{sum: sum}
	}
	t.Cleanup(func() {
		programHashCtor = sha256.New
	})
}

func TestCreateProgramAddress_OnCurve(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	withFixedProgramHash(t, pub)

	programID, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, err = CreateProgramAddress(programID, []byte("Lil'"), []byte("Bits"))
	assert.Equal(t, ErrInvalidPublicKey, err)
}

func TestFindProgramAddress_Exhausted(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	withFixedProgramHash(t, pub)

	programID, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	addr, bump, err := FindProgramAddressAndBump(programID, []byte("prereqs"))
	assert.ErrorIs(t, err, ErrAddressDerivationExhausted)
	assert.Nil(t, addr)
	assert.EqualValues(t, 0, bump)
}

func TestFindProgramAddress_TooManySeeds(t *testing.T) {
	programID, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, _, err = FindProgramAddressAndBump(programID, make([][]byte, maxSeeds)...)
	assert.Equal(t, ErrTooManySeeds, err)
}

func TestFindProgramAddress_Deterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		programID, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		user, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		first, firstBump, err := FindProgramAddressAndBump(programID, []byte("prereqs"), user)
		require.NoError(t, err)
		second, secondBump, err := FindProgramAddressAndBump(programID, []byte("prereqs"), user)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, firstBump, secondBump)

		// The bump must reproduce the address through the single shot path.
		direct, err := CreateProgramAddress(programID, []byte("prereqs"), user, []byte{firstBump})
		require.NoError(t, err)
		assert.Equal(t, first, direct)
	}
}

func TestFindProgramAddress_OffCurve(t *testing.T) {
	for i := 0; i < 250; i++ {
		programID, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		addr, err := FindProgramAddress(programID, []byte("collection"), programID)
		require.NoError(t, err)

		assert.False(t, IsOnCurve(addr))

		// Independent decoder agreement.
		_, err = new(edwards25519.Point).SetBytes(addr)
		assert.Error(t, err)
	}
}

func TestIsOnCurve_KeypairAddresses(t *testing.T) {
	for i := 0; i < 100; i++ {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		assert.True(t, IsOnCurve(pub))
	}

	assert.False(t, IsOnCurve(make([]byte, 31)))
}

func TestFindProgramAddress_MatchesSolanaGo(t *testing.T) {
	program := MustPublicKeyFromString("TRBZyQHB3m68FGeVsqTK39Wm4xejadjVhP5MAZaKWDM")
	collection := MustPublicKeyFromString("5ebsp5RChCGK7ssRZMVMufgVZhd2kFbNaotcZ5UvytN2")

	for i := 0; i < 25; i++ {
		user, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)

		for _, seeds := range [][][]byte{
			{[]byte("prereqs"), user},
			{[]byte("collection"), collection},
		} {
			addr, bump, err := FindProgramAddressAndBump(program, seeds...)
			require.NoError(t, err)

			expected, expectedBump, err := solanago.FindProgramAddress(seeds, solanago.PublicKeyFromBytes(program))
			require.NoError(t, err)

			assert.Equal(t, expected.Bytes(), []byte(addr))
			assert.Equal(t, expectedBump, bump)
		}
	}
}

func TestFindProgramAddress_Ref(t *testing.T) {
	references := []struct {
		programID string
		expected  string
	}{
		{"4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM", "Bn9pAWUXWc5Kd849xTkQcHqiCbHUEizLFn4r5Cf8XYnd"},
		{"8opHzTAnfzRpPEx21XtnrVTX28YQuCpAjcn1PczScKh", "oDvUHiiGdMo31xYzjefAzUekWH8EbCKrxgs2FkyTs1S"},
		{"CiDwVBFgWV9E5MvXWoLgnEgn2hK7rJikbvfWavzAQz3", "B2vBn2bmF9GuaGkebrm8oUqDC34pE6m4bagjNcVE6msv"},
		{"GcdayuLaLyrdmUu324nahyv33G5poQdLUEZ1nEytDeP", "2mN5Nfq9v1EwTV9FPTHPESZ3XiZce9wi5PQoULFuxvev"},
		{"LX3EUdRUBUa3TbsYXLEUdj9J3prXkWXvLYSWyYyc2Jj", "9CqF6oTZtW5zSeoLnZRoQmj3s2tXGPqifM1W8Z8LVE1z"},
		{"QRSsyMWN1yHT9ir42bgNZUNZ4PdEhcSWCrL2AryKpy5", "FwBDYafabYZLDC8FwaDCsLxWkKnaQxKuQv3afDAGiXJ8"},
		{"UKrXU5bFrTzrqqpZXs8GVDbp4xPweiM65ADXNAy3ddR", "2Y1miPDc3BkHVdNFeFTtRkiw8nbptrBqboJkbqxk5SFt"},
		{"YEGAxog9gxiGXxo538aAQxq55XAebpFfwU72ZUxmSHm", "5jeaj2d8T2hjU63h2chjtSnuUmjti6qZK7oi6jwTspoo"},
		{"c8fpTXm3XTRgE5maYQ24Li4L65wMYvAFomzXknxVEx7", "6brHYNpseuh39WW3Md5WxTyw12kqumR4tTyZqzkyPWZP"},
		{"g35TxFqwMx95vCk63fTxGTHb6ei4W24qg5t2x6xD3cT", "ESVKwnyn9DEkNcR5ZnHFbMK66nCArc9dChFCULstzLy5"},
	}

	for _, r := range references {
		programID, err := base58.Decode(r.programID)
		require.NoError(t, err)

		actual, err := FindProgramAddress(programID, []byte("Lil'"), []byte("Bits"))
		require.NoError(t, err)
		assert.Equal(t, r.expected, base58.Encode(actual))
	}
}

func TestPublicKeyFromString(t *testing.T) {
	pub, err := PublicKeyFromString("11111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 32), []byte(pub))

	_, err = PublicKeyFromString("not-base58-0OIl")
	assert.Error(t, err)

	_, err = PublicKeyFromString("1111")
	assert.Error(t, err)
}
