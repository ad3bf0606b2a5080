package computebudget

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramKey(t *testing.T) {
	assert.Equal(t, "ComputeBudget111111111111111111111111111111", base58.Encode(ProgramKey))
}

func TestSetComputeUnitLimit(t *testing.T) {
	i := SetComputeUnitLimit(200_000)
	assert.Equal(t, ProgramKey, i.Program)
	assert.Empty(t, i.Accounts)

	limit, err := ParseSetComputeUnitLimitIxnData(i.Data)
	require.NoError(t, err)
	assert.EqualValues(t, 200_000, limit)

	_, err = ParseSetComputeUnitPriceIxnData(i.Data)
	assert.Error(t, err)
}

func TestSetComputeUnitPrice(t *testing.T) {
	i := SetComputeUnitPrice(10_000)
	assert.Equal(t, []byte{3, 0x10, 0x27, 0, 0, 0, 0, 0, 0}, i.Data)

	price, err := ParseSetComputeUnitPriceIxnData(i.Data)
	require.NoError(t, err)
	assert.EqualValues(t, 10_000, price)

	_, err = ParseSetComputeUnitLimitIxnData(i.Data)
	assert.Error(t, err)
}

func TestBudget(t *testing.T) {
	assert.Empty(t, Budget{}.Instructions())
	assert.Len(t, Budget{UnitPrice: 1}.Instructions(), 1)

	instructions := Budget{UnitLimit: 1, UnitPrice: 2}.Instructions()
	require.Len(t, instructions, 2)
	assert.EqualValues(t, commandSetComputeUnitLimit, instructions[0].Data[0])
	assert.EqualValues(t, commandSetComputeUnitPrice, instructions[1].Data[0])
}
