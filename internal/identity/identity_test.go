package identity

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEVMChecksums(t *testing.T) {
	id, kind, err := Parse("  0x52908400098527886e0f7030069857d2e4169ee7 ")
	require.NoError(t, err)
	assert.Equal(t, KindEVM, kind)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", id)
}

func TestParseSolana(t *testing.T) {
	id, kind, err := Parse(DefaultProgramID)
	require.NoError(t, err)
	assert.Equal(t, KindSolana, kind)
	assert.Equal(t, DefaultProgramID, id)
}

func TestParseRejects(t *testing.T) {
	cases := []string{
		"",
		"0x1234",
		"not-base58-0OIl",
		base58.Encode([]byte("short")),
	}
	for _, input := range cases {
		_, _, err := Parse(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestDerivePDAIsOffCurveAndStable(t *testing.T) {
	addr1, bump1, err := DerivePDA([][]byte{[]byte("custody"), []byte("pool-1")}, DefaultProgramID)
	require.NoError(t, err)
	addr2, bump2, err := DerivePDA([][]byte{[]byte("custody"), []byte("pool-1")}, DefaultProgramID)
	require.NoError(t, err)

	assert.Equal(t, addr1, addr2)
	assert.Equal(t, bump1, bump2)

	raw, err := base58.Decode(addr1)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.False(t, isOnCurve(raw))
}

func TestDerivePDAValidatesInput(t *testing.T) {
	_, _, err := DerivePDA(nil, "bad")
	assert.Error(t, err)

	long := make([]byte, 33)
	_, _, err = DerivePDA([][]byte{long}, DefaultProgramID)
	assert.Error(t, err)
}

func TestCustodyAddressDiffersPerPool(t *testing.T) {
	a, err := CustodyAddress(DefaultProgramID, "pool-a")
	require.NoError(t, err)
	b, err := CustodyAddress(DefaultProgramID, "pool-b")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	// Custody accounts must themselves be valid identities.
	_, kind, err := Parse(a)
	require.NoError(t, err)
	assert.Equal(t, KindSolana, kind)
}
