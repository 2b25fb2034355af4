package domain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/chainkit/internal/apperror"
)

func TestParseArg(t *testing.T) {
	tests := []struct {
		typ  string
		in   string
		want any
	}{
		{"address", "0x6B175474E89094C44Da98b954EedeAC495271d0F", common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")},
		{"bool", "true", true},
		{"string", "hello", "hello"},
		{"bytes", "0x0102", []byte{1, 2}},
		{"bytes4", "0xa9059cbb", [4]byte{0xa9, 0x05, 0x9c, 0xbb}},
		{"uint8", "255", uint8(255)},
		{"uint64", "0x10", uint64(16)},
		{"int32", "-5", int32(-5)},
		{"int8", "-128", int8(-128)},
		{"uint256", "1000000000000000000000", func() *big.Int { v, _ := new(big.Int).SetString("1000000000000000000000", 10); return v }()},
		{"int", "-1", big.NewInt(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			got, err := ParseArg(tt.typ, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArg_Errors(t *testing.T) {
	for _, c := range [][2]string{
		{"address", "0x123"},
		{"bool", "maybe"},
		{"uint8", "256"},
		{"uint256", "-1"},
		{"int8", "128"},
		{"bytes2", "0x010203"},
		{"bytes33", "0x01"},
		{"uint7", "1"},
		{"tuple", "x"},
		{"uint256[]", "1"},
	} {
		_, err := ParseArg(c[0], c[1])
		assert.Error(t, err, c[0])
	}
}

func TestParseArgs(t *testing.T) {
	params := []Param{{Name: "to", Type: "address"}, {Name: "amount", Type: "uint256"}}

	args, err := ParseArgs(params, []string{"0x6B175474E89094C44Da98b954EedeAC495271d0F", "42"})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), args[1])

	_, err = ParseArgs(params, []string{"0x6B175474E89094C44Da98b954EedeAC495271d0F"})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))

	_, err = ParseArgs(params, []string{"nope", "42"})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}
