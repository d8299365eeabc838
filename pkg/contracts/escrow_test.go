package contracts

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscrowABI(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(EscrowABI))
	require.NoError(t, err)

	for _, method := range []string{"lockFunds", "initiateBridge", "verifyBridge", "executeSwap", "releaseFunds", "escrowOf"} {
		_, ok := parsed.Methods[method]
		assert.True(t, ok, "missing method %s", method)
	}
	assert.True(t, parsed.Methods["escrowOf"].IsConstant())

	_, ok := parsed.Events["FundsLocked"]
	assert.True(t, ok)
}

func TestPackLockFunds(t *testing.T) {
	escrow, err := NewEscrow(common.HexToAddress("0x1"), nil)
	require.NoError(t, err)

	var orderHash, hashLock [32]byte
	orderHash[0] = 0xaa
	hashLock[31] = 0xbb

	data, err := escrow.PackLockFunds(orderHash, hashLock, common.HexToAddress("0x2"), big.NewInt(1000), big.NewInt(1700000000))
	require.NoError(t, err)

	// selector plus five static words
	assert.Len(t, data, 4+5*32)
	assert.Equal(t, byte(0xaa), data[4])
	assert.Equal(t, byte(0xbb), data[4+63])
	assert.Equal(t, common.HexToAddress("0x1"), escrow.Address())
}
