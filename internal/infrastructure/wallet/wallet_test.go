package wallet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// well-known hardhat account #0
const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestFromHex(t *testing.T) {
	w, err := FromHex(testKey)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), w.Address())

	_, err = FromHex("not-a-key")
	assert.Error(t, err)
}

func TestSignTx(t *testing.T) {
	w, err := FromHex(testKey)
	require.NoError(t, err)
	chainID := big.NewInt(1666600000)
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")

	txs := []*types.Transaction{
		types.NewTx(&types.LegacyTx{Nonce: 1, To: &to, Gas: 21000, GasPrice: big.NewInt(1e9), Value: big.NewInt(1)}),
		types.NewTx(&types.DynamicFeeTx{ChainID: chainID, Nonce: 2, To: &to, Gas: 21000, GasTipCap: big.NewInt(1), GasFeeCap: big.NewInt(2e9)}),
	}

	for _, tx := range txs {
		signed, err := w.SignTx(tx, chainID)
		require.NoError(t, err)

		sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
		require.NoError(t, err)
		assert.Equal(t, w.Address(), sender)
		assert.Equal(t, chainID, signed.ChainId())
	}
}
