package execution

import (
	"context"
	"math/big"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

// Throwaway key for tests; never funded.
const (
	testPrivateKey  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testKeyAddress  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testSignerChain = uint64(8453)
)

type stubNonceSource struct {
	nonce    uint64
	gasPrice *big.Int
	estimate uint64
}

func (s *stubNonceSource) NonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return s.nonce, nil
}

func (s *stubNonceSource) GasPrice(ctx context.Context) (*big.Int, error) {
	return s.gasPrice, nil
}

func (s *stubNonceSource) EstimateGas(ctx context.Context, from, to common.Address, data []byte, value *big.Int) (uint64, error) {
	return s.estimate, nil
}

func TestNewLocalSigner(t *testing.T) {
	source := &stubNonceSource{gasPrice: big.NewInt(1)}

	signer, err := NewLocalSigner(testPrivateKey, testSignerChain, source)
	require.NoError(t, err)

	addr, err := signer.Address(context.Background())
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress(testKeyAddress), addr)

	// A 0x prefix on the key is accepted.
	prefixed, err := NewLocalSigner("0x"+testPrivateKey, testSignerChain, source)
	require.NoError(t, err)
	prefixedAddr, err := prefixed.Address(context.Background())
	require.NoError(t, err)
	require.Equal(t, addr, prefixedAddr)
}

func TestNewLocalSignerRejectsBadKeys(t *testing.T) {
	source := &stubNonceSource{gasPrice: big.NewInt(1)}

	_, err := NewLocalSigner("", testSignerChain, source)
	require.ErrorIs(t, err, ErrWalletNotConnected)

	_, err = NewLocalSigner("not-hex", testSignerChain, source)
	require.ErrorIs(t, err, ErrWalletNotConnected)

	_, err = NewLocalSigner(testPrivateKey, testSignerChain, nil)
	require.Error(t, err)
}

func TestLocalSignerSwitchChain(t *testing.T) {
	signer, err := NewLocalSigner(testPrivateKey, testSignerChain, &stubNonceSource{gasPrice: big.NewInt(1)})
	require.NoError(t, err)

	require.NoError(t, signer.SwitchChain(context.Background(), testSignerChain))
	require.ErrorIs(t, signer.SwitchChain(context.Background(), 1), ErrChainSwitchFailed)
}

func TestLocalSignerSignTransaction(t *testing.T) {
	source := &stubNonceSource{
		nonce:    7,
		gasPrice: big.NewInt(2_000_000_000),
		estimate: 100_000,
	}
	signer, err := NewLocalSigner(testPrivateKey, testSignerChain, source)
	require.NoError(t, err)

	to := common.HexToAddress("0x4000000000000000000000000000000000000004")
	raw, err := signer.SignTransaction(context.Background(), TxRequest{
		ChainID: testSignerChain,
		From:    common.HexToAddress(testKeyAddress),
		To:      to,
		Data:    []byte{0x01, 0x02},
		Value:   sdkmath.ZeroInt(),
	})
	require.NoError(t, err)

	var decoded gethtypes.Transaction
	require.NoError(t, decoded.UnmarshalBinary(raw))

	require.Equal(t, uint64(7), decoded.Nonce())
	require.Equal(t, &to, decoded.To())
	require.Equal(t, big.NewInt(2_000_000_000), decoded.GasPrice())

	// The node's estimate is padded with 20% headroom.
	require.Equal(t, uint64(120_000), decoded.Gas())

	// The signature recovers to the signing key's address on this chain.
	chainID := new(big.Int).SetUint64(testSignerChain)
	sender, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(chainID), &decoded)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress(testKeyAddress), sender)
}

func TestLocalSignerRejectsForeignChainTx(t *testing.T) {
	signer, err := NewLocalSigner(testPrivateKey, testSignerChain, &stubNonceSource{gasPrice: big.NewInt(1)})
	require.NoError(t, err)

	_, err = signer.SignTransaction(context.Background(), TxRequest{
		ChainID: 1,
		To:      common.HexToAddress("0x4000000000000000000000000000000000000004"),
		Value:   sdkmath.ZeroInt(),
	})
	require.ErrorIs(t, err, ErrChainSwitchFailed)
}
