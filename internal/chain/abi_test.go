package chain

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestEncodeAddress(t *testing.T) {
	addr := common.HexToAddress("0x1000000000000000000000000000000000000001")
	word := EncodeAddress(addr)

	require.Len(t, word, 32)
	require.Equal(t, make([]byte, 12), word[:12])
	require.Equal(t, addr.Bytes(), word[12:])
}

func TestEncodeDecodeUint256(t *testing.T) {
	for _, n := range []int64{0, 1, 255, 256, 1_000_000_000_000_000_000} {
		word := EncodeUint256(sdkmath.NewInt(n))
		require.Len(t, word, 32)

		decoded, err := DecodeUint256(word)
		require.NoError(t, err)
		require.Equal(t, sdkmath.NewInt(n), decoded)
	}

	_, err := DecodeUint256([]byte{0x01})
	require.Error(t, err)
}

func TestEncodeUint24(t *testing.T) {
	word := EncodeUint24(3000)
	require.Len(t, word, 32)

	decoded, err := DecodeUint256(word)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(3000), decoded)
}

func TestDecodeWord(t *testing.T) {
	data := append(EncodeUint256(sdkmath.NewInt(11)), EncodeUint256(sdkmath.NewInt(22))...)

	first, err := DecodeWord(data, 0)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(11), first)

	second, err := DecodeWord(data, 1)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(22), second)

	_, err = DecodeWord(data, 2)
	require.Error(t, err)
}

func TestEncodeCall(t *testing.T) {
	data := EncodeCall(SelectorApprove,
		EncodeAddress(common.HexToAddress("0x1000000000000000000000000000000000000001")),
		EncodeUint256(sdkmath.NewInt(500)),
	)

	require.Len(t, data, 4+32+32)
	require.Equal(t, SelectorApprove, data[:4])

	amount, err := DecodeWord(data[4:], 1)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(500), amount)
}

func TestEncodeApprove(t *testing.T) {
	spender := common.HexToAddress("0x2000000000000000000000000000000000000002")
	data := EncodeApprove(spender, sdkmath.NewIntFromBigInt(MaxUint256))

	require.Equal(t, SelectorApprove, data[:4])
	amount, err := DecodeWord(data[4:], 1)
	require.NoError(t, err)
	require.Equal(t, MaxUint256, amount.BigInt())
}

func TestEncodeBytesArray(t *testing.T) {
	// Two elements: a 4-byte payload and a 36-byte payload. Both pad to a
	// 32-byte boundary with a length word in front.
	items := [][]byte{
		{0xaa, 0xbb, 0xcc, 0xdd},
		append(append([]byte{}, SelectorApprove...), EncodeUint256(sdkmath.NewInt(7))...),
	}
	encoded := EncodeBytesArray(items)

	word := func(i int) sdkmath.Int {
		n, err := DecodeWord(encoded, i)
		require.NoError(t, err)
		return n
	}

	// Head: offset to the array, then its length.
	require.Equal(t, sdkmath.NewInt(32), word(0))
	require.Equal(t, sdkmath.NewInt(2), word(1))

	// Element offsets are relative to the element area: the first element
	// starts right after the two offset words, the second after the first
	// element's length word and padded payload.
	require.Equal(t, sdkmath.NewInt(64), word(2))
	require.Equal(t, sdkmath.NewInt(128), word(3))

	// First element: length 4, payload right-padded to 32 bytes.
	require.Equal(t, sdkmath.NewInt(4), word(4))
	require.Equal(t, items[0], encoded[5*32:5*32+4])
	require.Equal(t, make([]byte, 28), encoded[5*32+4:6*32])

	// Second element: length 36, payload padded to 64 bytes.
	require.Equal(t, sdkmath.NewInt(36), word(6))
	require.Equal(t, items[1], encoded[7*32:7*32+36])

	require.Len(t, encoded, 9*32)
}

func TestEncodeMulticall(t *testing.T) {
	payloads := [][]byte{{0x01}, {0x02}}
	data := EncodeMulticall(payloads)

	require.Equal(t, SelectorMulticall, data[:4])
	require.Equal(t, EncodeBytesArray(payloads), data[4:])
}
