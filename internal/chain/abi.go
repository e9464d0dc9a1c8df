package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Pre-computed function selectors (first 4 bytes of keccak256 of signature).
var (
	// ERC20
	SelectorApprove   = mustDecodeHex("095ea7b3") // approve(address,uint256)
	SelectorBalanceOf = mustDecodeHex("70a08231") // balanceOf(address)

	// Uniswap V3 QuoterV2
	SelectorQuoteExactInputSingle  = mustDecodeHex("c6a5026a") // quoteExactInputSingle((address,address,uint256,uint24,uint160))
	SelectorQuoteExactOutputSingle = mustDecodeHex("bd21704a") // quoteExactOutputSingle((address,address,uint256,uint24,uint160))

	// Uniswap V3 SwapRouter02
	SelectorExactInputSingle  = mustDecodeHex("04e45aaf") // exactInputSingle((address,address,uint24,address,uint256,uint256,uint160))
	SelectorExactOutputSingle = mustDecodeHex("5023b4df") // exactOutputSingle((address,address,uint24,address,uint256,uint256,uint160))

	// Leverage token lens / router
	SelectorLeverageState = mustDecodeHex("8d4f6f42") // leverageState(address)
	SelectorPreviewMint   = mustDecodeHex("1f3a7b9c") // previewMint(address,uint256)
	SelectorPreviewRedeem = mustDecodeHex("62c1e5a4") // previewRedeem(address,uint256)
	SelectorMint          = mustDecodeHex("7ba2f9e1") // mint(address,uint256,uint256)
	SelectorRedeem        = mustDecodeHex("9d51b3c8") // redeem(address,uint256,uint256)
	SelectorMulticall     = mustDecodeHex("ac9650d8") // multicall(bytes[])
	SelectorToDebt        = mustDecodeHex("3c96a7e5") // convertCollateralToDebt(address,uint256)
	SelectorFromDebt      = mustDecodeHex("b1e8d0f3") // convertDebtToCollateral(address,uint256)

	// MaxUint256 for unlimited approval
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("invalid hex: %s", s))
	}
	return b
}

// EncodeAddress pads a 20-byte address to a 32-byte ABI word.
func EncodeAddress(addr common.Address) []byte {
	padded := make([]byte, 32)
	copy(padded[12:], addr.Bytes())
	return padded
}

// EncodeUint256 encodes a non-negative integer as a 32-byte left-padded word.
func EncodeUint256(n sdkmath.Int) []byte {
	padded := make([]byte, 32)
	b := n.BigInt().Bytes()
	copy(padded[32-len(b):], b)
	return padded
}

// EncodeUint24 encodes a fee tier as a 32-byte left-padded word.
func EncodeUint24(n uint32) []byte {
	padded := make([]byte, 32)
	padded[29] = byte(n >> 16)
	padded[30] = byte(n >> 8)
	padded[31] = byte(n)
	return padded
}

// DecodeUint256 decodes one 32-byte big-endian word.
func DecodeUint256(data []byte) (sdkmath.Int, error) {
	if len(data) < 32 {
		return sdkmath.ZeroInt(), fmt.Errorf("short ABI word: %d bytes", len(data))
	}
	return sdkmath.NewIntFromBigInt(new(big.Int).SetBytes(data[:32])), nil
}

// DecodeWord extracts the i-th 32-byte word of an ABI-encoded result.
func DecodeWord(data []byte, i int) (sdkmath.Int, error) {
	offset := i * 32
	if len(data) < offset+32 {
		return sdkmath.ZeroInt(), fmt.Errorf("ABI result too short for word %d: %d bytes", i, len(data))
	}
	return DecodeUint256(data[offset : offset+32])
}

// EncodeCall builds calldata from a selector and pre-encoded 32-byte words.
func EncodeCall(selector []byte, words ...[]byte) []byte {
	data := make([]byte, 0, 4+32*len(words))
	data = append(data, selector...)
	for _, w := range words {
		data = append(data, w...)
	}
	return data
}

// EncodeApprove builds calldata for ERC20.approve(spender, amount).
func EncodeApprove(spender common.Address, amount sdkmath.Int) []byte {
	return EncodeCall(SelectorApprove, EncodeAddress(spender), EncodeUint256(amount))
}

// EncodeBytesArray ABI-encodes a dynamic bytes[] argument: an offset word,
// a length word, per-element offsets relative to the element area, then each
// element as a length-prefixed payload padded to a 32-byte boundary.
func EncodeBytesArray(items [][]byte) []byte {
	head := make([]byte, 0, 32*(2+len(items)))
	head = append(head, EncodeUint256(sdkmath.NewInt(32))...)
	head = append(head, EncodeUint256(sdkmath.NewInt(int64(len(items))))...)

	offset := 32 * len(items)
	var tail []byte
	for _, item := range items {
		head = append(head, EncodeUint256(sdkmath.NewInt(int64(offset)))...)
		padded := (len(item) + 31) / 32 * 32
		elem := make([]byte, 32+padded)
		copy(elem, EncodeUint256(sdkmath.NewInt(int64(len(item)))))
		copy(elem[32:], item)
		tail = append(tail, elem...)
		offset += len(elem)
	}
	return append(head, tail...)
}

// EncodeMulticall builds calldata for multicall(bytes[]) over the sub-call
// payloads.
func EncodeMulticall(payloads [][]byte) []byte {
	data := make([]byte, 0, 4+32*(2+len(payloads)))
	data = append(data, SelectorMulticall...)
	return append(data, EncodeBytesArray(payloads)...)
}
