package chain

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	testLensAddr  = common.HexToAddress("0x4000000000000000000000000000000000000004")
	testTokenAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
)

type recordingReader struct {
	result      []byte
	err         error
	lastBlock   uint64
	lastData    []byte
	lastAddress common.Address
}

func (r *recordingReader) Call(ctx context.Context, to common.Address, data []byte, blockNumber uint64) ([]byte, error) {
	r.lastAddress = to
	r.lastData = data
	r.lastBlock = blockNumber
	return r.result, r.err
}

func (r *recordingReader) BlockNumber(ctx context.Context) (uint64, error) { return 1, nil }

func (r *recordingReader) ChainID() uint64 { return 8453 }

func ratioWords(target, min, max int64) []byte {
	scale := sdkmath.NewInt(1_000_000_000_000_000_000)
	var out []byte
	out = append(out, EncodeUint256(scale.Mul(sdkmath.NewInt(target)))...)
	out = append(out, EncodeUint256(scale.Mul(sdkmath.NewInt(min)))...)
	out = append(out, EncodeUint256(scale.Mul(sdkmath.NewInt(max)))...)
	return out
}

func TestLeverageState(t *testing.T) {
	reader := &recordingReader{result: ratioWords(3, 2, 4)}
	lens := NewLens(reader, testLensAddr)

	ratios, err := lens.LeverageState(context.Background(), testTokenAddr, 42)
	require.NoError(t, err)
	require.InDelta(t, 3.0, ratios.TargetFloat(), 1e-12)

	// The read is addressed to the lens and pinned to the given block.
	require.Equal(t, testLensAddr, reader.lastAddress)
	require.Equal(t, uint64(42), reader.lastBlock)
	require.Equal(t, SelectorLeverageState, reader.lastData[:4])
}

func TestLeverageStateRejectsSubUnityTarget(t *testing.T) {
	// A target below 1x cannot be a leverage position; treat it as bad data.
	reader := &recordingReader{result: ratioWords(0, 0, 0)}
	lens := NewLens(reader, testLensAddr)

	_, err := lens.LeverageState(context.Background(), testTokenAddr, 42)
	require.ErrorIs(t, err, ErrLeverageStateUnavailable)
}

func TestLeverageStatePropagatesReadFailure(t *testing.T) {
	readErr := errors.New("endpoint down")
	reader := &recordingReader{err: readErr}
	lens := NewLens(reader, testLensAddr)

	_, err := lens.LeverageState(context.Background(), testTokenAddr, 42)
	require.ErrorIs(t, err, ErrLeverageStateUnavailable)
	require.ErrorIs(t, err, readErr)
}

func TestTargetFloatFractional(t *testing.T) {
	// 2.5x encoded as 25e17.
	ratios := LeverageRatios{Target: sdkmath.NewInt(2_500_000_000_000_000_000)}
	require.InDelta(t, 2.5, ratios.TargetFloat(), 1e-12)
}

func TestPreviewMint(t *testing.T) {
	var result []byte
	result = append(result, EncodeUint256(sdkmath.NewInt(3000))...)
	result = append(result, EncodeUint256(sdkmath.NewInt(5))...)

	reader := &recordingReader{result: result}
	lens := NewLens(reader, testLensAddr)

	preview, err := lens.PreviewMint(context.Background(), testTokenAddr, sdkmath.NewInt(3000), 42)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(3000), preview.Shares)
	require.Equal(t, sdkmath.NewInt(5), preview.ExcessDebt)
	require.Equal(t, SelectorPreviewMint, reader.lastData[:4])
}

func TestPreviewRedeem(t *testing.T) {
	var result []byte
	result = append(result, EncodeUint256(sdkmath.NewInt(1000))...)
	result = append(result, EncodeUint256(sdkmath.NewInt(300))...)
	result = append(result, EncodeUint256(sdkmath.NewInt(7))...)

	reader := &recordingReader{result: result}
	lens := NewLens(reader, testLensAddr)

	preview, err := lens.PreviewRedeem(context.Background(), testTokenAddr, sdkmath.NewInt(500), 42)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(1000), preview.Collateral)
	require.Equal(t, sdkmath.NewInt(300), preview.DebtToRepay)
	require.Equal(t, sdkmath.NewInt(7), preview.ExcessDebt)
}

func TestPreviewTruncatedResult(t *testing.T) {
	reader := &recordingReader{result: EncodeUint256(sdkmath.NewInt(1000))}
	lens := NewLens(reader, testLensAddr)

	_, err := lens.PreviewMint(context.Background(), testTokenAddr, sdkmath.NewInt(1000), 42)
	require.ErrorIs(t, err, ErrPreviewFailed)
}

func TestOracleConversions(t *testing.T) {
	reader := &recordingReader{result: EncodeUint256(sdkmath.NewInt(2000))}
	lens := NewLens(reader, testLensAddr)

	out, err := lens.ConvertCollateralToDebt(context.Background(), testTokenAddr, sdkmath.NewInt(1900), 42)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(2000), out)
	require.Equal(t, SelectorToDebt, reader.lastData[:4])

	out, err = lens.ConvertDebtToCollateral(context.Background(), testTokenAddr, sdkmath.NewInt(2000), 42)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(2000), out)
	require.Equal(t, SelectorFromDebt, reader.lastData[:4])
}
