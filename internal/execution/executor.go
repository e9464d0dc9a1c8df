/*

This file contains the execution layer: it takes a fully assembled plan,
simulates every call at the head block, then composes the ordered calls into
one multicall transaction to the token's entry point and waits for inclusion.
The plan lands as a whole or not at all. Failures map onto a fixed typed
taxonomy so callers branch on errors.Is, never on message text. User
rejections are surfaced but kept out of the error logs; they are not
actionable.

*/

package execution

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/nereus-fi/levengine/internal/chain"
	"github.com/nereus-fi/levengine/internal/logger"
	"github.com/nereus-fi/levengine/internal/query"
	"github.com/nereus-fi/levengine/internal/types"
)

// Error definitions for the execution taxonomy
var (
	ErrWalletNotConnected  = errors.New("wallet is not connected")
	ErrUserRejected        = errors.New("user rejected the transaction")
	ErrChainSwitchFailed   = errors.New("failed to switch chain")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrRPCFailure          = errors.New("rpc request failed")
	ErrInvalidPlan         = errors.New("plan is invalid")
)

var execLogger = logger.GetForComponent("executor")

// TxRequest is one transaction handed to the signer.
type TxRequest struct {
	ChainID uint64
	From    common.Address
	To      common.Address
	Data    []byte
	Value   sdkmath.Int
}

// Signer is the wallet boundary. Implementations report a missing session as
// ErrWalletNotConnected, a declined prompt as ErrUserRejected, and a failed
// network switch as ErrChainSwitchFailed, so the executor can classify
// without inspecting messages.
type Signer interface {
	Address(ctx context.Context) (common.Address, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	SignTransaction(ctx context.Context, tx TxRequest) ([]byte, error)
}

// Executor runs plans against one chain.
type Executor struct {
	chainID uint64
	reader  chain.Reader
	writer  chain.Writer
	signer  Signer
	store   *query.Store
}

// New creates an executor. The query store is optional; when present,
// successful writes invalidate the affected caches.
func New(chainID uint64, reader chain.Reader, writer chain.Writer, signer Signer, store *query.Store) (*Executor, error) {
	if reader == nil {
		return nil, errors.New("reader cannot be nil")
	}
	if writer == nil {
		return nil, errors.New("writer cannot be nil")
	}
	if signer == nil {
		return nil, errors.New("signer cannot be nil")
	}
	return &Executor{
		chainID: chainID,
		reader:  reader,
		writer:  writer,
		signer:  signer,
		store:   store,
	}, nil
}

// ExecuteMint runs a mint plan and invalidates the token's caches on success.
func (e *Executor) ExecuteMint(ctx context.Context, cfg types.LeverageTokenConfig, plan types.MintPlan) (*types.Receipt, error) {
	if len(plan.Calls) == 0 {
		return nil, errors.Join(ErrInvalidPlan, errors.New("mint plan has no calls"))
	}
	if plan.EquityInCollateral.IsNil() || !plan.EquityInCollateral.IsPositive() {
		return nil, errors.Join(ErrInvalidPlan, errors.New("mint plan has non-positive equity"))
	}
	return e.execute(ctx, cfg, plan.Calls)
}

// ExecuteRedeem runs a redeem plan and invalidates the token's caches on
// success.
func (e *Executor) ExecuteRedeem(ctx context.Context, cfg types.LeverageTokenConfig, plan types.RedeemPlan) (*types.Receipt, error) {
	if len(plan.Calls) == 0 {
		return nil, errors.Join(ErrInvalidPlan, errors.New("redeem plan has no calls"))
	}
	if plan.SharesToRedeem.IsNil() || !plan.SharesToRedeem.IsPositive() {
		return nil, errors.Join(ErrInvalidPlan, errors.New("redeem plan has non-positive shares"))
	}
	return e.execute(ctx, cfg, plan.Calls)
}

// execute simulates every call at the head block, then signs and broadcasts
// the whole plan as one multicall transaction to the token's entry point.
// A revert anywhere, preflight or on chain, leaves no partial state behind.
func (e *Executor) execute(ctx context.Context, cfg types.LeverageTokenConfig, calls []types.Call) (*types.Receipt, error) {
	sender, err := e.signer.Address(ctx)
	if err != nil {
		return nil, classifySignerError(err)
	}

	if err := e.signer.SwitchChain(ctx, e.chainID); err != nil {
		classified := classifySignerError(err)
		if !errors.Is(classified, ErrUserRejected) {
			execLogger.Error().Err(err).Uint64("chainId", e.chainID).Msg("Chain switch failed")
		}
		return nil, classified
	}

	// Preflight each step individually so a doomed plan never reaches the
	// wallet and the failing step is named in the log.
	payloads := make([][]byte, len(calls))
	value := sdkmath.ZeroInt()
	for i, call := range calls {
		if _, err := e.reader.Call(ctx, call.Target, call.Data, 0); err != nil {
			if errors.Is(err, chain.ErrCallReverted) {
				execLogger.Error().
					Err(err).
					Int("callIndex", i).
					Str("target", call.Target.Hex()).
					Msg("Simulation reverted, aborting plan")
				return nil, errors.Join(ErrTransactionReverted, err)
			}
			return nil, errors.Join(ErrRPCFailure, err)
		}
		payloads[i] = call.Data
		if !call.Value.IsNil() {
			value = value.Add(call.Value)
		}
	}

	rawTx, err := e.signer.SignTransaction(ctx, TxRequest{
		ChainID: e.chainID,
		From:    sender,
		To:      cfg.LensAddress,
		Data:    chain.EncodeMulticall(payloads),
		Value:   value,
	})
	if err != nil {
		classified := classifySignerError(err)
		if errors.Is(classified, ErrUserRejected) {
			execLogger.Debug().Msg("User rejected transaction")
		} else {
			execLogger.Error().Err(err).Msg("Signing failed")
		}
		return nil, classified
	}

	hash, err := e.writer.Send(ctx, rawTx)
	if err != nil {
		execLogger.Error().Err(err).Msg("Broadcast failed")
		return nil, errors.Join(ErrRPCFailure, err)
	}

	status, err := e.writer.WaitForReceipt(ctx, hash)
	if err != nil {
		return nil, errors.Join(ErrRPCFailure, err)
	}
	if !status.Success {
		execLogger.Error().
			Str("txHash", hash.Hex()).
			Msg("Transaction reverted on chain")
		return nil, fmt.Errorf("%w: tx %s", ErrTransactionReverted, hash.Hex())
	}

	execLogger.Info().
		Str("txHash", hash.Hex()).
		Int("callCount", len(calls)).
		Uint64("gasUsed", status.GasUsed).
		Str("token", cfg.Address.Hex()).
		Msg("Plan executed in a single transaction")

	e.invalidateAfterWrite(ctx, cfg, sender)

	return &types.Receipt{
		TxHash:  hash,
		Success: true,
		GasUsed: status.GasUsed,
	}, nil
}

// invalidateAfterWrite refreshes every cache a successful mint or redeem can
// change. The user-scoped positions key is invalidated only when a sender is
// known.
func (e *Executor) invalidateAfterWrite(ctx context.Context, cfg types.LeverageTokenConfig, sender common.Address) {
	if e.store == nil {
		return
	}
	keys := []query.Key{
		query.TokenStateKey(e.chainID, cfg.Address),
		query.CollateralKey(e.chainID, cfg.Collateral.Address),
		query.ListingKey(e.chainID),
		query.ProtocolTVLKey(e.chainID),
	}
	if sender != (common.Address{}) {
		keys = append(keys, query.UserPositionsKey(e.chainID, sender))
	}
	e.store.Invalidate(ctx, keys...)
}

// classifySignerError maps wallet boundary failures onto the taxonomy.
// Already-typed errors pass through; anything else is an RPC-class failure.
func classifySignerError(err error) error {
	switch {
	case errors.Is(err, ErrWalletNotConnected),
		errors.Is(err, ErrUserRejected),
		errors.Is(err, ErrChainSwitchFailed):
		return err
	default:
		return errors.Join(ErrRPCFailure, err)
	}
}
