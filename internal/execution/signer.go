package execution

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nereus-fi/levengine/internal/logger"
)

var signerLogger = logger.GetForComponent("signer")

// NonceSource provides the transaction-building reads the signer needs.
// chain.Client implements it.
type NonceSource interface {
	NonceAt(ctx context.Context, account common.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, from, to common.Address, data []byte, value *big.Int) (uint64, error)
}

// gasLimitHeadroomPct pads the node's estimate; multicall plans touch cold
// storage slots the estimate can miss.
const gasLimitHeadroomPct = 20

// LocalSigner signs transactions with an in-process private key. It is bound
// to one chain at construction; SwitchChain to any other chain fails.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID uint64
	source  NonceSource
}

// NewLocalSigner creates a signer from a hex-encoded private key.
func NewLocalSigner(hexKey string, chainID uint64, source NonceSource) (*LocalSigner, error) {
	if hexKey == "" {
		return nil, errors.Join(ErrWalletNotConnected, errors.New("private key is empty"))
	}
	if source == nil {
		return nil, errors.New("nonce source cannot be nil")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.Join(ErrWalletNotConnected, fmt.Errorf("invalid private key: %w", err))
	}

	address := crypto.PubkeyToAddress(key.PublicKey)
	signerLogger.Info().
		Str("address", address.Hex()).
		Uint64("chainId", chainID).
		Msg("Local signer initialized")

	return &LocalSigner{
		key:     key,
		address: address,
		chainID: chainID,
		source:  source,
	}, nil
}

// Address returns the signing account.
func (s *LocalSigner) Address(ctx context.Context) (common.Address, error) {
	if s.key == nil {
		return common.Address{}, ErrWalletNotConnected
	}
	return s.address, nil
}

// SwitchChain succeeds only for the chain the signer was bound to. A local
// key has no session to migrate.
func (s *LocalSigner) SwitchChain(ctx context.Context, chainID uint64) error {
	if chainID != s.chainID {
		return fmt.Errorf("%w: signer is bound to chain %d, requested %d", ErrChainSwitchFailed, s.chainID, chainID)
	}
	return nil
}

// SignTransaction builds, prices and signs a transaction, returning the raw
// payload ready for eth_sendRawTransaction.
func (s *LocalSigner) SignTransaction(ctx context.Context, tx TxRequest) ([]byte, error) {
	if s.key == nil {
		return nil, ErrWalletNotConnected
	}
	if tx.ChainID != s.chainID {
		return nil, fmt.Errorf("%w: transaction targets chain %d", ErrChainSwitchFailed, tx.ChainID)
	}

	var value *big.Int
	if !tx.Value.IsNil() {
		value = tx.Value.BigInt()
	} else {
		value = new(big.Int)
	}

	nonce, err := s.source.NonceAt(ctx, s.address)
	if err != nil {
		return nil, errors.Join(ErrRPCFailure, fmt.Errorf("fetch nonce: %w", err))
	}
	gasPrice, err := s.source.GasPrice(ctx)
	if err != nil {
		return nil, errors.Join(ErrRPCFailure, fmt.Errorf("fetch gas price: %w", err))
	}
	gasLimit, err := s.source.EstimateGas(ctx, s.address, tx.To, tx.Data, value)
	if err != nil {
		return nil, errors.Join(ErrRPCFailure, fmt.Errorf("estimate gas: %w", err))
	}
	gasLimit += gasLimit * gasLimitHeadroomPct / 100

	unsigned := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &tx.To,
		Value:    value,
		Data:     tx.Data,
	})

	chainID := new(big.Int).SetUint64(s.chainID)
	signed, err := gethtypes.SignTx(unsigned, gethtypes.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	return raw, nil
}
