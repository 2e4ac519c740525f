package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/dex-connector/internal/domain/entities"
	"github.com/bimakw/dex-connector/internal/infrastructure/dex"
	"github.com/bimakw/dex-connector/internal/infrastructure/nonce"
)

// Signer holds the key of the account a trade is executed for.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// TxBackend submits transactions and reports fee market data.
type TxBackend interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// ExecuteParams carry the per-call transaction settings.
// Setting either fee-per-gas field selects a dynamic-fee transaction and GasPriceGwei is ignored.
type ExecuteParams struct {
	GasPriceGwei         float64
	Router               common.Address
	TTL                  time.Duration
	ABI                  abi.ABI
	GasLimit             uint64
	Nonce                *uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	SlippageOverride     string
}

// TradeExecutor signs and submits router swaps
type TradeExecutor struct {
	backend  TxBackend
	nonces   nonce.Coordinator
	slippage SlippageResolver
	chainID  *big.Int
	logger   *zap.Logger
	now      func() time.Time
}

func NewTradeExecutor(backend TxBackend, nonces nonce.Coordinator, slippage SlippageResolver, chainID *big.Int, logger *zap.Logger) *TradeExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradeExecutor{
		backend:  backend,
		nonces:   nonces,
		slippage: slippage,
		chainID:  chainID,
		logger:   logger.Named("executor"),
		now:      time.Now,
	}
}

// ExecuteTrade submits trade from the signer's account and returns the signed transaction
// without waiting for it to be mined. An acquired nonce is committed only after the node
// accepts the transaction and is released for reuse on any failure.
func (e *TradeExecutor) ExecuteTrade(ctx context.Context, signer Signer, trade *entities.Trade, params ExecuteParams) (*types.Transaction, error) {
	tolerance, err := e.slippage.Resolve(params.SlippageOverride)
	if err != nil {
		return nil, err
	}

	from := signer.Address()
	call, err := dex.SwapCallParameters(trade, dex.TradeOptions{
		TTL:             params.TTL,
		Recipient:       from,
		AllowedSlippage: tolerance,
		Now:             e.now,
	})
	if err != nil {
		return nil, err
	}
	data, err := call.Pack(params.ABI)
	if err != nil {
		return nil, err
	}

	var (
		lease    nonce.Lease
		txNonce  uint64
		consumed bool
	)
	if params.Nonce != nil {
		txNonce = *params.Nonce
	} else {
		lease, err = e.nonces.AcquireNonce(ctx, from)
		if err != nil {
			return nil, err
		}
		txNonce = lease.Nonce()
		defer func() {
			if !consumed {
				lease.Abandon()
			}
		}()
	}

	tx, err := e.buildTx(ctx, params, txNonce, call.Value, data)
	if err != nil {
		return nil, err
	}
	signed, err := signer.SignTx(tx, e.chainID)
	if err != nil {
		return nil, err
	}
	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", call.Method, err)
	}

	consumed = true
	if lease != nil {
		err = lease.Commit(ctx)
	} else {
		err = e.nonces.CommitNonce(ctx, from, txNonce)
	}
	// the transaction is out; the node's pending count still covers it
	if err != nil {
		e.logger.Warn("nonce commit failed", zap.Uint64("nonce", txNonce), zap.Error(err))
	}

	e.logger.Info("swap submitted",
		zap.String("tx", signed.Hash().Hex()),
		zap.Stringer("method", call.Method),
		zap.String("from", from.Hex()),
		zap.Uint64("nonce", txNonce),
	)
	return signed, nil
}

func (e *TradeExecutor) buildTx(ctx context.Context, params ExecuteParams, txNonce uint64, value *big.Int, data []byte) (*types.Transaction, error) {
	router := params.Router

	if params.MaxFeePerGas != nil || params.MaxPriorityFeePerGas != nil {
		tip, feeCap, err := e.dynamicFees(ctx, params.MaxFeePerGas, params.MaxPriorityFeePerGas)
		if err != nil {
			return nil, err
		}
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   e.chainID,
			Nonce:     txNonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       params.GasLimit,
			To:        &router,
			Value:     value,
			Data:      data,
		}), nil
	}

	gasPrice, err := GweiToWei(params.GasPriceGwei)
	if err != nil {
		return nil, err
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    txNonce,
		GasPrice: gasPrice,
		Gas:      params.GasLimit,
		To:       &router,
		Value:    value,
		Data:     data,
	}), nil
}

// dynamicFees fills whichever of the two fee fields the caller left out.
func (e *TradeExecutor) dynamicFees(ctx context.Context, maxFee, maxPriorityFee *big.Int) (*big.Int, *big.Int, error) {
	tip := maxPriorityFee
	if tip == nil {
		suggested, err := e.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to suggest priority fee: %w", err)
		}
		tip = suggested
	}

	feeCap := maxFee
	if feeCap == nil {
		head, err := e.backend.HeaderByNumber(ctx, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get latest header: %w", err)
		}
		if head.BaseFee == nil {
			return nil, nil, errors.New("chain has no base fee; use a gas price instead")
		}
		feeCap = new(big.Int).Mul(head.BaseFee, big.NewInt(2))
		feeCap.Add(feeCap, tip)
	}

	if feeCap.Cmp(tip) < 0 {
		return nil, nil, fmt.Errorf("max fee per gas %s is below priority fee %s", feeCap, tip)
	}
	return new(big.Int).Set(tip), new(big.Int).Set(feeCap), nil
}

// GweiToWei scales a gwei amount by 1e9, rounded to the nearest wei.
func GweiToWei(gwei float64) (*big.Int, error) {
	if gwei < 0 {
		return nil, fmt.Errorf("gas price must not be negative, got %v", gwei)
	}
	return decimal.NewFromFloat(gwei).Shift(9).Round(0).BigInt(), nil
}
