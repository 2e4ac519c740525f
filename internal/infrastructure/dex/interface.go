package dex

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/dex-connector/internal/domain/entities"
)

// ContractCaller executes read-only contract calls against the latest block
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// PairFetcher returns the current state of the single pool holding both tokens.
// Reserves are read fresh on every call.
type PairFetcher interface {
	FetchPairData(ctx context.Context, tokenA, tokenB entities.Token) (*entities.Pair, error)
}

// FactoryResolver returns the factory address paired with a router
type FactoryResolver func(ctx context.Context) (common.Address, error)
