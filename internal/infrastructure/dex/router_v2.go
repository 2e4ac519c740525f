package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/dex-connector/internal/domain/entities"
)

// RouterABI is the subset of IUniswapV2Router02 used for swaps and factory discovery.
const RouterABI = `[
	{"inputs":[],"name":"factory","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"WETH","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[
		{"internalType":"uint256","name":"amountIn","type":"uint256"},
		{"internalType":"uint256","name":"amountOutMin","type":"uint256"},
		{"internalType":"address[]","name":"path","type":"address[]"},
		{"internalType":"address","name":"to","type":"address"},
		{"internalType":"uint256","name":"deadline","type":"uint256"}],
	 "name":"swapExactTokensForTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[
		{"internalType":"uint256","name":"amountOut","type":"uint256"},
		{"internalType":"uint256","name":"amountInMax","type":"uint256"},
		{"internalType":"address[]","name":"path","type":"address[]"},
		{"internalType":"address","name":"to","type":"address"},
		{"internalType":"uint256","name":"deadline","type":"uint256"}],
	 "name":"swapTokensForExactTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[
		{"internalType":"uint256","name":"amountOutMin","type":"uint256"},
		{"internalType":"address[]","name":"path","type":"address[]"},
		{"internalType":"address","name":"to","type":"address"},
		{"internalType":"uint256","name":"deadline","type":"uint256"}],
	 "name":"swapExactETHForTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"payable","type":"function"},
	{"inputs":[
		{"internalType":"uint256","name":"amountOut","type":"uint256"},
		{"internalType":"address[]","name":"path","type":"address[]"},
		{"internalType":"address","name":"to","type":"address"},
		{"internalType":"uint256","name":"deadline","type":"uint256"}],
	 "name":"swapETHForExactTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"payable","type":"function"},
	{"inputs":[
		{"internalType":"uint256","name":"amountIn","type":"uint256"},
		{"internalType":"uint256","name":"amountOutMin","type":"uint256"},
		{"internalType":"address[]","name":"path","type":"address[]"},
		{"internalType":"address","name":"to","type":"address"},
		{"internalType":"uint256","name":"deadline","type":"uint256"}],
	 "name":"swapExactTokensForETH","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[
		{"internalType":"uint256","name":"amountOut","type":"uint256"},
		{"internalType":"uint256","name":"amountInMax","type":"uint256"},
		{"internalType":"address[]","name":"path","type":"address[]"},
		{"internalType":"address","name":"to","type":"address"},
		{"internalType":"uint256","name":"deadline","type":"uint256"}],
	 "name":"swapTokensForExactETH","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"}
]`

// ParseRouterABI parses RouterABI.
func ParseRouterABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(RouterABI))
}

// SwapMethod is one of the router swap entry points.
type SwapMethod int

const (
	SwapExactTokensForTokens SwapMethod = iota
	SwapTokensForExactTokens
	SwapExactETHForTokens
	SwapETHForExactTokens
	SwapExactTokensForETH
	SwapTokensForExactETH
)

var swapMethodNames = [...]string{
	SwapExactTokensForTokens: "swapExactTokensForTokens",
	SwapTokensForExactTokens: "swapTokensForExactTokens",
	SwapExactETHForTokens:    "swapExactETHForTokens",
	SwapETHForExactTokens:    "swapETHForExactTokens",
	SwapExactTokensForETH:    "swapExactTokensForETH",
	SwapTokensForExactETH:    "swapTokensForExactETH",
}

// String returns the router ABI method name.
func (m SwapMethod) String() string {
	if m < 0 || int(m) >= len(swapMethodNames) {
		return fmt.Sprintf("SwapMethod(%d)", int(m))
	}
	return swapMethodNames[m]
}

// Payable reports whether the call carries native currency.
func (m SwapMethod) Payable() bool {
	return m == SwapExactETHForTokens || m == SwapETHForExactTokens
}

var ErrNativeBothSides = errors.New("trade cannot have native currency on both sides")

// TradeOptions control the router call derived from a trade.
type TradeOptions struct {
	TTL             time.Duration
	Recipient       common.Address
	AllowedSlippage entities.Percent
	// Now defaults to time.Now.
	Now func() time.Time
}

// SwapCall is a router invocation ready to be packed.
type SwapCall struct {
	Method SwapMethod
	Args   []interface{}
	Value  *big.Int
}

// Pack encodes the call with the router ABI.
func (c SwapCall) Pack(router abi.ABI) ([]byte, error) {
	data, err := router.Pack(c.Method.String(), c.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", c.Method, err)
	}
	return data, nil
}

// SwapCallParameters derives the router method, its arguments and the attached value for a trade.
func SwapCallParameters(trade *entities.Trade, opts TradeOptions) (SwapCall, error) {
	etherIn := trade.InputAmount.Token.Native
	etherOut := trade.OutputAmount.Token.Native
	if etherIn && etherOut {
		return SwapCall{}, ErrNativeBothSides
	}
	if opts.TTL <= 0 {
		return SwapCall{}, fmt.Errorf("ttl must be positive, got %s", opts.TTL)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	deadline := big.NewInt(now().Add(opts.TTL).Unix())

	to := opts.Recipient
	path := trade.Route.Addresses()
	amountIn := trade.MaximumAmountIn(opts.AllowedSlippage).Raw
	amountOut := trade.MinimumAmountOut(opts.AllowedSlippage).Raw
	zero := big.NewInt(0)

	switch trade.TradeType {
	case entities.ExactInput:
		switch {
		case etherIn:
			return SwapCall{Method: SwapExactETHForTokens, Args: []interface{}{amountOut, path, to, deadline}, Value: amountIn}, nil
		case etherOut:
			return SwapCall{Method: SwapExactTokensForETH, Args: []interface{}{amountIn, amountOut, path, to, deadline}, Value: zero}, nil
		default:
			return SwapCall{Method: SwapExactTokensForTokens, Args: []interface{}{amountIn, amountOut, path, to, deadline}, Value: zero}, nil
		}
	case entities.ExactOutput:
		switch {
		case etherIn:
			return SwapCall{Method: SwapETHForExactTokens, Args: []interface{}{amountOut, path, to, deadline}, Value: amountIn}, nil
		case etherOut:
			return SwapCall{Method: SwapTokensForExactETH, Args: []interface{}{amountOut, amountIn, path, to, deadline}, Value: zero}, nil
		default:
			return SwapCall{Method: SwapTokensForExactTokens, Args: []interface{}{amountOut, amountIn, path, to, deadline}, Value: zero}, nil
		}
	default:
		return SwapCall{}, fmt.Errorf("unknown trade type %s", trade.TradeType)
	}
}

// QueryFactory asks the router for its factory address.
func QueryFactory(ctx context.Context, caller ContractCaller, router abi.ABI, routerAddress common.Address) (common.Address, error) {
	data, err := router.Pack("factory")
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to pack factory: %w", err)
	}

	result, err := caller.CallContract(ctx, ethereum.CallMsg{To: &routerAddress, Data: data})
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to call factory: %w", err)
	}

	values, err := router.Unpack("factory", result)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack factory: %w", err)
	}
	if len(values) != 1 {
		return common.Address{}, fmt.Errorf("factory returned %d values", len(values))
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("factory returned %T", values[0])
	}
	return addr, nil
}
