package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/dex-connector/internal/domain/entities"
	"github.com/bimakw/dex-connector/internal/domain/services"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// ConnectorSource hands out shared connectors; every Get is paired with a Release.
type ConnectorSource interface {
	Get(ctx context.Context, chain, network string) (*services.Connector, error)
	Release(chain, network string)
}

// SignerFunc returns the account trades are executed from.
type SignerFunc func() (services.Signer, error)

// ConnectorHandler serves price, trade and token requests for one (chain, network) per call.
type ConnectorHandler struct {
	connectors ConnectorSource
	signer     SignerFunc
	logger     *zap.Logger
}

func NewConnectorHandler(connectors ConnectorSource, signer SignerFunc, logger *zap.Logger) *ConnectorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectorHandler{
		connectors: connectors,
		signer:     signer,
		logger:     logger.Named("handlers"),
	}
}

// Routes registers the handler below /{chain}/{network}.
func (h *ConnectorHandler) Routes(r chi.Router) {
	r.Route("/{chain}/{network}", func(r chi.Router) {
		r.Post("/price", h.Price)
		r.Post("/trade", h.Trade)
		r.Get("/tokens", h.Tokens)
	})
}

// PriceRequest is the body of POST /price. Base and Quote are symbols or addresses;
// Amount is in whole base-token units, e.g. "1.5".
type PriceRequest struct {
	Base            string `json:"base"`
	Quote           string `json:"quote"`
	Amount          string `json:"amount"`
	Side            string `json:"side"`
	AllowedSlippage string `json:"allowedSlippage,omitempty"`
}

// TradeRequest is the body of POST /trade. Setting either fee-per-gas field (in wei)
// sends a dynamic-fee transaction; otherwise GasPrice (in gwei) is used.
type TradeRequest struct {
	PriceRequest
	GasPrice             float64 `json:"gasPrice,omitempty"`
	MaxFeePerGas         string  `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string  `json:"maxPriorityFeePerGas,omitempty"`
	Nonce                *uint64 `json:"nonce,omitempty"`
	// LimitPrice rejects a BUY priced above it or a SELL priced below it.
	LimitPrice string `json:"limitPrice,omitempty"`
}

// PriceResponse describes a planned trade. Price is quote per base.
type PriceResponse struct {
	Chain           string   `json:"chain"`
	Network         string   `json:"network"`
	Connector       string   `json:"connector"`
	Side            string   `json:"side"`
	Base            string   `json:"base"`
	Quote           string   `json:"quote"`
	Amount          string   `json:"amount"`
	RawAmount       string   `json:"rawAmount"`
	ExpectedAmount  string   `json:"expectedAmount"`
	Price           string   `json:"price"`
	PriceImpact     string   `json:"priceImpact"`
	AllowedSlippage string   `json:"allowedSlippage"`
	Route           []string `json:"route"`
	GasLimit        uint64   `json:"gasLimit"`
	Timestamp       string   `json:"timestamp"`
}

type TradeResponse struct {
	PriceResponse
	TxHash    string `json:"txHash"`
	Nonce     uint64 `json:"nonce"`
	From      string `json:"from"`
	GasPrice  string `json:"gasPrice,omitempty"`
	GasFeeCap string `json:"gasFeeCap,omitempty"`
	GasTipCap string `json:"gasTipCap,omitempty"`
}

type TokenResponse struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
	Native   bool   `json:"native,omitempty"`
}

type TokensResponse struct {
	Chain   string          `json:"chain"`
	Network string          `json:"network"`
	Tokens  []TokenResponse `json:"tokens"`
}

// requestError is a problem with the request itself, reported as 400.
type requestError struct {
	code    string
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(code, format string, args ...interface{}) error {
	return &requestError{code: code, message: fmt.Sprintf(format, args...)}
}

func (h *ConnectorHandler) withConnector(w http.ResponseWriter, r *http.Request, fn func(*services.Connector)) {
	chain, network := chi.URLParam(r, "chain"), chi.URLParam(r, "network")
	c, err := h.connectors.Get(r.Context(), chain, network)
	if err != nil {
		h.logger.Warn("connector unavailable", zap.String("chain", chain), zap.String("network", network), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	defer h.connectors.Release(chain, network)
	fn(c)
}

// Price handles POST /api/v1/{chain}/{network}/price
func (h *ConnectorHandler) Price(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	h.withConnector(w, r, func(c *services.Connector) {
		expected, o, err := h.estimate(r.Context(), c, req)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.priceResponse(c, o, expected))
	})
}

// Trade handles POST /api/v1/{chain}/{network}/trade
func (h *ConnectorHandler) Trade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	params, err := executeParams(req)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	var limit *decimal.Decimal
	if req.LimitPrice != "" {
		d, err := decimal.NewFromString(req.LimitPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit_price", err.Error())
			return
		}
		limit = &d
	}

	if h.signer == nil {
		writeError(w, http.StatusServiceUnavailable, "wallet_unavailable", "no signer configured")
		return
	}
	signer, err := h.signer()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "wallet_unavailable", err.Error())
		return
	}

	h.withConnector(w, r, func(c *services.Connector) {
		expected, o, err := h.estimate(r.Context(), c, req.PriceRequest)
		if err != nil {
			h.writeErr(w, err)
			return
		}
		resp := h.priceResponse(c, o, expected)

		if limit != nil {
			price := o.price(expected.Trade)
			if (o.side == SideBuy && price.GreaterThan(*limit)) || (o.side == SideSell && price.LessThan(*limit)) {
				writeError(w, http.StatusBadRequest, "price_limit",
					fmt.Sprintf("%s price %s is beyond limit %s", strings.ToLower(o.side), price, limit))
				return
			}
		}

		tx, err := c.ExecuteTrade(r.Context(), signer, expected.Trade, params)
		if err != nil {
			h.writeErr(w, err)
			return
		}

		out := TradeResponse{
			PriceResponse: resp,
			TxHash:        tx.Hash().Hex(),
			Nonce:         tx.Nonce(),
			From:          signer.Address().Hex(),
		}
		if params.MaxFeePerGas != nil || params.MaxPriorityFeePerGas != nil {
			out.GasFeeCap = tx.GasFeeCap().String()
			out.GasTipCap = tx.GasTipCap().String()
		} else {
			out.GasPrice = tx.GasPrice().String()
		}
		writeJSON(w, http.StatusOK, out)
	})
}

// Tokens handles GET /api/v1/{chain}/{network}/tokens
func (h *ConnectorHandler) Tokens(w http.ResponseWriter, r *http.Request) {
	h.withConnector(w, r, func(c *services.Connector) {
		tokens := c.Tokens()
		resp := TokensResponse{
			Chain:   c.Chain(),
			Network: c.Network(),
			Tokens:  make([]TokenResponse, 0, len(tokens)+1),
		}
		if native, ok := c.NativeToken(); ok {
			resp.Tokens = append(resp.Tokens, tokenResponse(native))
		}
		for _, t := range tokens {
			resp.Tokens = append(resp.Tokens, tokenResponse(t))
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

// order is a validated price request.
type order struct {
	side      string
	base      entities.Token
	quote     entities.Token
	amount    decimal.Decimal
	rawAmount *big.Int
	slippage  string
	tolerance entities.Percent
}

// price returns the trade's execution price as quote per base.
func (o order) price(trade *entities.Trade) decimal.Decimal {
	if o.side == SideBuy {
		return trade.ExecutionPrice.Invert().Decimal()
	}
	return trade.ExecutionPrice.Decimal()
}

func (h *ConnectorHandler) estimate(ctx context.Context, c *services.Connector, req PriceRequest) (*services.ExpectedTrade, order, error) {
	o, err := parseOrder(c, req)
	if err != nil {
		return nil, order{}, err
	}

	var expected *services.ExpectedTrade
	if o.side == SideBuy {
		expected, err = c.EstimateBuyTrade(ctx, o.quote, o.base, o.rawAmount, o.slippage)
	} else {
		expected, err = c.EstimateSellTrade(ctx, o.base, o.quote, o.rawAmount, o.slippage)
	}
	if err != nil {
		return nil, order{}, err
	}
	return expected, o, nil
}

func parseOrder(c *services.Connector, req PriceRequest) (order, error) {
	side := strings.ToUpper(strings.TrimSpace(req.Side))
	if side != SideBuy && side != SideSell {
		return order{}, badRequest("invalid_side", "side must be BUY or SELL, got %q", req.Side)
	}

	base, err := resolveToken(c, req.Base)
	if err != nil {
		return order{}, err
	}
	quote, err := resolveToken(c, req.Quote)
	if err != nil {
		return order{}, err
	}
	if base.Equals(quote) {
		return order{}, badRequest("invalid_pair", "base and quote must differ")
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return order{}, badRequest("invalid_amount", "amount %q is not a number", req.Amount)
	}
	raw := amount.Shift(int32(base.Decimals))
	if !raw.IsInteger() || raw.Sign() <= 0 {
		return order{}, badRequest("invalid_amount", "amount must be positive with at most %d decimals", base.Decimals)
	}

	tolerance, err := c.GetAllowedSlippage(req.AllowedSlippage)
	if err != nil {
		return order{}, err
	}

	return order{
		side:      side,
		base:      base,
		quote:     quote,
		amount:    amount,
		rawAmount: raw.BigInt(),
		slippage:  req.AllowedSlippage,
		tolerance: tolerance,
	}, nil
}

func resolveToken(c *services.Connector, ref string) (entities.Token, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return entities.Token{}, badRequest("missing_token", "base and quote are required")
	}
	if common.IsHexAddress(ref) {
		if t, ok := c.GetTokenByAddress(common.HexToAddress(ref)); ok {
			return t, nil
		}
	} else if t, ok := c.GetTokenBySymbol(ref); ok {
		return t, nil
	}
	return entities.Token{}, badRequest("unknown_token", "token %q is not in the %s/%s token list", ref, c.Chain(), c.Network())
}

func executeParams(req TradeRequest) (services.ExecuteParams, error) {
	params := services.ExecuteParams{
		GasPriceGwei:     req.GasPrice,
		Nonce:            req.Nonce,
		SlippageOverride: req.AllowedSlippage,
	}
	var err error
	if params.MaxFeePerGas, err = parseWei("maxFeePerGas", req.MaxFeePerGas); err != nil {
		return params, err
	}
	if params.MaxPriorityFeePerGas, err = parseWei("maxPriorityFeePerGas", req.MaxPriorityFeePerGas); err != nil {
		return params, err
	}
	if params.MaxFeePerGas == nil && params.MaxPriorityFeePerGas == nil && req.GasPrice <= 0 {
		return params, badRequest("missing_gas_price", "gasPrice or maxFeePerGas/maxPriorityFeePerGas is required")
	}
	return params, nil
}

func parseWei(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, badRequest("invalid_fee", "%s must be a non-negative integer in wei", field)
	}
	return v, nil
}

func (h *ConnectorHandler) priceResponse(c *services.Connector, o order, expected *services.ExpectedTrade) PriceResponse {
	trade := expected.Trade

	route := make([]string, 0, len(trade.Route.Pairs))
	for _, p := range trade.Route.Pairs {
		route = append(route, p.Address.Hex())
	}

	return PriceResponse{
		Chain:           c.Chain(),
		Network:         c.Network(),
		Connector:       c.Name(),
		Side:            o.side,
		Base:            o.base.Symbol,
		Quote:           o.quote.Symbol,
		Amount:          o.amount.String(),
		RawAmount:       o.rawAmount.String(),
		ExpectedAmount:  expected.ExpectedAmount.Decimal().String(),
		Price:           o.price(trade).String(),
		PriceImpact:     percentString(trade.PriceImpact),
		AllowedSlippage: percentString(o.tolerance),
		Route:           route,
		GasLimit:        c.GasLimit(),
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
}

// percentString renders p as a percentage with up to 4 decimals, e.g. "0.5".
func percentString(p entities.Percent) string {
	if p.Num == nil || p.Den == nil || p.Den.Sign() == 0 {
		return "0"
	}
	num := decimal.NewFromBigInt(p.Num, 2)
	return num.DivRound(decimal.NewFromBigInt(p.Den, 0), 4).String()
}

func tokenResponse(t entities.Token) TokenResponse {
	return TokenResponse{
		Address:  t.Address.Hex(),
		Symbol:   t.Symbol,
		Name:     t.Name,
		Decimals: t.Decimals,
		Native:   t.Native,
	}
}

func (h *ConnectorHandler) writeErr(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeError(w, http.StatusBadRequest, reqErr.code, reqErr.message)
		return
	}
	writeServiceError(w, err)
}
