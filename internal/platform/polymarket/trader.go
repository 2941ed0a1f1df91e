package polymarket

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/mselser95/polybridge/internal/estimator"
	"github.com/mselser95/polybridge/internal/execution"
	"github.com/mselser95/polybridge/pkg/types"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PolygonChainID is the chain the CTF exchange settles on.
const PolygonChainID = 137

const zeroAddress = "0x0000000000000000000000000000000000000000"

// TraderConfig holds configuration for the TRADING phase executor.
type TraderConfig struct {
	Client        *Client
	PrivateKey    *ecdsa.PrivateKey
	ProxyAddress  string // Maker/funder when trading through a proxy wallet
	SignatureType int
	ChainID       *big.Int // Defaults to Polygon mainnet
	Logger        *zap.Logger
}

// Trader places the final venue order once collateral has landed on the
// destination chain. It implements execution.PhaseExecutor for TRADING.
type Trader struct {
	client        *Client
	privateKey    *ecdsa.PrivateKey
	signer        string
	maker         string
	signatureType model.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder
	logger        *zap.Logger
}

var _ execution.PhaseExecutor = (*Trader)(nil)

// NewTrader creates the TRADING executor.
func NewTrader(cfg *TraderConfig) (*Trader, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Client == nil {
		return nil, errors.New("client is required")
	}
	if cfg.PrivateKey == nil {
		return nil, errors.New("private key is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	chainID := cfg.ChainID
	if chainID == nil {
		chainID = big.NewInt(PolygonChainID)
	}

	signer := crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey).Hex()
	maker := signer
	if cfg.ProxyAddress != "" {
		maker = cfg.ProxyAddress
	}

	return &Trader{
		client:        cfg.Client,
		privateKey:    cfg.PrivateKey,
		signer:        signer,
		maker:         maker,
		signatureType: model.SignatureType(cfg.SignatureType),
		orderBuilder:  builder.NewExchangeOrderBuilderImpl(chainID, nil),
		logger:        logger,
	}, nil
}

// Phases lists the phases this executor handles.
func (t *Trader) Phases() []types.ExecutionPhase {
	return []types.ExecutionPhase{types.PhaseTrading}
}

type signedOrderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

type postOrderRequest struct {
	Order     signedOrderJSON `json:"order"`
	Owner     string          `json:"owner"`
	OrderType string          `json:"orderType"`
}

type postOrderResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
}

type marketToken struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
}

type clobMarket struct {
	ConditionID string        `json:"condition_id"`
	NegRisk     bool          `json:"neg_risk"`
	Tokens      []marketToken `json:"tokens"`
}

// ExecutePhase places the order described by req.Intent and returns the
// CLOB order ID.
func (t *Trader) ExecutePhase(ctx context.Context, req execution.PhaseRequest) (string, error) {
	if req.Phase != types.PhaseTrading {
		return "", &types.NotReadyError{Reason: fmt.Sprintf("polymarket trader does not handle phase %s", req.Phase)}
	}
	if req.Intent == nil {
		return "", errors.New("phase request is missing intent")
	}
	if t.client.credentials.Empty() {
		return "", &types.NotReadyError{Reason: "polymarket API credentials not configured"}
	}

	intent := req.Intent
	market, tokenID, err := t.resolveToken(ctx, intent.MarketID, intent.Outcome)
	if err != nil {
		return "", err
	}

	collateral := estimator.EstimateCost(intent.Amount).NetAmount
	if collateral <= 0 {
		return "", &types.ValidationError{Field: "amount", Message: "amount does not cover fees"}
	}
	makerAmount, takerAmount, err := orderAmounts(intent.Side, uint64(collateral), intent.Price)
	if err != nil {
		return "", err
	}

	side := model.BUY
	if intent.Side == types.SideSell {
		side = model.SELL
	}

	exchange := model.CTFExchange
	if market.NegRisk {
		exchange = model.NegRiskCTFExchange
	}

	signed, err := t.orderBuilder.BuildSignedOrder(t.privateKey, &model.OrderData{
		Maker:         t.maker,
		Taker:         zeroAddress,
		TokenId:       tokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Side:          side,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        t.signer,
		Expiration:    "0",
		SignatureType: t.signatureType,
	}, exchange)
	if err != nil {
		return "", fmt.Errorf("build order: %w", err)
	}

	t.logger.Info("order-built",
		zap.String("execution-id", runID(req)),
		zap.String("market-id", intent.MarketID),
		zap.String("token-id", tokenID),
		zap.String("side", string(intent.Side)),
		zap.String("maker-amount", makerAmount),
		zap.String("taker-amount", takerAmount))

	resp, err := t.submit(ctx, signed, venueOrderType(intent.OrderType))
	if err != nil {
		return "", fmt.Errorf("submit order: %w", err)
	}

	t.logger.Info("order-placed",
		zap.String("execution-id", runID(req)),
		zap.String("order-id", resp.OrderID),
		zap.String("status", resp.Status))

	return resp.OrderID, nil
}

func (t *Trader) resolveToken(ctx context.Context, marketID string, outcome types.Outcome) (*clobMarket, string, error) {
	var market *clobMarket
	err := t.client.get(ctx, "market", "/markets/"+url.PathEscape(marketID), nil, &market)
	if errors.Is(err, errNotFound) || (err == nil && market == nil) {
		return nil, "", &types.NotFoundError{Kind: "market", ID: marketID}
	}
	if err != nil {
		return nil, "", fmt.Errorf("get market %s: %w", marketID, err)
	}

	for _, token := range market.Tokens {
		if strings.EqualFold(token.Outcome, string(outcome)) {
			return market, token.TokenID, nil
		}
	}
	return nil, "", fmt.Errorf("market %s has no %s token", marketID, outcome)
}

func (t *Trader) submit(ctx context.Context, order *model.SignedOrder, orderType string) (*postOrderResponse, error) {
	side := "BUY"
	if order.Side.Uint64() == uint64(model.SELL) {
		side = "SELL"
	}

	payload, err := json.Marshal(postOrderRequest{
		Order: signedOrderJSON{
			Salt:          order.Salt.Int64(),
			Maker:         order.Maker.Hex(),
			Signer:        order.Signer.Hex(),
			Taker:         order.Taker.Hex(),
			TokenID:       order.TokenId.String(),
			MakerAmount:   order.MakerAmount.String(),
			TakerAmount:   order.TakerAmount.String(),
			Side:          side,
			Expiration:    order.Expiration.String(),
			Nonce:         order.Nonce.String(),
			FeeRateBps:    order.FeeRateBps.String(),
			SignatureType: int(order.SignatureType.Int64()),
			Signature:     "0x" + common.Bytes2Hex(order.Signature),
		},
		Owner:     t.client.credentials.APIKey,
		OrderType: orderType,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	const requestPath = "/order"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.client.baseURL+requestPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := t.client.do(req, "order-post", requestPath, payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, fmt.Errorf("API error (status %d): %s", status, string(body))
	}

	var resp postOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if !resp.Success || resp.OrderID == "" {
		return nil, fmt.Errorf("order rejected: %s", resp.ErrorMsg)
	}
	return &resp, nil
}

// orderAmounts returns raw maker and taker amounts. A buy pays collateral
// for collateral/price shares; a sell gives collateral/price shares for
// collateral.
func orderAmounts(side types.Side, collateral uint64, price decimal.Decimal) (string, string, error) {
	if !price.IsPositive() {
		return "", "", &types.ValidationError{Field: "price", Message: "price must be positive to place an order"}
	}

	usdc := decimal.NewFromBigInt(new(big.Int).SetUint64(collateral), 0)
	shares := usdc.Div(price).Floor()
	if shares.IsZero() || usdc.IsZero() {
		return "", "", &types.ValidationError{Field: "amount", Message: "amount too small to place an order"}
	}

	if side == types.SideSell {
		return shares.String(), usdc.String(), nil
	}
	return usdc.String(), shares.String(), nil
}

// venueOrderType maps the intent's time-in-force to the CLOB order type.
func venueOrderType(t types.OrderType) string {
	switch t {
	case types.OrderTypeFOK:
		return "FOK"
	case types.OrderTypeIOC:
		return "FAK"
	default:
		return "GTC"
	}
}

func runID(req execution.PhaseRequest) string {
	if req.Run == nil {
		return ""
	}
	return req.Run.ID
}
