package binanceclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"exitSentry/internal/domain"
	"exitSentry/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"
)

// conditionalOrderTypes are the resting order types the reconciliation core
// cares about. Plain limit/market orders are not exit instructions.
var conditionalOrderTypes = map[futures.OrderType]bool{
	futures.OrderTypeStop:             true,
	futures.OrderTypeStopMarket:       true,
	futures.OrderTypeTakeProfit:       true,
	futures.OrderTypeTakeProfitMarket: true,
}

// Client implements the ports.ExchangeClient capability using the go-binance library.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	quoteAsset    string
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
	QuoteAsset string // Settlement asset appended to local symbols (default "USDT")
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using global futures.UseTestnet
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	quoteAsset := cfg.QuoteAsset
	if quoteAsset == "" {
		quoteAsset = "USDT"
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		quoteAsset:    quoteAsset,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Signature for this request is not valid
			mappedErr = ports.ErrAuthenticationFailed
		case -1101, -1102, -1103, -1104, -1105, -1106, -1121: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		case -2011: // Cancel order rejected
			mappedErr = ports.ErrOrderCancelFailed
		case -2013: // Order does not exist
			mappedErr = ports.ErrOrderNotFound
		case -2014: // API-key format invalid
			mappedErr = ports.ErrInvalidAPIKeys
		case -2015: // Invalid API-key, IP, or permissions for action
			mappedErr = ports.ErrInvalidAPIKeys
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// ListOpenConditionalOrders returns the stop/take-profit orders currently
// resting on the exchange across all symbols.
func (c *Client) ListOpenConditionalOrders(ctx context.Context) ([]ports.OpenOrderRef, error) {
	op := "ListOpenConditionalOrders"
	orders, err := c.futuresClient.NewListOpenOrdersService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	refs := make([]ports.OpenOrderRef, 0, len(orders))
	for _, o := range orders {
		if !conditionalOrderTypes[o.Type] {
			continue
		}
		refs = append(refs, ports.OpenOrderRef{OrderID: strconv.FormatInt(o.OrderID, 10)})
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"open": len(orders), "conditional": len(refs)})
	return refs, nil
}

// ListRecentTrades returns the most recent account trades for a contract in the
// venue-native JSON shape, newest first. Binance returns trades oldest first, so
// the result is reversed before handing it to the caller.
func (c *Client) ListRecentTrades(ctx context.Context, contract string, limit int) ([]json.RawMessage, error) {
	op := "ListRecentTrades"
	trades, err := c.futuresClient.NewListAccountTradeService().
		Symbol(contract).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	payloads := make([]json.RawMessage, 0, len(trades))
	for i := len(trades) - 1; i >= 0; i-- {
		raw, err := json.Marshal(trades[i])
		if err != nil {
			marshalErr := fmt.Errorf("could not re-encode trade %d: %w", trades[i].ID, err)
			return nil, c.handleError(ctx, marshalErr, op)
		}
		payloads = append(payloads, raw)
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"contract": contract, "count": len(payloads)})
	return payloads, nil
}

// CancelOrder cancels a resting order on the given contract.
func (c *Client) CancelOrder(ctx context.Context, contract string, orderID string) error {
	op := "CancelOrder"
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		parseErr := fmt.Errorf("order ID %q is not a Binance order id: %w", orderID, err)
		return c.handleError(ctx, parseErr, op)
	}

	_, err = c.futuresClient.NewCancelOrderService().
		Symbol(contract).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"contract": contract, "orderID": orderID})
	return nil
}

// ContractPnl computes the realized PnL for a close of quantity contracts. For
// linear USDT-margined contracts the quanto multiplier is 1 and the PnL is the
// plain price difference times quantity, sign-flipped for shorts.
func (c *Client) ContractPnl(entry, exit, quantity float64, side domain.PositionSide, spec *ports.ContractSpec) float64 {
	multiplier := 1.0
	if spec != nil && spec.QuantoMultiplier > 0 {
		multiplier = spec.QuantoMultiplier
	}
	delta := exit - entry
	if side == domain.Short {
		delta = entry - exit
	}
	return delta * quantity * multiplier
}

// NormalizeSymbol resolves a local symbol like "BTC" into its Binance futures
// contract spec ("BTCUSDT", linear).
func (c *Client) NormalizeSymbol(symbol string) *ports.ContractSpec {
	contract := strings.ToUpper(strings.TrimSpace(symbol))
	if !strings.HasSuffix(contract, c.quoteAsset) {
		contract += c.quoteAsset
	}
	return &ports.ContractSpec{
		Symbol:           symbol,
		Contract:         contract,
		QuantoMultiplier: 1.0,
	}
}
