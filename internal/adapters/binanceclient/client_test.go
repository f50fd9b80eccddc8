package binanceclient

import (
	"context"
	"sync"
	"testing"

	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exitSentry/internal/domain"
	"exitSentry/internal/ports"
)

type mockLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Config{
		APIKey:     "test-key",
		SecretKey:  "test-secret",
		UseTestnet: true,
		Logger:     &mockLogger{},
	})
	require.NoError(t, err)
	return c
}

func TestNewRequiresLogger(t *testing.T) {
	_, err := New(Config{APIKey: "k", SecretKey: "s"})
	assert.Error(t, err)
}

func TestNewSelectsBaseURL(t *testing.T) {
	testnet, err := New(Config{UseTestnet: true, Logger: &mockLogger{}})
	require.NoError(t, err)
	assert.Equal(t, baseURLTestnet, testnet.futuresClient.BaseURL)

	prod, err := New(Config{UseTestnet: false, Logger: &mockLogger{}})
	require.NoError(t, err)
	assert.Equal(t, baseURLProduction, prod.futuresClient.BaseURL)
}

func TestNormalizeSymbol(t *testing.T) {
	c := newTestClient(t)

	spec := c.NormalizeSymbol("BTC")
	assert.Equal(t, "BTCUSDT", spec.Contract)
	assert.Equal(t, "BTC", spec.Symbol)
	assert.Equal(t, 1.0, spec.QuantoMultiplier)

	assert.Equal(t, "ETHUSDT", c.NormalizeSymbol("eth").Contract)
	// Already fully qualified symbols are left alone.
	assert.Equal(t, "BTCUSDT", c.NormalizeSymbol("BTCUSDT").Contract)
}

func TestContractPnl(t *testing.T) {
	c := newTestClient(t)
	spec := c.NormalizeSymbol("BTC")

	// Long: price went up, profit.
	assert.InDelta(t, 51.0, c.ContractPnl(90000, 95100, 0.01, domain.Long, spec), 1e-9)
	// Long: price went down, loss.
	assert.InDelta(t, -10.5, c.ContractPnl(90000, 88950, 0.01, domain.Long, spec), 1e-9)
	// Short: same move is inverted.
	assert.InDelta(t, -51.0, c.ContractPnl(90000, 95100, 0.01, domain.Short, spec), 1e-9)
	assert.InDelta(t, 10.5, c.ContractPnl(90000, 88950, 0.01, domain.Short, spec), 1e-9)
	// Nil spec defaults to a multiplier of 1.
	assert.InDelta(t, 51.0, c.ContractPnl(90000, 95100, 0.01, domain.Long, nil), 1e-9)
}

func TestHandleErrorMapsAPICodes(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		code int64
		want error
	}{
		{-1003, ports.ErrRateLimited},
		{-1021, ports.ErrTimeout},
		{-1022, ports.ErrAuthenticationFailed},
		{-1102, ports.ErrInvalidRequest},
		{-2011, ports.ErrOrderCancelFailed},
		{-2013, ports.ErrOrderNotFound},
		{-2014, ports.ErrInvalidAPIKeys},
		{-2015, ports.ErrInvalidAPIKeys},
		{-9999, ports.ErrUnknown},
	}

	for _, tt := range tests {
		apiErr := &common.APIError{Code: tt.code, Message: "boom"}
		err := c.handleError(ctx, apiErr, "TestOp")
		assert.ErrorIs(t, err, tt.want, "code %d", tt.code)
		assert.ErrorIs(t, err, apiErr, "original error must stay in the chain for code %d", tt.code)
	}
}

func TestHandleErrorContext(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.handleError(ctx, context.DeadlineExceeded, "TestOp"), ports.ErrTimeout)
	assert.ErrorIs(t, c.handleError(ctx, context.Canceled, "TestOp"), ports.ErrContextCanceled)
	assert.NoError(t, c.handleError(ctx, nil, "TestOp"))
}

func TestCancelOrderRejectsNonNumericID(t *testing.T) {
	c := newTestClient(t)
	err := c.CancelOrder(context.Background(), "BTCUSDT", "not-a-number")
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrUnknown)
}
