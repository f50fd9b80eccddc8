package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exitSentry/internal/domain"
	"exitSentry/internal/ports"
)

func TestMatchesTriggerCondition(t *testing.T) {
	tests := []struct {
		name    string
		side    domain.PositionSide
		kind    domain.OrderKind
		trade   string
		trigger string
		want    bool
	}{
		{"stop loss long fires below trigger", domain.Long, domain.StopLoss, "88950", "89000", true},
		{"stop loss long fires at trigger", domain.Long, domain.StopLoss, "89000", "89000", true},
		{"stop loss long does not fire above trigger", domain.Long, domain.StopLoss, "89100", "89000", false},
		{"stop loss short fires above trigger", domain.Short, domain.StopLoss, "91200", "91000", true},
		{"stop loss short does not fire below trigger", domain.Short, domain.StopLoss, "90800", "91000", false},
		{"take profit long fires above trigger", domain.Long, domain.TakeProfit, "95100", "95000", true},
		{"take profit long does not fire below trigger", domain.Long, domain.TakeProfit, "94900", "95000", false},
		{"take profit short fires below trigger", domain.Short, domain.TakeProfit, "84900", "85000", true},
		{"take profit short does not fire above trigger", domain.Short, domain.TakeProfit, "85100", "85000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &domain.ConditionalOrder{Side: tt.side, Kind: tt.kind}
			got := matchesTriggerCondition(order, decimal.RequireFromString(tt.trade), decimal.RequireFromString(tt.trigger))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfirmTriggerMatch(t *testing.T) {
	order := activeOrder("1001", "BTC", domain.Long, domain.StopLoss, 89000, testNow.Add(-time.Hour))
	ex := &mockExchange{trades: []json.RawMessage{
		binanceTrade(555, "88950", "0.01", "SELL", testNow.Add(-time.Minute)),
	}}
	m, _ := newTestMonitor(t, ex, newMockOrderRepo(), newMockPositionRepo(), &mockLedger{})

	trade, err := m.confirmTrigger(context.Background(), order)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, "555", trade.ID)
	assert.True(t, trade.IsSell())
}

func TestConfirmTriggerNoMatchReturnsNil(t *testing.T) {
	order := activeOrder("1001", "BTC", domain.Long, domain.StopLoss, 89000, testNow.Add(-time.Hour))
	// Price above the stop trigger, so the disappearance is not explained.
	ex := &mockExchange{trades: []json.RawMessage{
		binanceTrade(555, "89500", "0.01", "SELL", testNow.Add(-time.Minute)),
	}}
	m, _ := newTestMonitor(t, ex, newMockOrderRepo(), newMockPositionRepo(), &mockLedger{})

	trade, err := m.confirmTrigger(context.Background(), order)
	require.NoError(t, err)
	assert.Nil(t, trade)
}

func TestConfirmTriggerIgnoresStaleTrades(t *testing.T) {
	order := activeOrder("1001", "BTC", domain.Long, domain.StopLoss, 89000, testNow.Add(-time.Hour))
	// Matches on price and direction but executed ten minutes ago, outside
	// the five minute recency window.
	ex := &mockExchange{trades: []json.RawMessage{
		binanceTrade(555, "88950", "0.01", "SELL", testNow.Add(-10*time.Minute)),
	}}
	m, _ := newTestMonitor(t, ex, newMockOrderRepo(), newMockPositionRepo(), &mockLedger{})

	trade, err := m.confirmTrigger(context.Background(), order)
	require.NoError(t, err)
	assert.Nil(t, trade)
}

func TestConfirmTriggerIgnoresTradesBeforeOrderCreation(t *testing.T) {
	// Order created one minute ago; the trade predates it by two minutes but
	// still sits inside the recency window.
	order := activeOrder("1001", "BTC", domain.Long, domain.StopLoss, 89000, testNow.Add(-time.Minute))
	ex := &mockExchange{trades: []json.RawMessage{
		binanceTrade(555, "88950", "0.01", "SELL", testNow.Add(-3*time.Minute)),
	}}
	m, _ := newTestMonitor(t, ex, newMockOrderRepo(), newMockPositionRepo(), &mockLedger{})

	trade, err := m.confirmTrigger(context.Background(), order)
	require.NoError(t, err)
	assert.Nil(t, trade)
}

func TestConfirmTriggerIgnoresWrongDirection(t *testing.T) {
	order := activeOrder("1001", "BTC", domain.Long, domain.StopLoss, 89000, testNow.Add(-time.Hour))
	// A buy cannot close a long.
	ex := &mockExchange{trades: []json.RawMessage{
		binanceTrade(555, "88950", "0.01", "BUY", testNow.Add(-time.Minute)),
	}}
	m, _ := newTestMonitor(t, ex, newMockOrderRepo(), newMockPositionRepo(), &mockLedger{})

	trade, err := m.confirmTrigger(context.Background(), order)
	require.NoError(t, err)
	assert.Nil(t, trade)
}

func TestConfirmTriggerShortClosedByBuy(t *testing.T) {
	order := activeOrder("1001", "BTC", domain.Short, domain.StopLoss, 91000, testNow.Add(-time.Hour))
	ex := &mockExchange{trades: []json.RawMessage{
		binanceTrade(556, "91200", "0.01", "BUY", testNow.Add(-time.Minute)),
	}}
	m, _ := newTestMonitor(t, ex, newMockOrderRepo(), newMockPositionRepo(), &mockLedger{})

	trade, err := m.confirmTrigger(context.Background(), order)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, "556", trade.ID)
}

func TestConfirmTriggerFirstMatchWins(t *testing.T) {
	order := activeOrder("1001", "BTC", domain.Long, domain.StopLoss, 89000, testNow.Add(-time.Hour))
	// Newest first, both match; the first one in the list is taken.
	ex := &mockExchange{trades: []json.RawMessage{
		binanceTrade(556, "88900", "0.01", "SELL", testNow.Add(-time.Minute)),
		binanceTrade(555, "88950", "0.01", "SELL", testNow.Add(-2*time.Minute)),
	}}
	m, _ := newTestMonitor(t, ex, newMockOrderRepo(), newMockPositionRepo(), &mockLedger{})

	trade, err := m.confirmTrigger(context.Background(), order)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, "556", trade.ID)
}

func TestConfirmTriggerSkipsMalformedPayloads(t *testing.T) {
	order := activeOrder("1001", "BTC", domain.Long, domain.StopLoss, 89000, testNow.Add(-time.Hour))
	ex := &mockExchange{trades: []json.RawMessage{
		json.RawMessage(`{"garbage":true}`),
		json.RawMessage(`not json`),
		binanceTrade(555, "88950", "0.01", "SELL", testNow.Add(-time.Minute)),
	}}
	m, _ := newTestMonitor(t, ex, newMockOrderRepo(), newMockPositionRepo(), &mockLedger{})

	trade, err := m.confirmTrigger(context.Background(), order)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, "555", trade.ID)
}

func TestConfirmTriggerFetchErrorPropagates(t *testing.T) {
	order := activeOrder("1001", "BTC", domain.Long, domain.StopLoss, 89000, testNow.Add(-time.Hour))
	ex := &mockExchange{tradesErr: ports.ErrRateLimited}
	m, _ := newTestMonitor(t, ex, newMockOrderRepo(), newMockPositionRepo(), &mockLedger{})

	trade, err := m.confirmTrigger(context.Background(), order)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrRateLimited)
	assert.Nil(t, trade)
}
