package order

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/risk"
	"main/pkg/exception"
)

type fakeDelegator struct {
	placed    []model.Order
	cancelled []string
	placeErr  error
	cancelErr error
}

func (f *fakeDelegator) GetTicker(context.Context, string) (model.SymbolStats, error) {
	return model.SymbolStats{}, nil
}

func (f *fakeDelegator) GetKlines(context.Context, string, string, int) ([]model.Candle, error) {
	return nil, nil
}

func (f *fakeDelegator) PlaceOrder(_ context.Context, order *model.Order) (string, error) {
	if f.placeErr != nil {
		return "", f.placeErr
	}
	f.placed = append(f.placed, order.Clone())
	return "EX-" + strconv.Itoa(len(f.placed)), nil
}

func (f *fakeDelegator) CancelOrder(_ context.Context, _, exchangeOrderID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, exchangeOrderID)
	return nil
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestManager(t *testing.T) (*Manager, *fakeDelegator) {
	t.Helper()
	return newTestManagerWithParams(t, risk.DefaultParameters())
}

func newTestManagerWithParams(t *testing.T, params risk.Parameters) (*Manager, *fakeDelegator) {
	t.Helper()
	fake := &fakeDelegator{}
	m, err := NewManager(Config{
		Delegator: fake,
		Engine:    risk.NewEngine(params),
		Equity:    func() decimal.Decimal { return d("10000") },
		Price:     func(string) decimal.Decimal { return d("50000") },
	})
	require.NoError(t, err)
	return m, fake
}

func TestSubmitRiskGateBlocksExchangeCall(t *testing.T) {
	m, fake := newTestManager(t)

	result, err := m.Submit(context.Background(), model.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     enum.OrderSideBuy,
		Type:     enum.OrderTypeMarket,
		Quantity: d("1"),
	})
	require.NoError(t, err)
	require.False(t, result.OK)
	require.Equal(t, enum.OrderStatusRejected, result.Order.Status)
	require.Empty(t, fake.placed, "denied intent must never reach the exchange")
}

func TestSubmitSpawnsProtectiveChildren(t *testing.T) {
	m, fake := newTestManager(t)

	result, err := m.Submit(context.Background(), model.OrderRequest{
		Symbol:        "BTCUSDT",
		Side:          enum.OrderSideBuy,
		Type:          enum.OrderTypeMarket,
		Quantity:      d("0.01"),
		StopLossPrice: d("49000"),
		TakeProfit:    d("52000"),
	})
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Len(t, fake.placed, 3)

	parent, err := m.Get(result.Order.ID)
	require.NoError(t, err)
	require.Len(t, parent.Children, 2)
	require.NotEmpty(t, parent.StopLossOrderID)
	require.NotEmpty(t, parent.TakeProfitOrderID)

	sl, err := m.Get(parent.StopLossOrderID)
	require.NoError(t, err)
	require.Equal(t, enum.OrderSideSell, sl.Side)
	require.Equal(t, enum.OrderTypeStopLoss, sl.Type)
	require.Equal(t, parent.ID, sl.ParentOrderID)
	require.True(t, sl.StopPrice.Equal(d("49000")))
}

func TestChildOrdersAreRiskGated(t *testing.T) {
	t.Run("children count toward the per-symbol order limit", func(t *testing.T) {
		params := risk.DefaultParameters()
		params.MaxOrdersPerSymbol = 2
		m, fake := newTestManagerWithParams(t, params)

		result, err := m.Submit(context.Background(), model.OrderRequest{
			Symbol:        "BTCUSDT",
			Side:          enum.OrderSideBuy,
			Type:          enum.OrderTypeMarket,
			Quantity:      d("0.01"),
			StopLossPrice: d("49000"),
			TakeProfit:    d("52000"),
		})
		require.NoError(t, err)
		require.True(t, result.OK)
		require.Len(t, fake.placed, 2, "take profit child must be denied by the order limit")

		parent, err := m.Get(result.Order.ID)
		require.NoError(t, err)
		require.NotEmpty(t, parent.StopLossOrderID)
		require.Empty(t, parent.TakeProfitOrderID)
	})

	t.Run("children run the position value checks", func(t *testing.T) {
		params := risk.DefaultParameters()
		params.MaxPositionSize = d("400")
		m, fake := newTestManagerWithParams(t, params)

		// Parent value 300 at its limit price; children are priced off the
		// current market at 500 and must be denied.
		result, err := m.Submit(context.Background(), model.OrderRequest{
			Symbol:        "BTCUSDT",
			Side:          enum.OrderSideBuy,
			Type:          enum.OrderTypeLimit,
			Quantity:      d("0.01"),
			Price:         d("30000"),
			StopLossPrice: d("29000"),
			TakeProfit:    d("32000"),
		})
		require.NoError(t, err)
		require.True(t, result.OK)
		require.Len(t, fake.placed, 1)

		parent, err := m.Get(result.Order.ID)
		require.NoError(t, err)
		require.Empty(t, parent.Children)
	})
}

func TestSubmitReduceOnlySkipsGate(t *testing.T) {
	m, fake := newTestManager(t)

	// Value 50000 would be denied by every limit; a position close must
	// still go out.
	result, err := m.Submit(context.Background(), model.OrderRequest{
		Symbol:        "BTCUSDT",
		Side:          enum.OrderSideSell,
		Type:          enum.OrderTypeMarket,
		Quantity:      d("1"),
		ParentOrderID: "position-1",
		ReduceOnly:    true,
	})
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Len(t, fake.placed, 1)
}

func TestCancelCascadesToChildren(t *testing.T) {
	m, _ := newTestManager(t)

	result, err := m.Submit(context.Background(), model.OrderRequest{
		Symbol:        "BTCUSDT",
		Side:          enum.OrderSideBuy,
		Type:          enum.OrderTypeLimit,
		Quantity:      d("0.01"),
		Price:         d("50000"),
		StopLossPrice: d("49000"),
		TakeProfit:    d("52000"),
	})
	require.NoError(t, err)
	require.True(t, result.OK)

	cancelled, err := m.Cancel(context.Background(), result.Order.ID)
	require.NoError(t, err)
	require.True(t, cancelled.OK)

	parent, _ := m.Get(result.Order.ID)
	require.Equal(t, enum.OrderStatusCancelled, parent.Status)
	for _, childID := range parent.Children {
		child, err := m.Get(childID)
		require.NoError(t, err)
		if child.Status != enum.OrderStatusCancelled {
			t.Fatalf("child %s status mismatch! should be %s but got %s",
				childID, enum.OrderStatusCancelled, child.Status)
		}
	}
}

func TestCancelErrors(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Cancel(context.Background(), "missing")
	require.ErrorIs(t, err, exception.ErrOrderUnknownID)

	result, err := m.Submit(context.Background(), model.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     enum.OrderSideBuy,
		Type:     enum.OrderTypeMarket,
		Quantity: d("0.01"),
	})
	require.NoError(t, err)
	require.NoError(t, m.ApplyFill(result.Order.ID, d("0.01"), d("50000")))

	_, err = m.Cancel(context.Background(), result.Order.ID)
	require.ErrorIs(t, err, exception.ErrOrderNotCancellable)
}

func TestCancelExchangeFailureKeepsStatus(t *testing.T) {
	m, fake := newTestManager(t)

	result, err := m.Submit(context.Background(), model.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     enum.OrderSideBuy,
		Type:     enum.OrderTypeMarket,
		Quantity: d("0.01"),
	})
	require.NoError(t, err)
	require.True(t, result.OK)

	fake.cancelErr = errors.New("venue unavailable")
	cancelled, err := m.Cancel(context.Background(), result.Order.ID)
	require.ErrorIs(t, err, exception.ErrOrderExchangeFailure)
	require.False(t, cancelled.OK)

	order, _ := m.Get(result.Order.ID)
	if order.Status != enum.OrderStatusSubmitted {
		t.Fatalf("status mismatch! should be %s but got %s", enum.OrderStatusSubmitted, order.Status)
	}

	// The order stays cancellable once the venue recovers.
	fake.cancelErr = nil
	cancelled, err = m.Cancel(context.Background(), result.Order.ID)
	require.NoError(t, err)
	require.True(t, cancelled.OK)
	order, _ = m.Get(result.Order.ID)
	require.Equal(t, enum.OrderStatusCancelled, order.Status)
}

func TestApplyFillConservation(t *testing.T) {
	m, _ := newTestManager(t)

	result, err := m.Submit(context.Background(), model.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     enum.OrderSideBuy,
		Type:     enum.OrderTypeMarket,
		Quantity: d("0.02"),
	})
	require.NoError(t, err)

	require.NoError(t, m.ApplyFill(result.Order.ID, d("0.01"), d("50000")))
	order, _ := m.Get(result.Order.ID)
	require.Equal(t, enum.OrderStatusPartiallyFilled, order.Status)
	require.True(t, order.FilledQuantity.Add(order.RemainingQuantity).Equal(order.Quantity))

	err = m.ApplyFill(result.Order.ID, d("0.05"), d("50000"))
	require.ErrorIs(t, err, exception.ErrOrderInvalidFill)

	require.NoError(t, m.ApplyFill(result.Order.ID, d("0.01"), d("51000")))
	order, _ = m.Get(result.Order.ID)
	require.Equal(t, enum.OrderStatusFilled, order.Status)
	require.True(t, order.RemainingQuantity.IsZero())
	require.True(t, order.AvgFillPrice.Equal(d("50500")), "avg fill price got %s", order.AvgFillPrice)

	err = m.ApplyFill(result.Order.ID, d("0.01"), d("50000"))
	require.ErrorIs(t, err, exception.ErrOrderTerminal)
}

func TestActiveOrdersFilter(t *testing.T) {
	m, _ := newTestManager(t)

	for _, symbol := range []string{"BTCUSDT", "ETHUSDT"} {
		_, err := m.Submit(context.Background(), model.OrderRequest{
			Symbol:   symbol,
			Side:     enum.OrderSideBuy,
			Type:     enum.OrderTypeMarket,
			Quantity: d("0.001"),
		})
		require.NoError(t, err)
	}

	require.Len(t, m.ActiveOrders(""), 2)
	require.Len(t, m.ActiveOrders("BTCUSDT"), 1)
}
