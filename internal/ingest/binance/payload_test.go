package binance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"main/pkg/exception"
)

func TestParseTicker(t *testing.T) {
	raw := []byte(`{"e":"24hrTicker","E":1700000000000,"s":"BTCUSDT","c":"50000.10","P":"-1.25","h":"51000","l":"49000","v":"1234.5","n":42}`)

	tick, err := ParseTicker(raw)
	require.NoError(t, err)
	require.Equal(t, "BTCUSDT", tick.Symbol)
	if tick.Price.String() != "50000.1" {
		t.Fatalf("price mismatch! should be 50000.1 but got %s", tick.Price)
	}
	require.True(t, tick.PriceChangePct.IsNegative())
	require.EqualValues(t, 42, tick.TradeCount)
	require.EqualValues(t, 1700000000, tick.Timestamp.Unix())
}

func TestParseKlineClosedFlag(t *testing.T) {
	raw := []byte(`{"e":"kline","E":1700000060000,"s":"ETHUSDT","k":{"t":1700000000000,"T":1700000059999,"i":"5m","o":"3000","c":"3010","h":"3020","l":"2990","v":"100","q":"300500","n":55,"x":true}}`)

	candle, err := ParseKline(raw)
	require.NoError(t, err)
	require.Equal(t, "ETHUSDT", candle.Symbol)
	require.Equal(t, "5m", candle.Interval)
	require.True(t, candle.Closed)
	require.EqualValues(t, 55, candle.TradeCount)
}

func TestParseDepth(t *testing.T) {
	raw := []byte(`{"lastUpdateId":987654,"bids":[["49999.5","0.4"],["49999.0","1.2"]],"asks":[["50000.5","0.3"]]}`)

	snapshot, err := ParseDepth("BTCUSDT", raw)
	require.NoError(t, err)
	require.Equal(t, "BTCUSDT", snapshot.Symbol)
	require.EqualValues(t, 987654, snapshot.LastUpdateID)
	require.Len(t, snapshot.Bids, 2)
	require.Len(t, snapshot.Asks, 1)
	require.True(t, snapshot.Bids[0].Price.GreaterThan(snapshot.Bids[1].Price))
}

func TestParseTrade(t *testing.T) {
	raw := []byte(`{"e":"trade","E":1700000000100,"s":"BTCUSDT","t":777,"p":"50001","q":"0.02","T":1700000000099,"m":true}`)

	trade, err := ParseTrade(raw)
	require.NoError(t, err)
	require.EqualValues(t, 777, trade.TradeID)
	require.True(t, trade.BuyerMaker)
}

func TestParseMalformed(t *testing.T) {
	testCases := []struct {
		name string
		run  func() error
	}{
		{"ticker garbage", func() error { _, err := ParseTicker([]byte(`{`)); return err }},
		{"ticker missing symbol", func() error { _, err := ParseTicker([]byte(`{"e":"24hrTicker"}`)); return err }},
		{"kline bad decimal", func() error {
			_, err := ParseKline([]byte(`{"s":"BTCUSDT","k":{"i":"1m","o":"x","c":"1","h":"1","l":"1","v":"1","q":"1"}}`))
			return err
		}},
		{"depth bad level", func() error { _, err := ParseDepth("BTCUSDT", []byte(`{"bids":[["a","b"]]}`)); return err }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, tc.run(), exception.ErrMarketDataInvalidPayload)
		})
	}
}
