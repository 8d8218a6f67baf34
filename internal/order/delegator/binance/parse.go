package binance

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/pkg/exception"
)

func parseDecimal(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse decimal %q", s)
	}
	return v, nil
}

// candleFromRow decodes one row of the klines array response. Rows are
// positional: open time, OHLC, volume, close time, quote volume, trade count.
func candleFromRow(symbol, interval string, row []json.RawMessage) (model.Candle, error) {
	if len(row) < 9 {
		return model.Candle{}, errors.Wrapf(exception.ErrMarketDataInvalidPayload, "kline row has %d fields", len(row))
	}

	var openTime, closeTime int64
	var open, high, low, clos, volume, quoteVolume string
	var tradeCount int64

	fields := []any{&openTime, &open, &high, &low, &clos, &volume, &closeTime, &quoteVolume, &tradeCount}
	for i, dst := range fields {
		if err := json.Unmarshal(row[i], dst); err != nil {
			return model.Candle{}, errors.Wrapf(err, "kline row field %d", i)
		}
	}

	candle := model.Candle{
		Symbol:     symbol,
		Interval:   interval,
		OpenTime:   time.UnixMilli(openTime),
		CloseTime:  time.UnixMilli(closeTime),
		TradeCount: tradeCount,
		Closed:     true,
	}

	var err error
	if candle.Open, err = parseDecimal(open); err != nil {
		return model.Candle{}, err
	}
	if candle.High, err = parseDecimal(high); err != nil {
		return model.Candle{}, err
	}
	if candle.Low, err = parseDecimal(low); err != nil {
		return model.Candle{}, err
	}
	if candle.Close, err = parseDecimal(clos); err != nil {
		return model.Candle{}, err
	}
	if candle.Volume, err = parseDecimal(volume); err != nil {
		return model.Candle{}, err
	}
	if candle.QuoteVolume, err = parseDecimal(quoteVolume); err != nil {
		return model.Candle{}, err
	}
	return candle, nil
}
