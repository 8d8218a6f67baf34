package bus

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

// Event is the unit passed through the in-memory bus. Each event kind is a
// dedicated payload type tagged by its Topic.
type Event interface {
	Topic() enum.Topic
	OccurredAt() time.Time
}

// MarketDataEvent is a real-time price update for a symbol.
type MarketDataEvent struct {
	Symbol string
	Price  decimal.Decimal
	Volume decimal.Decimal
	At     time.Time
}

func (e MarketDataEvent) Topic() enum.Topic     { return enum.TopicMarketData }
func (e MarketDataEvent) OccurredAt() time.Time { return e.At }

// KlineClosedEvent carries a completed candle.
type KlineClosedEvent struct {
	Candle model.Candle
	At     time.Time
}

func (e KlineClosedEvent) Topic() enum.Topic     { return enum.TopicKlineClosed }
func (e KlineClosedEvent) OccurredAt() time.Time { return e.At }

// DepthEvent carries an order-book snapshot.
type DepthEvent struct {
	Snapshot model.DepthSnapshot
	At       time.Time
}

func (e DepthEvent) Topic() enum.Topic     { return enum.TopicDepth }
func (e DepthEvent) OccurredAt() time.Time { return e.At }

// TradeEvent carries one executed trade print.
type TradeEvent struct {
	Trade model.Trade
	At    time.Time
}

func (e TradeEvent) Topic() enum.Topic     { return enum.TopicTrade }
func (e TradeEvent) OccurredAt() time.Time { return e.At }

// OrderEvent is published after every order state transition.
type OrderEvent struct {
	Order      model.Order
	Transition string
	At         time.Time
}

func (e OrderEvent) Topic() enum.Topic     { return enum.TopicOrder }
func (e OrderEvent) OccurredAt() time.Time { return e.At }

// PositionEvent is published when a position opens or closes.
type PositionEvent struct {
	Position model.Position
	Action   string // "opened" or "closed"
	At       time.Time
}

func (e PositionEvent) Topic() enum.Topic     { return enum.TopicPosition }
func (e PositionEvent) OccurredAt() time.Time { return e.At }

// RiskEvent reports a risk rejection, breaker trip, or limit update.
type RiskEvent struct {
	Kind     string
	Message  string
	Severity string
	At       time.Time
}

func (e RiskEvent) Topic() enum.Topic     { return enum.TopicRisk }
func (e RiskEvent) OccurredAt() time.Time { return e.At }

// SystemEvent reports lifecycle and degradation notices.
type SystemEvent struct {
	Action  string
	Message string
	At      time.Time
}

func (e SystemEvent) Topic() enum.Topic     { return enum.TopicSystem }
func (e SystemEvent) OccurredAt() time.Time { return e.At }
