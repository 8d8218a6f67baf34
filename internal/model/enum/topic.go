package enum

// Topic tags an event published on the in-process bus.
type Topic uint8

const (
	_topic_beg Topic = iota
	TopicMarketData
	TopicKlineClosed
	TopicDepth
	TopicTrade
	TopicOrder
	TopicPosition
	TopicRisk
	TopicSystem
	_topic_end
)

func (t Topic) IsAvailable() bool {
	return t > _topic_beg && t < _topic_end
}

func (t Topic) String() string {
	switch t {
	case TopicMarketData:
		return "market_data"
	case TopicKlineClosed:
		return "kline_closed"
	case TopicDepth:
		return "depth_update"
	case TopicTrade:
		return "trade_data"
	case TopicOrder:
		return "order_lifecycle"
	case TopicPosition:
		return "position_lifecycle"
	case TopicRisk:
		return "risk_event"
	case TopicSystem:
		return "system_event"
	default:
		return "unknown"
	}
}

// Topics returns every available topic, in declaration order.
func Topics() []Topic {
	topics := make([]Topic, 0, int(_topic_end)-1)
	for t := _topic_beg + 1; t < _topic_end; t++ {
		topics = append(topics, t)
	}
	return topics
}
