package eventbus

import "copytrader/internal/models"

// TradePublisher adapts a Bus to executor.EventPublisher, keeping
// internal/executor free of any import on this package's concrete Bus type.
type TradePublisher struct {
	bus *Bus
}

// NewTradePublisher wraps bus.
func NewTradePublisher(bus *Bus) *TradePublisher {
	return &TradePublisher{bus: bus}
}

// PublishTradeExecuted publishes an EventTradeExecuted event.
func (p *TradePublisher) PublishTradeExecuted(trade models.Trade) {
	p.bus.Publish(Event{Type: EventTradeExecuted, Payload: trade})
}

// PublishTradeFailed publishes an EventTradeFailed event with the failure reason.
func (p *TradePublisher) PublishTradeFailed(trade models.Trade, reason string) {
	p.bus.Publish(Event{Type: EventTradeFailed, Payload: TradeFailedPayload{Trade: trade, Reason: reason}})
}

// PublishPositionOpened implements executor.PositionEventPublisher.
func (p *TradePublisher) PublishPositionOpened(position models.Position) {
	p.bus.Publish(Event{Type: EventPositionOpened, Payload: position})
}

// PublishPositionClosed implements executor.PositionEventPublisher.
func (p *TradePublisher) PublishPositionClosed(position models.Position) {
	p.bus.Publish(Event{Type: EventPositionClosed, Payload: position})
}

// TradeFailedPayload is the Payload carried by an EventTradeFailed event.
type TradeFailedPayload struct {
	Trade  models.Trade
	Reason string
}
