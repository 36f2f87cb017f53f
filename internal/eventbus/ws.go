package eventbus

import "copytrader/internal/websocket"

// WSBridge subscribes to a Bus and re-broadcasts every event to a
// websocket.Hub, so the optional UI surface gets live domain events over
// the same connection/broadcast machinery.
type WSBridge struct {
	hub *websocket.Hub
}

// NewWSBridge wires hub to receive every event published on bus.
func NewWSBridge(bus *Bus, hub *websocket.Hub) *WSBridge {
	bridge := &WSBridge{hub: hub}
	bus.Subscribe(bridge.onEvent)
	return bridge
}

func (b *WSBridge) onEvent(evt Event) {
	switch evt.Type {
	case EventTradeExecuted, EventTradeFailed:
		b.hub.BroadcastNotification(map[string]interface{}{
			"event":   string(evt.Type),
			"payload": evt.Payload,
		})
	default:
		b.hub.Broadcast(map[string]interface{}{
			"event":   string(evt.Type),
			"payload": evt.Payload,
		})
	}
}
