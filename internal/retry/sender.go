package retry

import (
	"context"
	"time"

	"github.com/pvanzin/taverna/internal/bus"
)

// OutboundMessage is the payload of an outbound.message event.
type OutboundMessage struct {
	AccountID     int64
	CounterpartID int64
	Body          string
	OriginID      string
}

// BusSender hands resends to the protocol engine over the event bus. The
// message stays pending until the engine reports a server ack back through
// the receipt path.
type BusSender struct {
	bus *bus.Bus
}

func NewBusSender(b *bus.Bus) *BusSender {
	return &BusSender{bus: b}
}

func (s *BusSender) Send(_ context.Context, accountID, counterpartID int64, body, originID string) error {
	s.bus.Publish(bus.Event{
		Kind:      bus.KindOutboundMessage,
		Timestamp: time.Now(),
		Payload: OutboundMessage{
			AccountID:     accountID,
			CounterpartID: counterpartID,
			Body:          body,
			OriginID:      originID,
		},
	})
	return nil
}
