package bus

import "time"

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the protocol collaborator (inputs to the store)
// and by the store engines (consumed by the GUI).
const (
	// proto.* — fully parsed events handed over by the protocol engine.
	KindProtoMessage = "proto.message"
	KindProtoFile    = "proto.file"
	KindProtoCall    = "proto.call"
	KindProtoReceipt = "proto.receipt"

	// store.* — records landed in the store.
	KindStoreMessage   = "store.message"
	KindStoreFile      = "store.file"
	KindStoreCall      = "store.call"
	KindStoreDelivery  = "store.delivery"
	KindStoreDuplicate = "store.duplicate"

	// retry.* — outbound retry runner activity.
	KindRetrySent   = "retry.sent"
	KindRetryFailed = "retry.failed"

	// outbound.* — messages handed back to the protocol engine for sending.
	KindOutboundMessage = "outbound.message"
)
