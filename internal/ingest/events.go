package ingest

import "github.com/pvanzin/taverna/internal/store"

// MessageEvent is a fully parsed message handed over by the protocol engine.
// Wire parsing and decryption already happened; the identifiers are whatever
// the stanza carried, any subset may be empty.
type MessageEvent struct {
	AccountID   int64
	Counterpart string // bare address
	Resource    string
	Kind        store.ConversationKind
	Direction   store.Direction
	Time        int64
	LocalTime   int64
	Body        string
	Encrypted   bool
	Delivery    store.DeliveryState
	Carbon      bool
	StanzaID    string
	OriginID    string
	MessageID   string
	ReplyTo     string // identifier of the quoted message, empty when not a reply
	ReplySender string
}

// FileEvent is a fully parsed file transfer offer or completion.
type FileEvent struct {
	AccountID   int64
	Counterpart string
	Kind        store.ConversationKind
	Direction   store.Direction
	Time        int64
	LocalTime   int64
	FileName    string
	Path        string
	URL         string
	MimeType    string
	Size        int64
	State       store.TransferState
	Encrypted   bool
	Provider    int
	Carbon      bool
	StanzaID    string
	OriginID    string
	MessageID   string
}

// CallEvent is a signaled call. Calls are live-only and carry no dedup
// identifiers.
type CallEvent struct {
	AccountID   int64
	Counterpart string
	Resource    string
	OurResource string
	Direction   store.Direction
	Time        int64
	LocalTime   int64
	EndTime     int64
	Encrypted   bool
	State       store.CallState
	Media       store.CallMedia
}

// ReceiptKind distinguishes the three acknowledgment flavors.
type ReceiptKind int

const (
	ReceiptServerAck ReceiptKind = iota // stream ack: pending → sent
	ReceiptDelivered                    // delivery receipt: → delivered
	ReceiptDisplayed                    // displayed marker: cumulative → displayed
)

// ReceiptEvent acknowledges one of our outbound messages, referenced by a
// dedup identifier.
type ReceiptEvent struct {
	AccountID   int64
	Counterpart string
	Identifier  string
	Kind        ReceiptKind
}
