package store

// Direction of a message, file transfer or call relative to the local account.
type Direction int

const (
	Inbound  Direction = 0
	Outbound Direction = 1
)

// DeliveryState tracks the outbound message lifecycle. Values are stored on
// disk in the message.marked column; transitions are one-way.
type DeliveryState int

const (
	DeliveryPending   DeliveryState = 0 // waiting to send
	DeliverySent      DeliveryState = 1 // server ack
	DeliveryDelivered DeliveryState = 2 // delivery receipt from counterpart
	DeliveryDisplayed DeliveryState = 7 // displayed marker from counterpart
	DeliveryDiscarded DeliveryState = 8 // user cancelled retry, terminal
)

// EntryKind identifies what a timeline entry points at (content_item.content_type).
type EntryKind int

const (
	KindMessage      EntryKind = 0
	KindFileTransfer EntryKind = 2
	KindCall         EntryKind = 3
)

// ConversationKind distinguishes direct chats from multi-party rooms.
type ConversationKind int

const (
	ConversationDirect ConversationKind = 0
	ConversationGroup  ConversationKind = 1
)

// TransferState is the file transfer progress state machine.
type TransferState int

const (
	TransferPending      TransferState = 0
	TransferTransferring TransferState = 1
	TransferComplete     TransferState = 2
	TransferFailed       TransferState = 3
)

// CallState is the call lifecycle state machine.
type CallState int

const (
	CallRinging      CallState = 0
	CallEstablishing CallState = 1
	CallActive       CallState = 2
	CallOtherDevice  CallState = 3
	CallEnded        CallState = 4
	CallDeclined     CallState = 5
	CallMissed       CallState = 6
	CallFailed       CallState = 7
)

// CallMedia is the media kind of a call.
type CallMedia int

const (
	MediaAudio CallMedia = 0
	MediaVideo CallMedia = 1
)

// Account is a local identity.
type Account struct {
	ID        int64
	AddressID int64
	BareJID   string
	Resource  string
	Enabled   bool
}

// RosterEntry is a contact of an account. Subscription state is the two
// independent booleans plus pending-request flags.
type RosterEntry struct {
	AccountID      int64
	AddressID      int64
	BareJID        string
	Name           string
	SubscribedTo   bool // we see their presence
	SubscribedFrom bool // they see ours
	PendingOut     bool
	PendingIn      bool
	Blocked        bool
}

// Conversation is the per-(account, counterpart, kind) thread. ReadUpToItem
// is the monotonic read marker, -1 means nothing read yet.
type Conversation struct {
	ID            int64
	AccountID     int64
	AddressID     int64
	BareJID       string
	Kind          ConversationKind
	Active        bool
	Encryption    bool
	ReadUpToItem  int64
	SendTyping    bool
	SendMarker    bool
	Notifications bool
}

// TimelineEntry is the unifying ordered index row for a conversation
// (content_item). The surrogate ID is the ordering and read-marker unit.
type TimelineEntry struct {
	ID             int64
	ConversationID int64
	Time           int64
	LocalTime      int64
	Kind           EntryKind
	ForeignID      int64
	Hidden         bool
}

// Message is a stored chat message. StanzaID/OriginID/MessageID are the three
// independent dedup identifiers; any subset may be empty.
type Message struct {
	ID                  int64
	AccountID           int64
	CounterpartID       int64
	CounterpartResource string
	Direction           Direction
	Kind                ConversationKind
	Time                int64
	LocalTime           int64
	Body                string
	Encrypted           bool
	Marked              DeliveryState
	MessageID           string
	OriginID            string
	StanzaID            string
	Carbon              bool
	FirstRetryAttempt   int64
	LastRetryAttempt    int64
	RetryCount          int
}

// FileTransfer is a stored file transfer. Carries the same dedup identifier
// triad as Message.
type FileTransfer struct {
	ID            int64
	AccountID     int64
	CounterpartID int64
	Direction     Direction
	Time          int64
	LocalTime     int64
	FileName      string
	Path          string
	URL           string
	MimeType      string
	Size          int64
	State         TransferState
	Encrypted     bool
	Provider      int
	Carbon        bool
	MessageID     string
	OriginID      string
	StanzaID      string
}

// Call is a stored call event.
type Call struct {
	ID                  int64
	AccountID           int64
	CounterpartID       int64
	CounterpartResource string
	OurResource         string
	Direction           Direction
	Time                int64
	LocalTime           int64
	EndTime             int64
	Encrypted           bool
	State               CallState
	Media               CallMedia
}

// Reply links a message to the message it quotes. QuotedID stays 0 when the
// quoted message is not (yet) known locally; the raw identifier and sender
// are kept as fallback.
type Reply struct {
	MessageID      int64
	QuotedID       int64
	QuotedStanzaID string
	QuotedSender   string
}

// TimelineItem is a timeline entry joined with its typed record. Exactly one
// of Message, FileTransfer, Call is non-nil, matching Entry.Kind.
type TimelineItem struct {
	Entry        TimelineEntry
	Message      *Message
	FileTransfer *FileTransfer
	Call         *Call
}

// UnreadConversation is one row of the per-conversation unread breakdown.
type UnreadConversation struct {
	ConversationID int64
	BareJID        string
	Kind           ConversationKind
	Unread         int64
}

// Stats is the on-demand statistics view over the store.
type Stats struct {
	AccountsTotal   int64
	AccountsEnabled int64
	MessagesTotal   int64
	MessagesUnread  int64
	MessagesUnsent  int64
	CallsTotal      int64
	CallsInbound    int64
	CallsOutbound   int64
	CallsMissed     int64
}
