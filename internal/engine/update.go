package engine

// UpdateKind classifies an inbound webhook update.
type UpdateKind string

const (
	// UpdateMessage is a typed message carrying free-text input.
	UpdateMessage UpdateKind = "message"
	// UpdateCallback is an inline keyboard press carrying opaque data.
	UpdateCallback UpdateKind = "callback"
	// UpdateUnknown is any other envelope shape; acknowledged and ignored.
	UpdateUnknown UpdateKind = "unknown"
)

// Update is the engine's view of one inbound webhook delivery.
type Update struct {
	// ID is the platform's update identifier, used for deduplication.
	ID int64
	// Kind determines which of Text / CallbackData is meaningful.
	Kind UpdateKind
	// UserID identifies the end user the flow is replayed for.
	UserID int64
	// Text is the free-text input of a message update.
	Text string
	// CallbackData is the opaque payload of a callback update.
	CallbackData string
}
