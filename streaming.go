package llmprovider

// StreamEvent is one discrete wire event of a streamed response.
//
// Events for a response arrive in the order
//
//	MessageStart → {ContentBlockStart → ContentBlockDelta* → ContentBlockStop}* → MessageStop → Metadata?
//
// but consumers must tolerate omissions and reordering. The set of variants is
// closed; providers map anything they do not recognize to UnknownEvent.
type StreamEvent interface {
	streamEvent()
}

// BlockKind is the content kind announced by a ContentBlockStartEvent.
type BlockKind int

// Block kinds
const (
	BlockKindText BlockKind = iota
	BlockKindToolUse
)

func (k BlockKind) String() string {
	switch k {
	case BlockKindText:
		return BlockTypeText
	case BlockKindToolUse:
		return BlockTypeToolUse
	default:
		return "unknown"
	}
}

// MessageStartEvent opens a response.
type MessageStartEvent struct {
	// Role is the author role, usually "assistant"
	Role Role
}

// ContentBlockStartEvent opens a content block at Index.
type ContentBlockStartEvent struct {
	Index int
	Kind  BlockKind

	// ToolID and ToolName are set when Kind is BlockKindToolUse
	ToolID   string
	ToolName string
}

// ContentBlockDeltaEvent carries an incremental update for the block at Index.
type ContentBlockDeltaEvent struct {
	Index int
	Delta DeltaPayload
}

// ContentBlockStopEvent closes the block at Index.
type ContentBlockStopEvent struct {
	Index int
}

// MessageStopEvent ends content generation.
type MessageStopEvent struct {
	StopReason StopReason
}

// MetadataEvent reports token usage. It follows MessageStop.
type MetadataEvent struct {
	Usage *Usage
}

// UnknownEvent is any provider event without a mapping. It is ignored.
type UnknownEvent struct {
	// Type is the provider's name for the event, for logging
	Type string
}

func (MessageStartEvent) streamEvent()      {}
func (ContentBlockStartEvent) streamEvent() {}
func (ContentBlockDeltaEvent) streamEvent() {}
func (ContentBlockStopEvent) streamEvent()  {}
func (MessageStopEvent) streamEvent()       {}
func (MetadataEvent) streamEvent()          {}
func (UnknownEvent) streamEvent()           {}

// DeltaPayload is the body of a ContentBlockDeltaEvent.
type DeltaPayload interface {
	deltaPayload()
}

// TextDelta is a fragment of block text.
type TextDelta struct {
	Text string
}

// ToolUseDelta is a fragment of a tool invocation's JSON argument document.
type ToolUseDelta struct {
	PartialJSON string
}

func (TextDelta) deltaPayload()    {}
func (ToolUseDelta) deltaPayload() {}
