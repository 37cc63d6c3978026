package reconcile

import "github.com/warp/evaluation-engine/engine"

// =============================================================================
// OUTBOUND EVENTS - Typed, fire-and-forget
// =============================================================================

// Event announces one successfully applied change so observers (panels,
// recalculation jobs) can refresh derived views. Delivery is outside
// the engine's correctness contract; an AlreadyApplied repeat emits
// nothing.
type Event struct {
	ApprovalID engine.ApprovalID `json:"approval_id"`
	DataType   engine.DataType   `json:"data_type"`
	Action     engine.Action     `json:"action"`
	MonthKey   engine.MonthKey   `json:"month_key"`
}

// Notifier receives apply events. Implementations must not block the
// reconciler; hand off to a channel or goroutine if delivery is slow.
type Notifier interface {
	Notify(Event)
}

// NopNotifier drops all events. The default when none is installed.
type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}

// ChannelNotifier forwards events to a channel, dropping when the
// buffer is full so a slow consumer can't stall an apply.
type ChannelNotifier struct {
	C chan Event
}

func NewChannelNotifier(buffer int) *ChannelNotifier {
	return &ChannelNotifier{C: make(chan Event, buffer)}
}

func (n *ChannelNotifier) Notify(e Event) {
	select {
	case n.C <- e:
	default:
	}
}
