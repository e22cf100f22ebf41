package emit

import "github.com/dshills/taskflow-go/taskengine"

// Bridge adapts an Emitter to taskengine.Receiver, so an emitter can be
// subscribed onto any Engine without the core taskengine package needing
// to know about Emitter. WorkflowID/TokenIndex/CallbackName are read off
// the engine at delivery time, not captured at construction.
type Bridge struct {
	Emitter Emitter
}

// NewBridge wraps emitter as a taskengine.Receiver.
func NewBridge(emitter Emitter) *Bridge {
	return &Bridge{Emitter: emitter}
}

func (b *Bridge) Receive(signal string, eng *taskengine.Engine, payload map[string]any) {
	if b.Emitter == nil {
		return
	}
	b.Emitter.Emit(Event{
		WorkflowID:   eng.ID(),
		TokenIndex:   eng.State.TokenPos,
		CallbackName: eng.CurrentTaskName(),
		Signal:       signal,
		Meta:         payload,
	})
}
