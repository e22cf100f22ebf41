package emit

import "context"

// Emitter receives Events from a Receiver adapter subscribed to an engine's
// signal bus. Implementations must not block the engine: Emit should be
// cheap or internally asynchronous, and must never panic — the engine's
// signal bus already recovers and silences a misbehaving receiver, but a
// well-behaved Emitter shouldn't rely on that safety net.
type Emitter interface {
	// Emit records a single event.
	Emit(event Event)

	// EmitBatch records multiple events as one operation; events are in
	// creation order. Returns an error only on catastrophic failure —
	// individual event delivery failures should be logged internally, not
	// surfaced here.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until any buffered events have been delivered, or ctx
	// expires. Safe to call more than once.
	Flush(ctx context.Context) error
}
