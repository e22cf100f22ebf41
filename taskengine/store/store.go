// Package store provides the durable-object overlay (§6): status enums
// for engine and token records, a Store contract for persisting them, and
// a DbWorkflowEngine-equivalent hook wiring (see dbengine.go) that drives
// those status transitions off the core engine's ProcessingFactory,
// ActionMapper and TransitionActions seams. The wire format/schema behind a
// concrete Store implementation (column layout, migrations, query shape) is
// explicitly out of scope (§1) — this package defines the contract and three
// reference backends (memory, SQLite, MySQL), not a record layer.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested workflow or token record does
// not exist.
var ErrNotFound = errors.New("store: not found")

// TokenStatus is a durable token's lifecycle state (§6).
type TokenStatus string

const (
	TokenInitial   TokenStatus = "INITIAL"
	TokenRunning   TokenStatus = "RUNNING"
	TokenCompleted TokenStatus = "COMPLETED"
	TokenHalted    TokenStatus = "HALTED"
	TokenError     TokenStatus = "ERROR"
)

// WorkflowStatus is a durable engine record's lifecycle state (§6).
type WorkflowStatus string

const (
	WorkflowNew       WorkflowStatus = "NEW"
	WorkflowRunning   WorkflowStatus = "RUNNING"
	WorkflowHalted    WorkflowStatus = "HALTED"
	WorkflowError     WorkflowStatus = "ERROR"
	WorkflowCompleted WorkflowStatus = "COMPLETED"
)

// Durable is the contract a token must satisfy to participate in
// persistence (§6's "Durable-object contract"). taskengine.Token
// implementations that don't need persistence need not implement it; the
// DB overlay type-asserts for it at each hook point and no-ops otherwise.
type Durable interface {
	SetStatus(status TokenStatus)
	Status() TokenStatus
	SetTaskCounter(callbackPos []int)
	SetWorkflowID(id string)
	SetErrorMessage(text string)
}

// WorkflowRecord is the engine-level persisted record (§6's "Engine
// record"): uuid, name, status, and the set of token identifiers it owns.
type WorkflowRecord struct {
	UUID    string
	Name    string
	Status  WorkflowStatus
	Objects []string
}

// Store persists WorkflowRecords and per-token status/error state. It
// does not persist the CallbackTree (callables are not serializable, per
// §6's "Serialisation format" — callables must be reinstalled by the
// caller) or MachineState position beyond what SaveTokenStatus's
// taskCounter snapshot captures.
type Store interface {
	SaveWorkflow(ctx context.Context, rec WorkflowRecord) error
	LoadWorkflow(ctx context.Context, uuid string) (WorkflowRecord, error)

	SaveTokenStatus(ctx context.Context, workflowID, tokenID string, status TokenStatus, taskCounter []int) error
	SetTokenError(ctx context.Context, workflowID, tokenID, message string) error
	LoadTokenStatus(ctx context.Context, workflowID, tokenID string) (TokenStatus, error)
}
