package taskengine

import "github.com/google/uuid"

// newEngineID generates the default engine identifier used for persistence
// records and WorkflowError.WorkflowID when the caller didn't supply one
// via WithID.
func newEngineID() string {
	return uuid.NewString()
}
