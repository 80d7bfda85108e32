package tool

import (
	"context"
	"encoding/json"
)

// Tool is the common abstraction for all tools exposed to the model.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the tool arguments.
	Parameters() map[string]any
	Validate(raw json.RawMessage) error
	Execute(ctx context.Context, raw json.RawMessage) (Result, error)
}
