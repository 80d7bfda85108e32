package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Call represents one tool invocation requested by the model.
type Call struct {
	Name      string
	Arguments json.RawMessage
}

// Runner validates and executes registered tools and bounds what is fed
// back to the model.
type Runner struct {
	registry *Registry
	limits   Limits
}

func NewRunner(registry *Registry, limits Limits) *Runner {
	return &Runner{registry: registry, limits: limits}
}

// RunOne executes one call. The returned content, including error payloads,
// never exceeds the runner's byte limit.
func (r *Runner) RunOne(ctx context.Context, call Call) (Result, error) {
	if r == nil || r.registry == nil {
		return Result{}, fmt.Errorf("tool runner is not initialized")
	}
	toolName := strings.TrimSpace(call.Name)
	if toolName == "" {
		return Result{}, fmt.Errorf("validation: empty tool name")
	}
	t, ok := r.registry.Get(toolName)
	if !ok {
		return Result{}, fmt.Errorf("validation: unknown tool: %s", toolName)
	}
	if err := t.Validate(call.Arguments); err != nil {
		return Result{}, fmt.Errorf("validation: %s: %w", toolName, err)
	}
	res, err := t.Execute(ctx, call.Arguments)
	return res.Limit(r.limits), err
}
