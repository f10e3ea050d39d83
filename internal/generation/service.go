// Package generation turns a prompt and model choice into a displayed
// image: validation and the provider call on one side, the per-session
// submit/display/fail flow on the other.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/mounthank/go-imagegen/internal/catalog"
)

var (
	ErrPromptRequired = errors.New("prompt is required")
	ErrUnknownModel   = errors.New("unknown model")
)

// ProviderFailure wraps any error the inference provider produced so the
// HTTP layer can tell it apart from local validation.
type ProviderFailure struct {
	Err error
}

func (e *ProviderFailure) Error() string { return e.Err.Error() }
func (e *ProviderFailure) Unwrap() error { return e.Err }

// Runner is the single call the external inference service exposes.
type Runner interface {
	Run(ctx context.Context, model string, input map[string]any) (any, error)
}

// Request is one generation attempt as submitted by a client.
type Request struct {
	Prompt     string         `json:"prompt"`
	Model      string         `json:"model"`
	Parameters map[string]any `json:"parameters"`
}

// Debug echoes the exact inputs and output shape of a generation. It is
// diagnostic only; nothing downstream may branch on it.
type Debug struct {
	Model       string         `json:"model"`
	Parameters  map[string]any `json:"parameters"`
	OutputType  string         `json:"outputType"`
	OutputValue any            `json:"outputValue"`
}

// Result carries the provider's raw output plus the resolved model and the
// merged input that produced it.
type Result struct {
	Output any
	Debug  Debug
	Model  catalog.Descriptor
	Input  map[string]any
}

// Service validates a request, resolves the model against the catalog and
// forwards it to the provider. It holds no state across calls.
type Service struct {
	runner Runner
}

func NewService(r Runner) *Service {
	return &Service{runner: r}
}

func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Prompt == "" {
		return nil, ErrPromptRequired
	}

	desc, ok := catalog.Resolve(req.Model)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, req.Model)
	}

	// Model defaults first, then whatever the caller sent, then the prompt.
	input := desc.Defaults()
	for k, v := range req.Parameters {
		input[k] = v
	}
	input["prompt"] = req.Prompt

	output, err := s.runner.Run(ctx, desc.Name, input)
	if err != nil {
		return nil, &ProviderFailure{Err: err}
	}

	return &Result{
		Output: output,
		Debug: Debug{
			Model:       desc.Name,
			Parameters:  input,
			OutputType:  outputType(output),
			OutputValue: output,
		},
		Model: desc,
		Input: input,
	}, nil
}

func outputType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case []any, []string:
		return "array"
	case bool:
		return "boolean"
	case float64, int, int64:
		return "number"
	default:
		return "object"
	}
}
