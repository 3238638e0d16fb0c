package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/elishakaranja/Mindset-coach/internal/common"
)

// Role is the closed speaker tag of a transcript turn. Provider vocabularies
// ("model", "assistant", ...) are translated inside each adapter.
type Role uint8

const (
	RoleUser Role = iota + 1
	RoleAssistant
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

type Turn struct {
	Role Role
	Text string
}

// Provider produces one complete reply. instruction conditions the model,
// transcript is the prior conversation oldest first, prompt is the live user
// message. Implementations do not retry.
type Provider interface {
	Name() string
	Complete(ctx context.Context, instruction string, transcript []Turn, prompt string) (string, error)
}

// ErrEmptyReply is the cause attached when a provider answers with no text.
// Complete and a fully drained Stream fail with it alike.
var ErrEmptyReply = errors.New("empty response")

// ModelError is the single failure type surfaced by adapters. It matches
// common.ErrModel and its cause with errors.Is.
type ModelError struct {
	Provider string
	Err      error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ModelError) Unwrap() []error { return []error{common.ErrModel, e.Err} }

func modelErr(provider string, err error) error {
	return &ModelError{Provider: provider, Err: err}
}
