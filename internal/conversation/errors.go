package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input the current step cannot accept. The user is
	// re-prompted and the session is left unchanged.
	ErrValidation = errors.New("conversation: invalid input")

	// ErrInvariant marks a state the engine should never observe, such as a
	// flow of the wrong type for its mode. It is logged as a defect and the
	// session is cleared.
	ErrInvariant = errors.New("conversation: invariant violated")

	// ErrCommit marks a dependency failure during the terminal step of a
	// flow. The session is cleared along with the apology.
	ErrCommit = errors.New("conversation: commit failed")
)

// ValidationError carries the re-prompt shown for rejected input.
type ValidationError struct {
	Prompt string
}

func (e *ValidationError) Error() string { return "invalid input: " + e.Prompt }

// Unwrap makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(prompt string) error { return &ValidationError{Prompt: prompt} }

func invalidf(format string, args ...any) error {
	return &ValidationError{Prompt: fmt.Sprintf(format, args...)}
}

func commitErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCommit, op, err)
}

func invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
