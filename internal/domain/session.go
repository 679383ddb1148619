// Package domain defines the core models of the catalog bot: the per-identity
// conversation session and the catalog records persisted through GORM.
//
// A Session is a tagged variant keyed by Mode. Each mode has its own Flow type
// that carries only the fields its steps need, so a handler for one mode can
// never read state that belongs to another. The absence of a session is the
// "none" mode.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Mode is the top-level discriminator of conversation state.
type Mode string

// Conversation modes.
const (
	ModeNone            Mode = "none"
	ModeOnboarding      Mode = "onboarding"
	ModeNewItem         Mode = "new_item"
	ModeEditItem        Mode = "edit_item"
	ModeEditProfile     Mode = "edit_profile"
	ModeConfirm         Mode = "confirm"
	ModeResetCredential Mode = "reset_credential"
)

// Step is the mode-specific sub-state. A step is only meaningful relative to
// the mode it belongs to.
type Step string

// Declared steps.
const (
	StepNone           Step = ""
	StepAskName        Step = "ask_name"
	StepAskContact     Step = "ask_contact"
	StepAwaitingMedia  Step = "awaiting_media"
	StepChooseField    Step = "choose_field"
	StepAwaitingValue  Step = "awaiting_value"
	StepAwaitingAnswer Step = "awaiting_answer"
)

var (
	// ErrUnknownMode is returned when a stored session names a mode this
	// build does not know.
	ErrUnknownMode = errors.New("unknown session mode")

	// ErrInvalidStep is returned when a flow's step is not one of the steps
	// declared for its mode (including an empty step).
	ErrInvalidStep = errors.New("step not declared for mode")
)

// declaredSteps lists, per mode, the steps a flow of that mode may be in.
var declaredSteps = map[Mode][]Step{
	ModeOnboarding:      {StepAskName, StepAskContact},
	ModeNewItem:         {StepAwaitingMedia},
	ModeEditItem:        {StepChooseField, StepAwaitingValue},
	ModeEditProfile:     {StepChooseField, StepAwaitingValue},
	ModeConfirm:         {StepAwaitingAnswer},
	ModeResetCredential: {StepAwaitingValue},
}

// DeclaredSteps returns the steps declared for m, or nil for ModeNone and
// unknown modes.
func DeclaredSteps(m Mode) []Step {
	steps := declaredSteps[m]
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

// Flow is the state of one active conversation mode. The set of
// implementations is closed to this package.
type Flow interface {
	Mode() Mode
	CurrentStep() Step
	sealed()
}

// OnboardingFlow registers an unseen identity as a broker.
type OnboardingFlow struct {
	Step Step   `json:"step"`
	Name string `json:"name,omitempty"`
}

// MediaRef is an uploaded attachment collected for an item under construction.
type MediaRef struct {
	URL   string `json:"url"`
	Kind  string `json:"kind"`
	Order int    `json:"order"`
}

// NewItemFlow collects media for a freshly created draft item.
type NewItemFlow struct {
	Step         Step       `json:"step"`
	SubjectID    string     `json:"subject_id"`
	StagedText   string     `json:"staged_text,omitempty"`
	PendingMedia []MediaRef `json:"pending_media,omitempty"`
}

// EditItemFlow edits one attribute of an existing item.
type EditItemFlow struct {
	Step      Step   `json:"step"`
	SubjectID string `json:"subject_id"`
	Field     string `json:"field,omitempty"`
}

// EditProfileFlow edits one attribute of the broker's own profile.
type EditProfileFlow struct {
	Step  Step   `json:"step"`
	Field string `json:"field,omitempty"`
}

// ConfirmFlow waits for a yes/no answer before a destructive action.
type ConfirmFlow struct {
	Step      Step   `json:"step"`
	SubjectID string `json:"subject_id"`
	Action    string `json:"action"`
}

// ResetCredentialFlow waits for a new password. It is only entered through
// the out-of-band reset trigger.
type ResetCredentialFlow struct {
	Step Step `json:"step"`
}

func (f *OnboardingFlow) Mode() Mode      { return ModeOnboarding }
func (f *NewItemFlow) Mode() Mode         { return ModeNewItem }
func (f *EditItemFlow) Mode() Mode        { return ModeEditItem }
func (f *EditProfileFlow) Mode() Mode     { return ModeEditProfile }
func (f *ConfirmFlow) Mode() Mode         { return ModeConfirm }
func (f *ResetCredentialFlow) Mode() Mode { return ModeResetCredential }

func (f *OnboardingFlow) CurrentStep() Step      { return f.Step }
func (f *NewItemFlow) CurrentStep() Step         { return f.Step }
func (f *EditItemFlow) CurrentStep() Step        { return f.Step }
func (f *EditProfileFlow) CurrentStep() Step     { return f.Step }
func (f *ConfirmFlow) CurrentStep() Step         { return f.Step }
func (f *ResetCredentialFlow) CurrentStep() Step { return f.Step }

func (*OnboardingFlow) sealed()      {}
func (*NewItemFlow) sealed()         {}
func (*EditItemFlow) sealed()        {}
func (*EditProfileFlow) sealed()     {}
func (*ConfirmFlow) sealed()         {}
func (*ResetCredentialFlow) sealed() {}

// ValidateFlow reports whether f is in one of its mode's declared steps.
func ValidateFlow(f Flow) error {
	if f == nil {
		return nil
	}
	steps, ok := declaredSteps[f.Mode()]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, f.Mode())
	}
	for _, s := range steps {
		if s == f.CurrentStep() {
			return nil
		}
	}
	return fmt.Errorf("%w: mode=%s step=%q", ErrInvalidStep, f.Mode(), f.CurrentStep())
}

// Session is the mutable conversation state of one identity. A nil *Session
// (or one with a nil Flow) is the "none" mode.
type Session struct {
	Identity  string
	Flow      Flow
	UpdatedAt time.Time
}

// Mode returns the session's mode, ModeNone for an absent session.
func (s *Session) Mode() Mode {
	if s == nil || s.Flow == nil {
		return ModeNone
	}
	return s.Flow.Mode()
}

// Step returns the session's step, StepNone for an absent session.
func (s *Session) Step() Step {
	if s == nil || s.Flow == nil {
		return StepNone
	}
	return s.Flow.CurrentStep()
}

// Active reports whether the session governs dispatch.
func (s *Session) Active() bool { return s.Mode() != ModeNone }

// Validate checks the mode/step invariant.
func (s *Session) Validate() error {
	if s == nil {
		return nil
	}
	return ValidateFlow(s.Flow)
}

// sessionEnvelope is the serialized form shared by every session store.
type sessionEnvelope struct {
	Identity  string          `json:"identity"`
	Mode      Mode            `json:"mode"`
	Step      Step            `json:"step"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MarshalJSON encodes the session as a mode-tagged envelope.
func (s Session) MarshalJSON() ([]byte, error) {
	if s.Flow == nil {
		return nil, fmt.Errorf("%w: session has no flow", ErrUnknownMode)
	}
	data, err := json.Marshal(s.Flow)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sessionEnvelope{
		Identity:  s.Identity,
		Mode:      s.Flow.Mode(),
		Step:      s.Flow.CurrentStep(),
		Data:      data,
		UpdatedAt: s.UpdatedAt,
	})
}

// UnmarshalJSON decodes a mode-tagged envelope into the matching Flow type.
// The flow's own step is authoritative; the envelope step is informational.
func (s *Session) UnmarshalJSON(b []byte) error {
	var env sessionEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	flow, err := newFlow(env.Mode)
	if err != nil {
		return err
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, flow); err != nil {
			return fmt.Errorf("decode %s flow: %w", env.Mode, err)
		}
	}
	s.Identity = env.Identity
	s.Flow = flow
	s.UpdatedAt = env.UpdatedAt
	return nil
}

func newFlow(m Mode) (Flow, error) {
	switch m {
	case ModeOnboarding:
		return &OnboardingFlow{}, nil
	case ModeNewItem:
		return &NewItemFlow{}, nil
	case ModeEditItem:
		return &EditItemFlow{}, nil
	case ModeEditProfile:
		return &EditProfileFlow{}, nil
	case ModeConfirm:
		return &ConfirmFlow{}, nil
	case ModeResetCredential:
		return &ResetCredentialFlow{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, m)
	}
}
