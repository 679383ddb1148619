package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestSession_NoneMode(t *testing.T) {
	var s *Session
	if s.Mode() != ModeNone || s.Step() != StepNone || s.Active() {
		t.Fatalf("nil session should be the none mode, got %s/%s", s.Mode(), s.Step())
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("nil session must validate: %v", err)
	}
}

func TestSession_EnvelopeRoundTrip_NewItem(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	in := Session{
		Identity: "+15550001",
		Flow: &NewItemFlow{
			Step:      StepAwaitingMedia,
			SubjectID: "7",
			PendingMedia: []MediaRef{
				{URL: "https://cdn/a.jpg", Kind: MediaImage, Order: 1},
				{URL: "https://cdn/b.mp4", Kind: MediaVideo, Order: 2},
			},
		},
		UpdatedAt: at,
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	_ = json.Unmarshal(b, &raw)
	if raw["mode"] != string(ModeNewItem) || raw["step"] != string(StepAwaitingMedia) {
		t.Fatalf("envelope mode/step = %v/%v", raw["mode"], raw["step"])
	}

	var out Session
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	f, ok := out.Flow.(*NewItemFlow)
	if !ok {
		t.Fatalf("flow type = %T; want *NewItemFlow", out.Flow)
	}
	if f.SubjectID != "7" || len(f.PendingMedia) != 2 || f.PendingMedia[1].Order != 2 {
		t.Fatalf("unexpected flow after round trip: %+v", f)
	}
	if !out.UpdatedAt.Equal(at) || out.Identity != "+15550001" {
		t.Fatalf("envelope fields lost: %+v", out)
	}
}

func TestSession_UnknownMode(t *testing.T) {
	var s Session
	err := json.Unmarshal([]byte(`{"identity":"x","mode":"haunted","data":{}}`), &s)
	if !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("want ErrUnknownMode, got %v", err)
	}
}

func TestValidateFlow(t *testing.T) {
	ok := []Flow{
		&OnboardingFlow{Step: StepAskName},
		&OnboardingFlow{Step: StepAskContact},
		&NewItemFlow{Step: StepAwaitingMedia},
		&EditItemFlow{Step: StepChooseField},
		&EditProfileFlow{Step: StepAwaitingValue},
		&ConfirmFlow{Step: StepAwaitingAnswer},
		&ResetCredentialFlow{Step: StepAwaitingValue},
	}
	for _, f := range ok {
		if err := ValidateFlow(f); err != nil {
			t.Fatalf("%T at %q should be valid: %v", f, f.CurrentStep(), err)
		}
	}

	bad := []Flow{
		&OnboardingFlow{},
		&NewItemFlow{Step: StepChooseField},
		&ConfirmFlow{Step: StepAwaitingValue},
		&ResetCredentialFlow{Step: StepAskName},
	}
	for _, f := range bad {
		if err := ValidateFlow(f); !errors.Is(err, ErrInvalidStep) {
			t.Fatalf("%T at %q: want ErrInvalidStep, got %v", f, f.CurrentStep(), err)
		}
	}
}

func TestDeclaredSteps_ReturnsCopy(t *testing.T) {
	steps := DeclaredSteps(ModeEditItem)
	steps[0] = "tampered"
	if DeclaredSteps(ModeEditItem)[0] != StepChooseField {
		t.Fatalf("DeclaredSteps must not expose internal slice")
	}
	if len(DeclaredSteps(ModeNone)) != 0 {
		t.Fatalf("none mode has no steps")
	}
}
