// Package intent classifies free text into a closed set of catalog actions.
//
// Classification is only consulted when no conversation flow is active; an
// active flow interprets text itself. Classifiers are composable: a
// deterministic command table, a remote HTTP classifier, and a Chain that
// tries them in order.
package intent

import (
	"context"
	"errors"
	"strings"
)

// Action is the closed union of top-level commands.
type Action int

// Actions understood by the conversation engine.
const (
	ActionUnknown Action = iota
	ActionHelp
	ActionListItems
	ActionViewItem
	ActionShareItem
	ActionEditItem
	ActionDeleteItem
	ActionActivateItem
	ActionDisableItem
	ActionProfile
	ActionEditProfile
	ActionCreateItem
)

// wireNames are the action strings exchanged with remote classifiers.
var wireNames = map[Action]string{
	ActionHelp:         "help",
	ActionListItems:    "list_properties",
	ActionViewItem:     "view_property",
	ActionShareItem:    "share_property",
	ActionEditItem:     "edit_property",
	ActionDeleteItem:   "delete_property",
	ActionActivateItem: "activate_property",
	ActionDisableItem:  "disable_property",
	ActionProfile:      "profile",
	ActionEditProfile:  "editprofile",
	ActionCreateItem:   "create_property",
}

var byWireName = func() map[string]Action {
	m := make(map[string]Action, len(wireNames))
	for a, s := range wireNames {
		m[s] = a
	}
	return m
}()

// String returns the wire name of a, or "unknown".
func (a Action) String() string {
	if s, ok := wireNames[a]; ok {
		return s
	}
	return "unknown"
}

// ParseAction maps a wire string to an Action. Anything unrecognized,
// including the empty string, is ActionUnknown.
func ParseAction(s string) Action {
	if a, ok := byWireName[strings.ToLower(strings.TrimSpace(s))]; ok {
		return a
	}
	return ActionUnknown
}

// Actions returns every known action except ActionUnknown, in declaration
// order.
func Actions() []Action {
	out := make([]Action, 0, int(ActionCreateItem))
	for a := ActionHelp; a <= ActionCreateItem; a++ {
		out = append(out, a)
	}
	return out
}

// Filters narrow a list request.
type Filters struct {
	City     string
	BHK      int
	MinPrice float64
	MaxPrice float64
	Page     int
}

// Intent is a classified message.
type Intent struct {
	Action    Action
	SubjectID string
	Filters   Filters
	Recipient string
}

// ErrUnavailable is returned by classifiers that could not reach their
// backend.
var ErrUnavailable = errors.New("intent: classifier unavailable")

// Classifier maps text to an Intent. A classifier that understood nothing
// returns ActionUnknown with a nil error.
type Classifier interface {
	Classify(ctx context.Context, text string) (Intent, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, text string) (Intent, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, text string) (Intent, error) {
	return f(ctx, text)
}
