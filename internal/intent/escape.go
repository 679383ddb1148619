package intent

import "strings"

// Escape is a control word that is recognized before any classification.
type Escape int

// Escape tokens.
const (
	EscapeNone Escape = iota
	EscapeDone
	EscapeSkip
	EscapeCancel
)

// ParseEscape reports which escape token text is, if any. Matching is exact
// on the trimmed, lower-cased message.
func ParseEscape(text string) Escape {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "done", "finish", "finished":
		return EscapeDone
	case "skip":
		return EscapeSkip
	case "cancel", "stop", "exit":
		return EscapeCancel
	default:
		return EscapeNone
	}
}
