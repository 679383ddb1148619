package conversation

import (
	"context"

	"github.com/tbourn/go-catalog-bot/internal/domain"
	"github.com/tbourn/go-catalog-bot/internal/intent"
	"github.com/tbourn/go-catalog-bot/internal/transport"
)

// Input is what a handler sees: the event plus everything resolved for it.
type Input struct {
	Event   Event
	Session *domain.Session
	// Broker is nil for an identity with no catalog record.
	Broker *domain.Broker
	Intent intent.Intent
	Escape intent.Escape
}

// Handler processes one input and says what happens to the session.
type Handler func(ctx context.Context, in *Input) (Outcome, error)

type outcomeKind int

const (
	outcomeStay outcomeKind = iota
	outcomeAdvance
	outcomeFinish
)

// Outcome is a handler's verdict: replies plus the session transition.
type Outcome struct {
	Replies []transport.Reply
	kind    outcomeKind
	next    domain.Flow
}

// Stay leaves the session untouched.
func Stay(replies ...transport.Reply) Outcome {
	return Outcome{Replies: replies, kind: outcomeStay}
}

// Advance stores next as the session's flow, renewing its TTL.
func Advance(next domain.Flow, replies ...transport.Reply) Outcome {
	return Outcome{Replies: replies, kind: outcomeAdvance, next: next}
}

// Finish clears the session.
func Finish(replies ...transport.Reply) Outcome {
	return Outcome{Replies: replies, kind: outcomeFinish}
}

type stateKey struct {
	mode domain.Mode
	step domain.Step
}

// Router selects a handler. While a flow is active only the (mode, step)
// table applies; otherwise the classified action picks from the action table.
// The cancel escape is honored in every state.
type Router struct {
	flows    map[stateKey]Handler
	actions  map[intent.Action]Handler
	cancel   Handler
	finalize Handler
	fallback Handler
	invalid  Handler
}

// NewRouter returns a router whose unmatched inputs go to fallback (no flow)
// or invalid (active flow without a handler).
func NewRouter(fallback, invalid Handler) *Router {
	return &Router{
		flows:    make(map[stateKey]Handler),
		actions:  make(map[intent.Action]Handler),
		fallback: fallback,
		invalid:  invalid,
	}
}

// OnState registers h for mode/step.
func (r *Router) OnState(m domain.Mode, s domain.Step, h Handler) {
	r.flows[stateKey{m, s}] = h
}

// OnAction registers h for a classified action.
func (r *Router) OnAction(a intent.Action, h Handler) {
	r.actions[a] = h
}

// OnCancel registers the cancel escape handler.
func (r *Router) OnCancel(h Handler) { r.cancel = h }

// OnIdleFinalize registers the handler for done/skip outside any flow.
func (r *Router) OnIdleFinalize(h Handler) { r.finalize = h }

// Route picks the handler for sess and the escape token of text. in is only
// consulted when no flow is active.
func (r *Router) Route(sess *domain.Session, in intent.Intent, esc intent.Escape) Handler {
	if esc == intent.EscapeCancel && r.cancel != nil {
		return r.cancel
	}
	if sess.Active() {
		if h, ok := r.flows[stateKey{sess.Mode(), sess.Step()}]; ok {
			return h
		}
		return r.invalid
	}
	if (esc == intent.EscapeDone || esc == intent.EscapeSkip) && r.finalize != nil {
		return r.finalize
	}
	if h, ok := r.actions[in.Action]; ok {
		return h
	}
	return r.fallback
}

// Unrouted returns the known actions with no handler.
func (r *Router) Unrouted() []intent.Action {
	var out []intent.Action
	for _, a := range intent.Actions() {
		if _, ok := r.actions[a]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// Unhandled returns every declared mode/step without a handler.
func (r *Router) Unhandled() []string {
	var out []string
	for _, m := range []domain.Mode{
		domain.ModeOnboarding, domain.ModeNewItem, domain.ModeEditItem,
		domain.ModeEditProfile, domain.ModeConfirm, domain.ModeResetCredential,
	} {
		for _, s := range domain.DeclaredSteps(m) {
			if _, ok := r.flows[stateKey{m, s}]; !ok {
				out = append(out, string(m)+"/"+string(s))
			}
		}
	}
	return out
}
