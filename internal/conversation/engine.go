// Package conversation is the per-identity dialog state machine.
//
// Every inbound event and every debounced media flush for an identity runs
// under that identity's lock: load the session, pick a handler (by mode and
// step while a flow is active, by classified action otherwise), apply the
// handler's Outcome to the session store, and return the replies. Errors
// from handlers are mapped to replies in one place, see Engine.fail.
package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/tbourn/go-catalog-bot/internal/catalog"
	"github.com/tbourn/go-catalog-bot/internal/domain"
	"github.com/tbourn/go-catalog-bot/internal/hosting"
	"github.com/tbourn/go-catalog-bot/internal/intent"
	"github.com/tbourn/go-catalog-bot/internal/media"
	"github.com/tbourn/go-catalog-bot/internal/observability"
	"github.com/tbourn/go-catalog-bot/internal/session"
	"github.com/tbourn/go-catalog-bot/internal/transport"
)

// Defaults for Options.
const (
	DefaultExternalTimeout = 10 * time.Second
	MinPasswordLen         = 6
)

// Event is one normalized inbound message.
type Event struct {
	MessageID  string
	Identity   string
	Text       string
	Media      []media.Item
	Transport  string
	ReceivedAt time.Time
}

// MediaHost hosts a batch of attachments. *hosting.Pipeline implements it.
type MediaHost interface {
	Store(ctx context.Context, identity string, items []media.Item) []hosting.Result
}

// Deps are the engine's collaborators.
type Deps struct {
	Sessions   session.Store
	Catalog    catalog.Store
	Extractor  catalog.Extractor
	Classifier intent.Classifier
	Hosting    MediaHost
	// Sender delivers replies produced outside a request: upload reports,
	// idle nudges and the credential reset prompt.
	Sender transport.Sender
}

// Options tune timing. Zero values take defaults.
type Options struct {
	SessionTTL      time.Duration
	ExternalTimeout time.Duration
	MediaQuiet      time.Duration
	MediaIdle       time.Duration
	BcryptCost      int
}

// Engine is safe for concurrent use.
type Engine struct {
	deps     Deps
	opts     Options
	locks    *Locks
	agg      *media.Aggregator
	router   *Router
	validate *validator.Validate
	tracer   trace.Tracer
	now      func() time.Time
}

// New builds an engine and starts its media aggregator. Call Close to stop
// pending timers.
func New(deps Deps, opts Options) *Engine {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = session.DefaultTTL
	}
	if opts.ExternalTimeout <= 0 {
		opts.ExternalTimeout = DefaultExternalTimeout
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if deps.Extractor == nil {
		deps.Extractor = catalog.RuleExtractor{}
	}
	if deps.Classifier == nil {
		deps.Classifier = intent.CommandClassifier{}
	}
	if deps.Sender == nil {
		deps.Sender = transport.LogSender{}
	}
	e := &Engine{
		deps:     deps,
		opts:     opts,
		locks:    NewLocks(),
		validate: validator.New(),
		tracer:   otel.Tracer("github.com/tbourn/go-catalog-bot/internal/conversation"),
		now:      time.Now,
	}
	e.agg = media.NewAggregator(media.Options{
		Quiet:   opts.MediaQuiet,
		Idle:    opts.MediaIdle,
		OnFlush: e.flushMedia,
		OnIdle:  e.nudge,
	})
	e.router = e.routes()
	return e
}

// Close stops the aggregator, dropping batches that have not flushed.
func (e *Engine) Close() { e.agg.Stop() }

// Router exposes the dispatch table.
func (e *Engine) Router() *Router { return e.router }

// Handle processes one event and returns the synchronous replies. The
// returned error is non-nil only when the resulting session could not be
// persisted; the replies then already carry an apology.
func (e *Engine) Handle(ctx context.Context, ev Event) ([]transport.Reply, error) {
	ctx, span := e.tracer.Start(ctx, "conversation.Handle",
		trace.WithAttributes(attribute.String("chat.transport", ev.Transport)))
	defer span.End()

	unlock := e.locks.Lock(ev.Identity)
	defer unlock()

	lg := zerolog.Ctx(ctx).With().Str("identity", ev.Identity).Logger()
	ctx = lg.WithContext(ctx)

	sess, err := e.deps.Sessions.Get(ctx, ev.Identity)
	if err != nil {
		lg.Warn().Err(err).Msg("session load failed; treating as no session")
		sess = nil
	}
	in := &Input{Event: ev, Session: sess, Escape: intent.ParseEscape(ev.Text)}
	span.SetAttributes(attribute.String("chat.mode", string(sess.Mode())), attribute.String("chat.step", string(sess.Step())))

	if err := sess.Validate(); err != nil {
		return e.fail(ctx, in, invariantf("%v", err))
	}

	hctx, cancel := context.WithTimeout(ctx, e.opts.ExternalTimeout)
	defer cancel()

	h, err := e.dispatch(hctx, in)
	if err != nil {
		return e.fail(ctx, in, err)
	}
	out, err := h(hctx, in)
	if err != nil {
		span.RecordError(err)
		return e.fail(ctx, in, err)
	}
	if err := e.apply(ctx, ev.Identity, sess, out); err != nil {
		span.SetStatus(codes.Error, "session write failed")
		lg.Error().Err(err).Msg("session write failed")
		return append(out.Replies, transport.Text(msgApology)), err
	}
	return out.Replies, nil
}

// dispatch resolves the broker and, when no flow is active, the intent, and
// returns the handler.
func (e *Engine) dispatch(ctx context.Context, in *Input) (Handler, error) {
	b, err := e.deps.Catalog.GetBroker(ctx, in.Event.Identity)
	switch {
	case err == nil:
		in.Broker = b
	case errors.Is(err, catalog.ErrNotFound):
	default:
		return nil, err
	}

	if !in.Session.Active() {
		if in.Broker == nil {
			return e.startOnboarding, nil
		}
		if len(in.Event.Media) > 0 {
			return e.mediaOutsideFlow, nil
		}
		if in.Escape == intent.EscapeNone {
			it, err := e.deps.Classifier.Classify(ctx, in.Event.Text)
			if err != nil {
				return nil, err
			}
			in.Intent = it
		}
	}
	return e.router.Route(in.Session, in.Intent, in.Escape), nil
}

// apply persists the outcome's transition.
func (e *Engine) apply(ctx context.Context, identity string, prev *domain.Session, out Outcome) error {
	if out.kind != outcomeStay && prev.Mode() == domain.ModeNewItem {
		if _, still := out.next.(*domain.NewItemFlow); !still {
			e.agg.Cancel(identity)
		}
	}
	switch out.kind {
	case outcomeAdvance:
		s := &domain.Session{Identity: identity, Flow: out.next, UpdatedAt: e.now()}
		if err := s.Validate(); err != nil {
			return invariantf("handler produced %v", err)
		}
		if err := e.deps.Sessions.Set(ctx, identity, s, e.opts.SessionTTL); err != nil {
			return err
		}
		observability.RecordTransition(string(s.Mode()), string(s.Step()))
	case outcomeFinish:
		if err := e.deps.Sessions.Clear(ctx, identity); err != nil {
			return err
		}
		if prev.Active() {
			observability.RecordTransition(string(domain.ModeNone), "")
		}
	}
	return nil
}

// fail maps a handler error to replies and the matching session effect.
func (e *Engine) fail(ctx context.Context, in *Input, err error) ([]transport.Reply, error) {
	lg := zerolog.Ctx(ctx).With().
		Str("mode", string(in.Session.Mode())).
		Str("step", string(in.Session.Step())).
		Logger()

	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return []transport.Reply{transport.Text(ve.Prompt)}, nil

	case errors.Is(err, ErrInvariant):
		lg.Error().Err(err).Msg("conversation defect; clearing session")
		return []transport.Reply{transport.Text(msgStale)}, e.clear(ctx, in.Event.Identity)

	case errors.Is(err, catalog.ErrNotFound):
		if in.Session.Active() {
			return []transport.Reply{transport.Text(msgStale)}, e.clear(ctx, in.Event.Identity)
		}
		return []transport.Reply{transport.Text(msgNotFound)}, nil

	default:
		lg.Warn().Err(err).Msg("dependency failed")
		if errors.Is(err, ErrCommit) {
			return []transport.Reply{transport.Text(msgApology)}, e.clear(ctx, in.Event.Identity)
		}
		return []transport.Reply{transport.Text(msgApology)}, nil
	}
}

func (e *Engine) clear(ctx context.Context, identity string) error {
	e.agg.Cancel(identity)
	if err := e.deps.Sessions.Clear(ctx, identity); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("session clear failed")
		return err
	}
	observability.RecordTransition(string(domain.ModeNone), "")
	return nil
}

// StartCredentialReset puts identity's session into the reset-credential
// flow and delivers the prompt. It returns catalog.ErrNotFound for an
// unknown identity.
func (e *Engine) StartCredentialReset(ctx context.Context, identity string) error {
	ctx, span := e.tracer.Start(ctx, "conversation.StartCredentialReset")
	defer span.End()

	unlock := e.locks.Lock(identity)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, e.opts.ExternalTimeout)
	defer cancel()

	if _, err := e.deps.Catalog.GetBroker(ctx, identity); err != nil {
		return err
	}
	e.agg.Cancel(identity)
	s := &domain.Session{
		Identity:  identity,
		Flow:      &domain.ResetCredentialFlow{Step: domain.StepAwaitingValue},
		UpdatedAt: e.now(),
	}
	if err := e.deps.Sessions.Set(ctx, identity, s, e.opts.SessionTTL); err != nil {
		return err
	}
	observability.RecordTransition(string(domain.ModeResetCredential), string(domain.StepAwaitingValue))
	return e.deps.Sender.Send(ctx, identity, transport.Textf(msgResetPrompt, MinPasswordLen))
}

func (e *Engine) routes() *Router {
	r := NewRouter(e.unknown, e.invalidState)
	r.OnCancel(e.cancel)
	r.OnIdleFinalize(e.nothingToFinalize)

	r.OnAction(intent.ActionHelp, e.help)
	r.OnAction(intent.ActionListItems, e.listItems)
	r.OnAction(intent.ActionViewItem, e.viewItem)
	r.OnAction(intent.ActionShareItem, e.shareItem)
	r.OnAction(intent.ActionEditItem, e.startEditItem)
	r.OnAction(intent.ActionDeleteItem, e.startDelete)
	r.OnAction(intent.ActionActivateItem, e.setStatus(domain.StatusActive))
	r.OnAction(intent.ActionDisableItem, e.setStatus(domain.StatusDisabled))
	r.OnAction(intent.ActionProfile, e.profile)
	r.OnAction(intent.ActionEditProfile, e.startEditProfile)
	r.OnAction(intent.ActionCreateItem, e.createItem)

	r.OnState(domain.ModeOnboarding, domain.StepAskName, e.onboardingName)
	r.OnState(domain.ModeOnboarding, domain.StepAskContact, e.onboardingContact)
	r.OnState(domain.ModeNewItem, domain.StepAwaitingMedia, e.awaitingMedia)
	r.OnState(domain.ModeEditItem, domain.StepChooseField, e.editItemChoose)
	r.OnState(domain.ModeEditItem, domain.StepAwaitingValue, e.editItemValue)
	r.OnState(domain.ModeEditProfile, domain.StepChooseField, e.editProfileChoose)
	r.OnState(domain.ModeEditProfile, domain.StepAwaitingValue, e.editProfileValue)
	r.OnState(domain.ModeConfirm, domain.StepAwaitingAnswer, e.confirmAnswer)
	r.OnState(domain.ModeResetCredential, domain.StepAwaitingValue, e.resetCredential)
	return r
}

// flowOf asserts the session's flow type.
func flowOf[T domain.Flow](in *Input) (T, error) {
	f, ok := in.Session.Flow.(T)
	if !ok {
		var zero T
		return zero, invariantf("flow %T in mode %s", in.Session.Flow, in.Session.Mode())
	}
	return f, nil
}

func requireBroker(in *Input) (*domain.Broker, error) {
	if in.Broker == nil {
		return nil, catalog.ErrNotFound
	}
	return in.Broker, nil
}

func text(in *Input) string { return strings.TrimSpace(in.Event.Text) }
