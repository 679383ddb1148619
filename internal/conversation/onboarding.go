package conversation

import (
	"context"
	"unicode/utf8"

	"github.com/tbourn/go-catalog-bot/internal/domain"
	"github.com/tbourn/go-catalog-bot/internal/intent"
	"github.com/tbourn/go-catalog-bot/internal/transport"
)

const maxNameLen = 100

func (e *Engine) startOnboarding(_ context.Context, _ *Input) (Outcome, error) {
	return Advance(&domain.OnboardingFlow{Step: domain.StepAskName}, transport.Text(msgWelcome)), nil
}

func (e *Engine) onboardingName(_ context.Context, in *Input) (Outcome, error) {
	if _, err := flowOf[*domain.OnboardingFlow](in); err != nil {
		return Outcome{}, err
	}
	name := text(in)
	if name == "" || in.Escape != intent.EscapeNone || utf8.RuneCountInString(name) > maxNameLen {
		return Outcome{}, invalid(msgAskName)
	}
	next := &domain.OnboardingFlow{Step: domain.StepAskContact, Name: name}
	return Advance(next, transport.Textf(msgAskContact, name)), nil
}

func (e *Engine) onboardingContact(ctx context.Context, in *Input) (Outcome, error) {
	f, err := flowOf[*domain.OnboardingFlow](in)
	if err != nil {
		return Outcome{}, err
	}
	var email string
	if in.Escape != intent.EscapeSkip {
		contact := text(in)
		if contact == "" {
			return Outcome{}, invalid(msgContactEmpty)
		}
		// Anything that is not an email (an alternate number, a note) is
		// accepted and not stored.
		if e.validate.Var(contact, "email") == nil {
			email = contact
		}
	}
	b, err := e.deps.Catalog.CreateBroker(ctx, in.Event.Identity, f.Name, email)
	if err != nil {
		return Outcome{}, commitErr("create broker", err)
	}
	replies := []transport.Reply{transport.Textf(msgRegistered, b.Name, b.BrokerCode)}
	if email == "" && in.Escape != intent.EscapeSkip {
		replies = append(replies, transport.Text(msgNoEmailSaved))
	}
	return Finish(append(replies, transport.Text(helpText))...), nil
}
