package conversation

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/tbourn/go-catalog-bot/internal/domain"
	"github.com/tbourn/go-catalog-bot/internal/transport"
)

const confirmDelete = "delete"

func (e *Engine) confirmAnswer(ctx context.Context, in *Input) (Outcome, error) {
	f, err := flowOf[*domain.ConfirmFlow](in)
	if err != nil {
		return Outcome{}, err
	}
	if f.Action != confirmDelete {
		return Outcome{}, invariantf("unknown confirm action %q", f.Action)
	}
	b, err := requireBroker(in)
	if err != nil {
		return Outcome{}, err
	}
	switch strings.ToLower(text(in)) {
	case "yes", "y":
		if err := e.deps.Catalog.DeleteItem(ctx, b.ID, f.SubjectID); err != nil {
			return Outcome{}, commitErr("delete item", err)
		}
		return Finish(transport.Textf("🗑 Item %s deleted.", f.SubjectID)), nil
	case "no", "n":
		return Finish(transport.Textf("%s Item %s was kept.", msgCancelled, f.SubjectID)), nil
	default:
		return Outcome{}, invalid(msgConfirmRetry)
	}
}

// resetCredential stores a bcrypt hash of the new password. The flow is only
// entered through StartCredentialReset.
func (e *Engine) resetCredential(ctx context.Context, in *Input) (Outcome, error) {
	if _, err := flowOf[*domain.ResetCredentialFlow](in); err != nil {
		return Outcome{}, err
	}
	b, err := requireBroker(in)
	if err != nil {
		return Outcome{}, err
	}
	pw := text(in)
	if utf8.RuneCountInString(pw) < MinPasswordLen {
		return Outcome{}, invalidf(msgResetShort, MinPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), e.opts.BcryptCost)
	if err != nil {
		return Outcome{}, invalid("⚠️ That password is too long. Please choose a shorter one.")
	}
	if err := e.deps.Catalog.SetBrokerPassword(ctx, b.ID, string(hash)); err != nil {
		return Outcome{}, commitErr("set password", err)
	}
	return Finish(transport.Text(msgResetDone)), nil
}
