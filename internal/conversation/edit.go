package conversation

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tbourn/go-catalog-bot/internal/catalog"
	"github.com/tbourn/go-catalog-bot/internal/domain"
	"github.com/tbourn/go-catalog-bot/internal/transport"
)

// chooseField resolves a menu answer given as a number ("2") or a field
// name ("city").
func chooseField(answer string, menu []string) (string, bool) {
	a := strings.ToLower(strings.TrimSpace(answer))
	if n, err := strconv.Atoi(a); err == nil {
		if n >= 1 && n <= len(menu) {
			return menu[n-1], true
		}
		return "", false
	}
	for _, f := range menu {
		if a == f {
			return f, true
		}
	}
	return "", false
}

// coerceItemValue converts the raw answer for field into the value stored.
func coerceItemValue(field, raw string) (any, error) {
	v := strings.TrimSpace(raw)
	switch field {
	case catalog.FieldPrice:
		p, ok := catalog.ParsePrice(v)
		if !ok {
			return nil, invalid("⚠️ Please enter a valid price, e.g. 45000 or 45k.")
		}
		return p, nil
	case catalog.FieldBHK:
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, invalid("⚠️ Please enter a valid number.")
		}
		return n, nil
	case catalog.FieldFurnishing:
		f := catalog.ParseFurnishing(v)
		if f == "" {
			return nil, invalid("⚠️ Reply with unfurnished, semi or fully.")
		}
		return f, nil
	case catalog.FieldCity:
		if v == "" || utf8.RuneCountInString(v) > 100 {
			return nil, invalid("⚠️ Please send the city name.")
		}
		return titleCase.String(v), nil
	case catalog.FieldDescription:
		if v == "" {
			return nil, invalid("⚠️ Please send the new description.")
		}
		return v, nil
	default:
		return nil, invariantf("unknown item field %q", field)
	}
}

func displayValue(field string, v any, currency string) string {
	switch t := v.(type) {
	case float64:
		if field == catalog.FieldPrice {
			return catalog.FormatPrice(t, currency)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case string:
		return t
	default:
		return ""
	}
}

func (e *Engine) editItemChoose(ctx context.Context, in *Input) (Outcome, error) {
	f, err := flowOf[*domain.EditItemFlow](in)
	if err != nil {
		return Outcome{}, err
	}
	b, err := requireBroker(in)
	if err != nil {
		return Outcome{}, err
	}
	if _, err := e.deps.Catalog.GetItem(ctx, b.ID, f.SubjectID); err != nil {
		return Outcome{}, err
	}
	field, ok := chooseField(text(in), itemMenu)
	if !ok {
		return Outcome{}, invalidf(msgInvalidChoice, len(itemMenu))
	}
	next := &domain.EditItemFlow{Step: domain.StepAwaitingValue, SubjectID: f.SubjectID, Field: field}
	return Advance(next, transport.Text(valuePrompt(field))), nil
}

func (e *Engine) editItemValue(ctx context.Context, in *Input) (Outcome, error) {
	f, err := flowOf[*domain.EditItemFlow](in)
	if err != nil {
		return Outcome{}, err
	}
	b, err := requireBroker(in)
	if err != nil {
		return Outcome{}, err
	}
	it, err := e.deps.Catalog.GetItem(ctx, b.ID, f.SubjectID)
	if err != nil {
		return Outcome{}, err
	}
	v, err := coerceItemValue(f.Field, in.Event.Text)
	if err != nil {
		return Outcome{}, err
	}
	if err := e.deps.Catalog.UpdateItemField(ctx, b.ID, f.SubjectID, f.Field, v); err != nil {
		return Outcome{}, commitErr("update item", err)
	}
	return Finish(transport.Textf("✅ Updated %s for %s | %s to %s.",
		f.Field, it.SubjectID, it.Title, displayValue(f.Field, v, it.Currency))), nil
}

func (e *Engine) editProfileChoose(_ context.Context, in *Input) (Outcome, error) {
	if _, err := flowOf[*domain.EditProfileFlow](in); err != nil {
		return Outcome{}, err
	}
	if _, err := requireBroker(in); err != nil {
		return Outcome{}, err
	}
	field, ok := chooseField(text(in), profileMenu)
	if !ok {
		return Outcome{}, invalidf(msgInvalidChoice, len(profileMenu))
	}
	next := &domain.EditProfileFlow{Step: domain.StepAwaitingValue, Field: field}
	return Advance(next, transport.Text(valuePrompt(field))), nil
}

func (e *Engine) editProfileValue(ctx context.Context, in *Input) (Outcome, error) {
	f, err := flowOf[*domain.EditProfileFlow](in)
	if err != nil {
		return Outcome{}, err
	}
	b, err := requireBroker(in)
	if err != nil {
		return Outcome{}, err
	}
	v := text(in)
	switch f.Field {
	case catalog.FieldName:
		if v == "" || utf8.RuneCountInString(v) > maxNameLen {
			return Outcome{}, invalid(msgAskName)
		}
	case catalog.FieldEmail:
		if err := e.validate.Var(v, "required,email"); err != nil {
			return Outcome{}, invalid("⚠️ That doesn't look like an email address. Please try again.")
		}
	default:
		return Outcome{}, invariantf("unknown profile field %q", f.Field)
	}
	if err := e.deps.Catalog.UpdateBrokerField(ctx, b.ID, f.Field, v); err != nil {
		return Outcome{}, commitErr("update profile", err)
	}
	return Finish(transport.Textf("✅ Your %s is now %s.", f.Field, v)), nil
}
