package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbourn/go-catalog-bot/internal/catalog"
	"github.com/tbourn/go-catalog-bot/internal/domain"
	"github.com/tbourn/go-catalog-bot/internal/transport"
	"github.com/tbourn/go-catalog-bot/internal/utils"
)

// PageSize is the number of items per list page.
const PageSize = 10

func (e *Engine) help(_ context.Context, _ *Input) (Outcome, error) {
	return Stay(transport.Text(helpText)), nil
}

func (e *Engine) unknown(_ context.Context, _ *Input) (Outcome, error) {
	return Stay(transport.Text(msgUnknown)), nil
}

func (e *Engine) invalidState(_ context.Context, in *Input) (Outcome, error) {
	return Outcome{}, invariantf("no handler for %s/%s", in.Session.Mode(), in.Session.Step())
}

func (e *Engine) cancel(_ context.Context, in *Input) (Outcome, error) {
	if !in.Session.Active() {
		return Stay(transport.Text(msgNothingCancel)), nil
	}
	return Finish(transport.Text(msgCancelled)), nil
}

func (e *Engine) nothingToFinalize(_ context.Context, _ *Input) (Outcome, error) {
	return Stay(transport.Text(msgNothingFinal)), nil
}

func (e *Engine) mediaOutsideFlow(_ context.Context, _ *Input) (Outcome, error) {
	return Stay(transport.Text(msgNoCreation)), nil
}

// subject returns the item id named by the intent or a validation error
// showing the command's usage.
func subject(in *Input, command string) (string, error) {
	if in.Intent.SubjectID == "" {
		return "", invalidf(msgMissingID, command)
	}
	return in.Intent.SubjectID, nil
}

func (e *Engine) listItems(ctx context.Context, in *Input) (Outcome, error) {
	b, err := requireBroker(in)
	if err != nil {
		return Outcome{}, err
	}
	f := in.Intent.Filters
	filter := catalog.ItemFilter{City: f.City, BHK: f.BHK, MinPrice: f.MinPrice, MaxPrice: f.MaxPrice}
	page := max(f.Page, 1)
	items, total, err := e.deps.Catalog.ListItems(ctx, b.ID, filter, (page-1)*PageSize, PageSize)
	if err != nil {
		return Outcome{}, fmt.Errorf("list items: %w", err)
	}
	if total == 0 {
		if filter != (catalog.ItemFilter{}) {
			return Stay(transport.Text(msgNoMatches)), nil
		}
		return Stay(transport.Text(msgNoItems)), nil
	}
	w := utils.Paginate(page, PageSize, total)
	if !w.Exists() {
		return Stay(transport.Textf("⚠️ Page %d does not exist. You have %d page(s).", w.Page, w.Pages)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Your items (Page %d/%d):\n", w.Page, w.Pages)
	for _, it := range items {
		city := it.City
		if city == "" {
			city = "-"
		}
		fmt.Fprintf(&sb, "\n[%s] | %s | %s | %s", it.SubjectID, it.Title, city, it.Status)
	}
	if w.HasNext() {
		fmt.Fprintf(&sb, "\n\n👉 Reply 'list %d' for next page", w.Page+1)
	}
	return Stay(transport.Text(sb.String())), nil
}

func (e *Engine) viewItem(ctx context.Context, in *Input) (Outcome, error) {
	b, err := requireBroker(in)
	if err != nil {
		return Outcome{}, err
	}
	id, err := subject(in, "view")
	if err != nil {
		return Outcome{}, err
	}
	it, err := e.deps.Catalog.GetItem(ctx, b.ID, id)
	if err != nil {
		return Outcome{}, err
	}
	assets, err := e.deps.Catalog.ListMedia(ctx, it.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("list media: %w", err)
	}
	replies := []transport.Reply{transport.Text(detailLines(it))}
	for _, a := range assets {
		replies = append(replies, transport.Media(msgMediaCaption, a.StorageURL, a.MediaType))
	}
	return Stay(replies...), nil
}

func (e *Engine) shareItem(ctx context.Context, in *Input) (Outcome, error) {
	b, err := requireBroker(in)
	if err != nil {
		return Outcome{}, err
	}
	id, err := subject(in, "share")
	if err != nil {
		return Outcome{}, err
	}
	it, err := e.deps.Catalog.GetItem(ctx, b.ID, id)
	if err != nil {
		return Outcome{}, err
	}
	msg := shareText(it, b)
	if to := in.Intent.Recipient; to != "" {
		if err := e.deps.Sender.Send(ctx, to, transport.Text(msg)); err != nil {
			return Outcome{}, fmt.Errorf("share to %s: %w", to, err)
		}
		return Stay(transport.Textf("✅ Shared %s with %s.", itemLabel(it), to)), nil
	}
	return Stay(transport.Text("Forward this to your client 👇"), transport.Text(msg)), nil
}

func (e *Engine) setStatus(status string) Handler {
	return func(ctx context.Context, in *Input) (Outcome, error) {
		b, err := requireBroker(in)
		if err != nil {
			return Outcome{}, err
		}
		command := "activate"
		if status == domain.StatusDisabled {
			command = "disable"
		}
		id, err := subject(in, command)
		if err != nil {
			return Outcome{}, err
		}
		it, err := e.deps.Catalog.SetItemStatus(ctx, b.ID, id, status)
		if err != nil {
			return Outcome{}, err
		}
		if status == domain.StatusActive {
			return Stay(transport.Textf("✅ %s | %s is now active", it.SubjectID, it.Title)), nil
		}
		return Stay(transport.Textf("%s | (%s) has been disabled.", it.SubjectID, it.Title)), nil
	}
}

func (e *Engine) profile(ctx context.Context, in *Input) (Outcome, error) {
	b, err := requireBroker(in)
	if err != nil {
		return Outcome{}, err
	}
	stats, err := e.deps.Catalog.ItemStats(ctx, b.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("item stats: %w", err)
	}
	return Stay(transport.Text(profileText(b, stats))), nil
}

func (e *Engine) startEditItem(ctx context.Context, in *Input) (Outcome, error) {
	b, err := requireBroker(in)
	if err != nil {
		return Outcome{}, err
	}
	id, err := subject(in, "edit")
	if err != nil {
		return Outcome{}, err
	}
	it, err := e.deps.Catalog.GetItem(ctx, b.ID, id)
	if err != nil {
		return Outcome{}, err
	}
	next := &domain.EditItemFlow{Step: domain.StepChooseField, SubjectID: it.SubjectID}
	return Advance(next, transport.Text(menuText("Editing "+itemLabel(it), itemMenu))), nil
}

func (e *Engine) startEditProfile(_ context.Context, in *Input) (Outcome, error) {
	if _, err := requireBroker(in); err != nil {
		return Outcome{}, err
	}
	next := &domain.EditProfileFlow{Step: domain.StepChooseField}
	return Advance(next, transport.Text(menuText("Editing your profile", profileMenu))), nil
}

func (e *Engine) startDelete(ctx context.Context, in *Input) (Outcome, error) {
	b, err := requireBroker(in)
	if err != nil {
		return Outcome{}, err
	}
	id, err := subject(in, "delete")
	if err != nil {
		return Outcome{}, err
	}
	it, err := e.deps.Catalog.GetItem(ctx, b.ID, id)
	if err != nil {
		return Outcome{}, err
	}
	next := &domain.ConfirmFlow{Step: domain.StepAwaitingAnswer, SubjectID: it.SubjectID, Action: confirmDelete}
	return Advance(next, transport.Textf(msgConfirmAsk, it.SubjectID, it.Title)), nil
}

// createItem structures the description, stores a draft, and waits for
// media.
func (e *Engine) createItem(ctx context.Context, in *Input) (Outcome, error) {
	b, err := requireBroker(in)
	if err != nil {
		return Outcome{}, err
	}
	desc := text(in)
	fields, err := e.deps.Extractor.Extract(ctx, desc)
	if err != nil {
		return Outcome{}, fmt.Errorf("extract: %w", err)
	}
	if fields.DescriptionRaw == "" {
		fields.DescriptionRaw = desc
	}
	it, err := e.deps.Catalog.CreateItem(ctx, b.ID, fields)
	if err != nil {
		return Outcome{}, fmt.Errorf("create item: %w", err)
	}
	next := &domain.NewItemFlow{Step: domain.StepAwaitingMedia, SubjectID: it.SubjectID, StagedText: desc}
	return Advance(next, transport.Text(msgMediaPrompt)), nil
}
