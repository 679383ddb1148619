// Package storefront is the customer-facing bot. It keeps no session: each
// message is classified and answered from the active listings of every
// broker.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-catalog-bot/internal/catalog"
	"github.com/tbourn/go-catalog-bot/internal/conversation"
	"github.com/tbourn/go-catalog-bot/internal/domain"
	"github.com/tbourn/go-catalog-bot/internal/intent"
	"github.com/tbourn/go-catalog-bot/internal/observability"
	"github.com/tbourn/go-catalog-bot/internal/transport"
	"github.com/tbourn/go-catalog-bot/internal/utils"
)

const (
	// PageSize is the number of listings per page.
	PageSize = 10
	// PriceTolerance widens an upper price bound so near matches still show.
	PriceTolerance = 1.15
)

type action func(ctx context.Context, in intent.Intent) ([]transport.Reply, error)

// Storefront answers customer messages. It implements gateway.Handler.
type Storefront struct {
	listings   catalog.Listings
	classifier intent.Classifier
	actions    map[intent.Action]action
	tracer     trace.Tracer
}

// New returns a Storefront over listings. A nil classifier uses the command
// grammar.
func New(listings catalog.Listings, classifier intent.Classifier) *Storefront {
	if classifier == nil {
		classifier = intent.CommandClassifier{}
	}
	s := &Storefront{
		listings:   listings,
		classifier: classifier,
		tracer:     otel.Tracer("github.com/tbourn/go-catalog-bot/internal/storefront"),
	}
	s.actions = map[intent.Action]action{
		intent.ActionHelp:      s.help,
		intent.ActionListItems: s.list,
		intent.ActionViewItem:  s.view,
	}
	return s
}

// Handle answers one customer message. Catalog failures produce an apology
// and are returned for logging.
func (s *Storefront) Handle(ctx context.Context, ev conversation.Event) ([]transport.Reply, error) {
	ctx, span := s.tracer.Start(ctx, "storefront.Handle")
	defer span.End()

	in, err := s.classifier.Classify(ctx, ev.Text)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("classifier failed; treating as unknown")
		in = intent.Intent{}
	}
	span.SetAttributes(attribute.String("chat.action", in.Action.String()))

	act, ok := s.actions[in.Action]
	if !ok {
		observability.RecordCustomerQuery("unknown")
		return []transport.Reply{transport.Text(msgUnknown)}, nil
	}
	observability.RecordCustomerQuery(in.Action.String())
	replies, err := act(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storefront")
		return []transport.Reply{transport.Text(msgApology)}, err
	}
	return replies, nil
}

func (s *Storefront) help(context.Context, intent.Intent) ([]transport.Reply, error) {
	return []transport.Reply{transport.Text(helpText)}, nil
}

func (s *Storefront) list(ctx context.Context, in intent.Intent) ([]transport.Reply, error) {
	f := in.Filters
	filter := catalog.ItemFilter{City: f.City, BHK: f.BHK, MinPrice: f.MinPrice}
	if f.MaxPrice > 0 {
		filter.MaxPrice = f.MaxPrice * PriceTolerance
	}
	page := max(f.Page, 1)
	items, total, err := s.listings.ListActive(ctx, filter, (page-1)*PageSize, PageSize)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	if total == 0 {
		return []transport.Reply{transport.Text(msgNoListings)}, nil
	}
	w := utils.Paginate(page, PageSize, total)
	if !w.Exists() {
		return []transport.Reply{transport.Textf(msgNoPage, w.Page, w.Pages)}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Available Properties (Page %d/%d):\n", w.Page, w.Pages)
	for i := range items {
		sb.WriteString("\n" + listingLine(&items[i]))
	}
	if w.HasNext() {
		fmt.Fprintf(&sb, "\n\n👉 Reply 'list %d' for next page", w.Page+1)
	}
	return []transport.Reply{transport.Text(sb.String())}, nil
}

func (s *Storefront) view(ctx context.Context, in intent.Intent) ([]transport.Reply, error) {
	if in.SubjectID == "" {
		return []transport.Reply{transport.Text(msgMissingID)}, nil
	}
	it, err := s.listings.GetListing(ctx, in.SubjectID)
	if errors.Is(err, catalog.ErrNotFound) {
		return []transport.Reply{transport.Text(msgNotFound)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	assets, err := s.listings.ListMedia(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}

	replies := []transport.Reply{transport.Text(listingDetail(it))}
	for _, a := range assets {
		switch a.MediaType {
		case domain.MediaImage:
			replies = append(replies, transport.Media(msgImageCaption, a.StorageURL, a.MediaType))
		case domain.MediaVideo:
			replies = append(replies, transport.Media(msgVideoCaption, a.StorageURL, a.MediaType))
		}
	}
	return replies, nil
}
