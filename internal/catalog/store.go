// Package catalog defines the contract between the conversation engine and
// the catalog of brokers and items, plus the structured extraction of item
// attributes from free-form descriptions.
//
// The engine depends only on the Store and Extractor interfaces declared
// here; the GORM-backed implementation lives in package repo.
package catalog

import (
	"context"
	"errors"

	"github.com/tbourn/go-catalog-bot/internal/domain"
)

var (
	// ErrNotFound is returned when a broker or item does not exist (or is not
	// owned by the calling broker).
	ErrNotFound = errors.New("catalog: not found")

	// ErrUnknownField is returned when an update targets a field that is not
	// editable.
	ErrUnknownField = errors.New("catalog: unknown field")
)

// Editable item columns.
const (
	FieldPrice       = "price"
	FieldCity        = "city"
	FieldBHK         = "bhk"
	FieldFurnishing  = "furnishing"
	FieldDescription = "description"
)

// Editable broker columns.
const (
	FieldName  = "name"
	FieldEmail = "email"
)

// ItemFields are the attributes of a new item. Pointer fields are optional;
// nil means "not stated in the description".
type ItemFields struct {
	Title                 string
	DescriptionRaw        string
	DescriptionBeautified string
	City                  string
	Locality              string
	BHK                   *int
	Bathrooms             *int
	AreaSqft              *float64
	Furnishing            string
	SaleOrRent            string
	Price                 *float64
	Currency              string
}

// ItemFilter narrows ListItems. Zero values are ignored.
type ItemFilter struct {
	City     string
	BHK      int
	MinPrice float64
	MaxPrice float64
	Status   string
}

// Store is the catalog contract used by the conversation engine.
type Store interface {
	GetBroker(ctx context.Context, phone string) (*domain.Broker, error)
	CreateBroker(ctx context.Context, phone, name, email string) (*domain.Broker, error)
	UpdateBrokerField(ctx context.Context, brokerID, field, value string) error
	SetBrokerPassword(ctx context.Context, brokerID, hash string) error

	CreateItem(ctx context.Context, brokerID string, f ItemFields) (*domain.Item, error)
	GetItem(ctx context.Context, brokerID, subjectID string) (*domain.Item, error)
	UpdateItemField(ctx context.Context, brokerID, subjectID, field string, value any) error
	SetItemStatus(ctx context.Context, brokerID, subjectID, status string) (*domain.Item, error)
	DeleteItem(ctx context.Context, brokerID, subjectID string) error
	ListItems(ctx context.Context, brokerID string, f ItemFilter, offset, limit int) ([]domain.Item, int64, error)
	ItemStats(ctx context.Context, brokerID string) (map[string]int64, error)

	AttachMedia(ctx context.Context, itemID string, refs []domain.MediaRef) error
	ListMedia(ctx context.Context, itemID string) ([]domain.MediaAsset, error)
}

// Listings is the read-only view of every broker's active items that the
// customer bot serves. GetListing resolves a catalog-wide seq ("42") or a
// short code ("KD-PUN-2BHK-00042") and loads the owning broker.
type Listings interface {
	ListActive(ctx context.Context, f ItemFilter, offset, limit int) ([]domain.Item, int64, error)
	GetListing(ctx context.Context, ref string) (*domain.Item, error)
	ListMedia(ctx context.Context, itemID string) ([]domain.MediaAsset, error)
}

// Extractor turns a free-form description into structured item fields.
type Extractor interface {
	Extract(ctx context.Context, text string) (ItemFields, error)
}
