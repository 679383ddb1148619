package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-catalog-bot/internal/catalog"
	"github.com/tbourn/go-catalog-bot/internal/domain"
)

// itemColumns maps editable item fields to their columns.
var itemColumns = map[string]string{
	catalog.FieldPrice:       "price",
	catalog.FieldCity:        "city",
	catalog.FieldBHK:         "bhk",
	catalog.FieldFurnishing:  "furnishing",
	catalog.FieldDescription: "description_raw",
}

// brokerColumns maps editable broker fields to their columns.
var brokerColumns = map[string]string{
	catalog.FieldName:  "name",
	catalog.FieldEmail: "email",
}

// Catalog adapts the repository free functions to catalog.Store, translating
// gorm.ErrRecordNotFound into catalog.ErrNotFound.
type Catalog struct {
	DB *gorm.DB
}

var (
	_ catalog.Store    = (*Catalog)(nil)
	_ catalog.Listings = (*Catalog)(nil)
)

// NewCatalog returns a Catalog over db.
func NewCatalog(db *gorm.DB) *Catalog { return &Catalog{DB: db} }

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return catalog.ErrNotFound
	}
	return err
}

// GetBroker implements catalog.Store.
func (c *Catalog) GetBroker(ctx context.Context, phone string) (*domain.Broker, error) {
	b, err := GetBrokerByPhone(ctx, c.DB, phone)
	return b, mapErr(err)
}

// CreateBroker implements catalog.Store.
func (c *Catalog) CreateBroker(ctx context.Context, phone, name, email string) (*domain.Broker, error) {
	return CreateBroker(ctx, c.DB, phone, name, email)
}

// UpdateBrokerField implements catalog.Store.
func (c *Catalog) UpdateBrokerField(ctx context.Context, brokerID, field, value string) error {
	col, ok := brokerColumns[field]
	if !ok {
		return catalog.ErrUnknownField
	}
	return mapErr(UpdateBrokerField(ctx, c.DB, brokerID, col, value))
}

// SetBrokerPassword implements catalog.Store.
func (c *Catalog) SetBrokerPassword(ctx context.Context, brokerID, hash string) error {
	return mapErr(UpdateBrokerField(ctx, c.DB, brokerID, "password_hash", hash))
}

// CreateItem implements catalog.Store.
func (c *Catalog) CreateItem(ctx context.Context, brokerID string, f catalog.ItemFields) (*domain.Item, error) {
	it := &domain.Item{
		Title:                 f.Title,
		DescriptionRaw:        f.DescriptionRaw,
		DescriptionBeautified: f.DescriptionBeautified,
		City:                  f.City,
		Locality:              f.Locality,
		BHK:                   f.BHK,
		Bathrooms:             f.Bathrooms,
		AreaSqft:              f.AreaSqft,
		Furnishing:            f.Furnishing,
		SaleOrRent:            f.SaleOrRent,
		Price:                 f.Price,
		Currency:              f.Currency,
		Status:                domain.StatusDraft,
	}
	return CreateItem(ctx, c.DB, brokerID, it)
}

// GetItem implements catalog.Store.
func (c *Catalog) GetItem(ctx context.Context, brokerID, subjectID string) (*domain.Item, error) {
	it, err := GetItem(ctx, c.DB, brokerID, subjectID)
	return it, mapErr(err)
}

// UpdateItemField implements catalog.Store.
func (c *Catalog) UpdateItemField(ctx context.Context, brokerID, subjectID, field string, value any) error {
	col, ok := itemColumns[field]
	if !ok {
		return catalog.ErrUnknownField
	}
	return mapErr(UpdateItemField(ctx, c.DB, brokerID, subjectID, col, value))
}

// SetItemStatus implements catalog.Store and returns the updated item.
func (c *Catalog) SetItemStatus(ctx context.Context, brokerID, subjectID, status string) (*domain.Item, error) {
	if err := UpdateItemField(ctx, c.DB, brokerID, subjectID, "status", status); err != nil {
		return nil, mapErr(err)
	}
	return c.GetItem(ctx, brokerID, subjectID)
}

// DeleteItem implements catalog.Store.
func (c *Catalog) DeleteItem(ctx context.Context, brokerID, subjectID string) error {
	return mapErr(DeleteItem(ctx, c.DB, brokerID, subjectID))
}

// ListItems implements catalog.Store.
func (c *Catalog) ListItems(ctx context.Context, brokerID string, f catalog.ItemFilter, offset, limit int) ([]domain.Item, int64, error) {
	q := ItemQuery(f)
	total, err := CountItems(ctx, c.DB, brokerID, q)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}
	items, err := ListItemsPage(ctx, c.DB, brokerID, q, offset, limit)
	return items, total, err
}

// ItemStats implements catalog.Store.
func (c *Catalog) ItemStats(ctx context.Context, brokerID string) (map[string]int64, error) {
	return ItemStatusCounts(ctx, c.DB, brokerID)
}

// AttachMedia implements catalog.Store.
func (c *Catalog) AttachMedia(ctx context.Context, itemID string, refs []domain.MediaRef) error {
	return CreateMediaAssets(ctx, c.DB, itemID, refs)
}

// ListMedia implements catalog.Store.
func (c *Catalog) ListMedia(ctx context.Context, itemID string) ([]domain.MediaAsset, error) {
	return ListMediaAssets(ctx, c.DB, itemID)
}

// ListActive implements catalog.Listings.
func (c *Catalog) ListActive(ctx context.Context, f catalog.ItemFilter, offset, limit int) ([]domain.Item, int64, error) {
	q := ItemQuery(f)
	total, err := CountActiveItems(ctx, c.DB, q)
	if err != nil || total == 0 {
		return nil, total, err
	}
	items, err := ListActiveItemsPage(ctx, c.DB, q, offset, limit)
	return items, total, err
}

// GetListing implements catalog.Listings.
func (c *Catalog) GetListing(ctx context.Context, ref string) (*domain.Item, error) {
	it, err := GetActiveItem(ctx, c.DB, ref)
	return it, mapErr(err)
}
