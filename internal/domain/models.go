// Package domain defines the persistence models for brokers, catalog items,
// and their media. These types are mapped with GORM and form the data layer
// behind the catalog store contract.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Item statuses.
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusDisabled = "disabled"
	StatusArchived = "archived"
)

// Furnishing values accepted for Item.Furnishing.
const (
	FurnishingNone  = "unfurnished"
	FurnishingSemi  = "semi"
	FurnishingFully = "fully"
)

// Media kinds.
const (
	MediaImage = "image"
	MediaVideo = "video"
	MediaOther = "other"
)

// Broker is a registered operator, identified by a normalized phone number.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - PhoneNumber: normalized identity; unique.
//   - Name / Email: profile attributes editable over chat.
//   - PasswordHash: bcrypt hash set through the reset-credential flow.
//   - BrokerCode: public code shared with clients (KD-BROKER-<id>).
type Broker struct {
	ID           string         `json:"id"           gorm:"type:char(36);primaryKey"`
	PhoneNumber  string         `json:"phone_number" gorm:"type:varchar(20);not null;uniqueIndex"`
	Name         string         `json:"name"         gorm:"type:varchar(100);not null;default:''"`
	Email        string         `json:"email"        gorm:"type:varchar(255)"`
	PasswordHash string         `json:"-"            gorm:"type:varchar(100)"`
	BrokerCode   string         `json:"broker_code"  gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for Broker.
func (Broker) TableName() string { return "brokers" }

// Item is one catalog entry (a property) owned by a broker. SubjectID is the
// short per-broker number brokers type in commands ("view 12"). Seq is the
// catalog-wide number customers use and the tail of ShortCode. Neither is
// ever reused after a delete.
type Item struct {
	ID                    string    `json:"id"                     gorm:"type:char(36);primaryKey"`
	BrokerID              string    `json:"broker_id"              gorm:"type:char(36);not null;uniqueIndex:ux_item_subject,priority:1;index:idx_broker_items,priority:1"`
	SubjectNumber         int       `json:"-"                      gorm:"not null"`
	SubjectID             string    `json:"subject_id"             gorm:"type:varchar(16);not null;uniqueIndex:ux_item_subject,priority:2"`
	Seq                   int64     `json:"seq"                    gorm:"not null;default:0;index"`
	ShortCode             string    `json:"short_code"             gorm:"type:varchar(50);index"`
	Title                 string    `json:"title"                  gorm:"type:varchar(200)"`
	DescriptionRaw        string    `json:"description_raw"        gorm:"type:text;not null"`
	DescriptionBeautified string    `json:"description_beautified" gorm:"type:text"`
	City                  string    `json:"city"                   gorm:"type:varchar(100)"`
	Locality              string    `json:"locality"               gorm:"type:varchar(150)"`
	BHK                   *int      `json:"bhk,omitempty"`
	Bathrooms             *int      `json:"bathrooms,omitempty"`
	AreaSqft              *float64  `json:"area_sqft,omitempty"`
	Furnishing            string    `json:"furnishing"             gorm:"type:varchar(20)"`
	SaleOrRent            string    `json:"sale_or_rent"           gorm:"type:varchar(10);not null;default:'rent'"`
	Price                 *float64  `json:"price,omitempty"`
	Currency              string    `json:"currency"               gorm:"type:varchar(10);not null;default:'INR'"`
	Status                string    `json:"status"                 gorm:"type:varchar(20);not null;default:'draft';check:status IN ('draft','active','disabled','archived')"`
	CreatedAt             time.Time `json:"created_at"             gorm:"index:idx_broker_items,priority:2"`
	UpdatedAt             time.Time `json:"updated_at"`

	Broker Broker `json:"-" gorm:"foreignKey:BrokerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Item.
func (Item) TableName() string { return "items" }

// MediaAsset is an uploaded image or video attached to an item.
type MediaAsset struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ItemID     string    `json:"item_id"     gorm:"type:char(36);not null;index:idx_item_media,priority:1"`
	MediaType  string    `json:"media_type"  gorm:"type:varchar(10);not null"`
	StorageURL string    `json:"storage_url" gorm:"type:text;not null"`
	Order      int       `json:"order"       gorm:"column:sort_order;not null;default:0;index:idx_item_media,priority:2"`
	CreatedAt  time.Time `json:"created_at"`

	Item Item `json:"-" gorm:"foreignKey:ItemID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MediaAsset.
func (MediaAsset) TableName() string { return "media_assets" }

// Sequence is a named counter that only moves forward. It backs item
// numbering so a deleted item's number is never handed out again.
type Sequence struct {
	Name    string `gorm:"type:varchar(64);primaryKey"`
	Counter int64  `gorm:"not null;default:0"`
}

// TableName returns the database table name for Sequence.
func (Sequence) TableName() string { return "sequences" }
