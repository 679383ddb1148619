package domain

import "time"

// DedupRecord remembers an inbound transport message id until ExpiresAt.
// The unique index on MessageID makes "insert" the atomic check-and-set: the
// first delivery inserts, every concurrent or later duplicate collides.
type DedupRecord struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	MessageID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_dedup_message"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (DedupRecord) TableName() string { return "dedup_records" }

// SessionRow is the SQL representation of a Session: the JSON envelope plus
// an expiry used to emulate TTL semantics.
type SessionRow struct {
	Identity  string    `gorm:"type:varchar(32);primaryKey"`
	Payload   string    `gorm:"type:TEXT NOT NULL"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
	UpdatedAt time.Time `gorm:"type:DATETIME NOT NULL"`
}

// TableName implements the GORM tabler interface.
func (SessionRow) TableName() string { return "sessions" }
