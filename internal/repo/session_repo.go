// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores serialized conversation sessions for the
// SQL session backend.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-catalog-bot/internal/domain"
)

// GetSessionRow returns the live row for identity or ErrNotFound when absent
// or expired.
func GetSessionRow(ctx context.Context, db *gorm.DB, identity string, now time.Time) (*domain.SessionRow, error) {
	var row domain.SessionRow
	err := db.WithContext(ctx).
		Where("identity = ? AND expires_at > ?", identity, now).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertSessionRow inserts or replaces the row keyed by identity.
func UpsertSessionRow(ctx context.Context, db *gorm.DB, row *domain.SessionRow) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at", "updated_at"}),
	}).Create(row).Error
}

// DeleteSessionRow removes identity's row. Deleting an absent row succeeds.
func DeleteSessionRow(ctx context.Context, db *gorm.DB, identity string) error {
	return db.WithContext(ctx).Where("identity = ?", identity).Delete(&domain.SessionRow{}).Error
}
