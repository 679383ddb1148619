// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the MediaAsset
// model.
//
// Functions:
//
//   - CreateMediaAssets(ctx, db, itemID, refs) -> error
//     Inserts one row per uploaded reference inside a single transaction.
//
//   - ListMediaAssets(ctx, db, itemID) -> []domain.MediaAsset, error
//     Returns an item's media ordered by sort order.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-catalog-bot/internal/domain"
)

// CreateMediaAssets attaches refs to itemID. Either every row is inserted or
// none is.
func CreateMediaAssets(ctx context.Context, db *gorm.DB, itemID string, refs []domain.MediaRef) error {
	if len(refs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]domain.MediaAsset, 0, len(refs))
	for _, r := range refs {
		rows = append(rows, domain.MediaAsset{
			ID:         uuid.NewString(),
			ItemID:     itemID,
			MediaType:  r.Kind,
			StorageURL: r.URL,
			Order:      r.Order,
			CreatedAt:  now,
		})
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
}

// ListMediaAssets returns itemID's media in display order.
func ListMediaAssets(ctx context.Context, db *gorm.DB, itemID string) ([]domain.MediaAsset, error) {
	var out []domain.MediaAsset
	err := db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("sort_order ASC, created_at ASC").
		Find(&out).Error
	return out, err
}
