// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used by the
// profile summary.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-catalog-bot/internal/domain"
)

// ItemStatusCounts returns the number of brokerID's items per status. Statuses
// with no items are absent from the map.
func ItemStatusCounts(ctx context.Context, db *gorm.DB, brokerID string) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Item{}).
		Select("status, COUNT(*) AS n").
		Where("broker_id = ?", brokerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
