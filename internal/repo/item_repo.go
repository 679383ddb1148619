// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Item model.
package repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-catalog-bot/internal/domain"
)

// ItemQuery narrows ListItemsPage/CountItems. Zero values are ignored.
type ItemQuery struct {
	City     string
	BHK      int
	MinPrice float64
	MaxPrice float64
	Status   string
}

// CreateItem inserts item for brokerID, assigning the next per-broker
// subject number, the next catalog-wide sequence and a short code. Both
// numbers come from counters that never go backwards, so deleting the
// newest item does not free its number.
func CreateItem(ctx context.Context, db *gorm.DB, brokerID string, item *domain.Item) (*domain.Item, error) {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var used struct{ N, S int64 }
		if err := tx.Model(&domain.Item{}).
			Select("COALESCE(MAX(CASE WHEN broker_id = ? THEN subject_number END), 0) AS n, COALESCE(MAX(seq), 0) AS s", brokerID).
			Scan(&used).Error; err != nil {
			return err
		}
		subject, err := nextSequence(tx, "item:"+brokerID, used.N)
		if err != nil {
			return err
		}
		seq, err := nextSequence(tx, "item", used.S)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		item.ID = uuid.NewString()
		item.BrokerID = brokerID
		item.SubjectNumber = int(subject)
		item.SubjectID = strconv.FormatInt(subject, 10)
		item.Seq = seq
		item.ShortCode = shortCode(item.City, item.BHK, seq)
		if item.Status == "" {
			item.Status = domain.StatusDraft
		}
		if item.Currency == "" {
			item.Currency = "INR"
		}
		if item.SaleOrRent == "" {
			item.SaleOrRent = "rent"
		}
		item.CreatedAt = now
		item.UpdatedAt = now
		return tx.Create(item).Error
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// nextSequence advances the named counter and returns its new value. floor
// is the highest number already in use; it only matters for a counter that
// is created after rows exist.
func nextSequence(tx *gorm.DB, name string, floor int64) (int64, error) {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]any{"counter": gorm.Expr("MAX(counter, ?) + 1", floor)}),
	}).Create(&domain.Sequence{Name: name, Counter: floor + 1}).Error
	if err != nil {
		return 0, fmt.Errorf("advance %s: %w", name, err)
	}
	var s domain.Sequence
	if err := tx.Where("name = ?", name).First(&s).Error; err != nil {
		return 0, err
	}
	return s.Counter, nil
}

// shortCode renders KD-<CITY3>-<N>BHK-<seq>, e.g. KD-PUN-2BHK-00042. The
// city prefix is cut on rune boundaries.
func shortCode(city string, bhk *int, seq int64) string {
	c := []rune(strings.ToUpper(strings.ReplaceAll(city, " ", "")))
	if len(c) > 3 {
		c = c[:3]
	}
	prefix := string(c)
	if prefix == "" {
		prefix = "XXX"
	}
	b := "0"
	if bhk != nil {
		b = strconv.Itoa(*bhk)
	}
	return fmt.Sprintf("KD-%s-%sBHK-%05d", prefix, b, seq)
}

// GetItem fetches an item by its per-broker subject id, or ErrNotFound.
func GetItem(ctx context.Context, db *gorm.DB, brokerID, subjectID string) (*domain.Item, error) {
	var it domain.Item
	err := db.WithContext(ctx).
		Where("broker_id = ? AND subject_id = ?", brokerID, subjectID).
		First(&it).Error
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// UpdateItemField sets a single column on an owned item. It returns
// ErrNotFound when the item does not exist for brokerID.
func UpdateItemField(ctx context.Context, db *gorm.DB, brokerID, subjectID, column string, value any) error {
	res := db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("broker_id = ? AND subject_id = ?", brokerID, subjectID).
		Updates(map[string]any{column: value, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteItem removes an owned item (media cascade via FK).
func DeleteItem(ctx context.Context, db *gorm.DB, brokerID, subjectID string) error {
	res := db.WithContext(ctx).
		Where("broker_id = ? AND subject_id = ?", brokerID, subjectID).
		Delete(&domain.Item{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func itemScope(db *gorm.DB, brokerID string, q ItemQuery) *gorm.DB {
	return filterScope(db.Model(&domain.Item{}).Where("broker_id = ?", brokerID), q)
}

func filterScope(tx *gorm.DB, q ItemQuery) *gorm.DB {
	if q.City != "" {
		tx = tx.Where("LOWER(city) = ?", strings.ToLower(q.City))
	}
	if q.BHK > 0 {
		tx = tx.Where("bhk = ?", q.BHK)
	}
	if q.MinPrice > 0 {
		tx = tx.Where("price >= ?", q.MinPrice)
	}
	if q.MaxPrice > 0 {
		tx = tx.Where("price <= ?", q.MaxPrice)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	return tx
}

// CountItems returns the number of brokerID's items matching q.
func CountItems(ctx context.Context, db *gorm.DB, brokerID string, q ItemQuery) (int64, error) {
	var total int64
	err := itemScope(db.WithContext(ctx), brokerID, q).Count(&total).Error
	return total, err
}

// ListItemsPage returns a paginated slice of brokerID's items ordered by
// subject number, newest first. Use CountItems for the total.
func ListItemsPage(ctx context.Context, db *gorm.DB, brokerID string, q ItemQuery, offset, limit int) ([]domain.Item, error) {
	var out []domain.Item
	err := itemScope(db.WithContext(ctx), brokerID, q).
		Order("subject_number DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func activeScope(db *gorm.DB, q ItemQuery) *gorm.DB {
	q.Status = ""
	return filterScope(db.Model(&domain.Item{}).Where("status = ?", domain.StatusActive), q)
}

// CountActiveItems returns the number of active items across all brokers
// matching q. q.Status is ignored.
func CountActiveItems(ctx context.Context, db *gorm.DB, q ItemQuery) (int64, error) {
	var total int64
	err := activeScope(db.WithContext(ctx), q).Count(&total).Error
	return total, err
}

// ListActiveItemsPage returns a page of active items across all brokers,
// newest first.
func ListActiveItemsPage(ctx context.Context, db *gorm.DB, q ItemQuery, offset, limit int) ([]domain.Item, error) {
	var out []domain.Item
	err := activeScope(db.WithContext(ctx), q).
		Order("seq DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetActiveItem fetches an active item by its catalog-wide seq or its short
// code, with the owning broker loaded.
func GetActiveItem(ctx context.Context, db *gorm.DB, ref string) (*domain.Item, error) {
	tx := db.WithContext(ctx).Preload("Broker").Where("status = ?", domain.StatusActive)
	if seq, err := strconv.ParseInt(ref, 10, 64); err == nil {
		tx = tx.Where("seq = ?", seq)
	} else {
		tx = tx.Where("short_code = ?", strings.ToUpper(ref))
	}
	var it domain.Item
	if err := tx.First(&it).Error; err != nil {
		return nil, err
	}
	return &it, nil
}
