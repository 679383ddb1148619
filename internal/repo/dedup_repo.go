// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the SQL side of the inbound dedup
// ledger: a unique index on message_id turns INSERT into an atomic
// check-and-set.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-catalog-bot/internal/domain"
)

// ErrDuplicate indicates that a live dedup record already exists for the
// message id.
var ErrDuplicate = errors.New("duplicate")

// MarkMessage records messageID for ttl. It returns ErrDuplicate when a
// non-expired record already exists. An expired record is replaced.
func MarkMessage(ctx context.Context, db *gorm.DB, messageID string, ttl time.Duration, now time.Time) error {
	db = db.WithContext(ctx)
	if err := db.Where("message_id = ? AND expires_at <= ?", messageID, now).
		Delete(&domain.DedupRecord{}).Error; err != nil {
		return err
	}
	rec := &domain.DedupRecord{
		ID:        uuid.NewString(),
		MessageID: messageID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// PurgeExpiredDedup deletes records whose window has passed and returns how
// many were removed.
func PurgeExpiredDedup(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.DedupRecord{})
	return res.RowsAffected, res.Error
}

// isUniqueViolation matches both GORM's translated error and the plain-text
// errors glebarez/sqlite returns for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
