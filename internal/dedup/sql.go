package dedup

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-catalog-bot/internal/repo"
)

// SQLLedger records ids in the dedup_records table; the unique index on
// message_id arbitrates concurrent deliveries.
type SQLLedger struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLLedger returns a SQLLedger with the given window.
func NewSQLLedger(db *gorm.DB, ttl time.Duration) *SQLLedger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SQLLedger{db: db, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// SeenAndMark implements Ledger.
func (l *SQLLedger) SeenAndMark(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	err := repo.MarkMessage(ctx, l.db, messageID, l.ttl, l.now())
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, repo.ErrDuplicate):
		return true, nil
	default:
		return false, err
	}
}

// Purge removes expired records. It is intended for a periodic janitor.
func (l *SQLLedger) Purge(ctx context.Context) (int64, error) {
	return repo.PurgeExpiredDedup(ctx, l.db, l.now())
}
