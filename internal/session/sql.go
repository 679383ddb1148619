package session

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-catalog-bot/internal/domain"
	"github.com/tbourn/go-catalog-bot/internal/repo"
)

// SQLStore keeps sessions in the sessions table. Expired rows are invisible
// to Get and are overwritten by the next Set.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLStore returns a SQLStore over db. The sessions table must already be
// migrated (see repo.AutoMigrate).
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, identity string) (*domain.Session, error) {
	row, err := repo.GetSessionRow(ctx, s.db, identity, s.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode([]byte(row.Payload))
}

// Set implements Store.
func (s *SQLStore) Set(ctx context.Context, identity string, sess *domain.Session, ttl time.Duration) error {
	now := s.now()
	b, err := encode(identity, sess, now)
	if err != nil {
		return err
	}
	return repo.UpsertSessionRow(ctx, s.db, &domain.SessionRow{
		Identity:  identity,
		Payload:   string(b),
		ExpiresAt: now.Add(ttlOrDefault(ttl)),
		UpdatedAt: now,
	})
}

// Clear implements Store.
func (s *SQLStore) Clear(ctx context.Context, identity string) error {
	return repo.DeleteSessionRow(ctx, s.db, identity)
}
