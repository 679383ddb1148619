// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Broker model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a broker is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateBroker(ctx, db, phone, name, email) -> *domain.Broker, error
//     Inserts a Broker with UUID primary key and derived broker code.
//
//   - GetBrokerByPhone(ctx, db, phone) -> *domain.Broker, error
//     Fetches the broker registered for a normalized phone number.
//
//   - UpdateBrokerField(ctx, db, id, column, value) -> error
//     Updates one profile column. Returns ErrNotFound on zero rows.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-catalog-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateBroker inserts a new Broker for phone. The broker code is derived
// from the first segment of the generated UUID.
func CreateBroker(ctx context.Context, db *gorm.DB, phone, name, email string) (*domain.Broker, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	b := &domain.Broker{
		ID:          id,
		PhoneNumber: phone,
		Name:        name,
		Email:       email,
		BrokerCode:  "KD-BROKER-" + id[:8],
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

// GetBrokerByPhone fetches the broker registered under phone, or ErrNotFound.
func GetBrokerByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.Broker, error) {
	var b domain.Broker
	if err := db.WithContext(ctx).Where("phone_number = ?", phone).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBrokerField sets a single column on the broker identified by id.
// If no rows are affected it returns ErrNotFound.
func UpdateBrokerField(ctx context.Context, db *gorm.DB, id, column string, value any) error {
	res := db.WithContext(ctx).
		Model(&domain.Broker{}).
		Where("id = ?", id).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
