package repositories

import (
	"context"
	"fmt"
	"time"

	"revattest/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 500

// Records is one merchant's normalized records, as stored and as fed to
// the KPI engine.
type Records struct {
	Orders    []models.NormalizedOrder
	Refunds   []models.NormalizedRefund
	Customers []models.NormalizedCustomer
}

// RecordRepository stores normalized records keyed by
// (merchant, provider, id). Saving the same record twice updates it.
type RecordRepository interface {
	SaveRecords(ctx context.Context, records Records) error
	Orders(ctx context.Context, merchantID string, from, to time.Time) ([]models.NormalizedOrder, error)
	Refunds(ctx context.Context, merchantID string, from, to time.Time) ([]models.NormalizedRefund, error)
	Customers(ctx context.Context, merchantID string) ([]models.NormalizedCustomer, error)
	Load(ctx context.Context, merchantID string, from, to time.Time) (Records, error)
}

type recordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db}
}

func (r *recordRepository) SaveRecords(ctx context.Context, records Records) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(records.Orders) > 0 {
			if err := upsert(tx, &records.Orders); err != nil {
				return fmt.Errorf("save orders: %w", err)
			}
		}
		if len(records.Refunds) > 0 {
			if err := upsert(tx, &records.Refunds); err != nil {
				return fmt.Errorf("save refunds: %w", err)
			}
		}
		if len(records.Customers) > 0 {
			if err := upsert(tx, &records.Customers); err != nil {
				return fmt.Errorf("save customers: %w", err)
			}
		}
		return nil
	})
}

func upsert(tx *gorm.DB, rows interface{}) error {
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(rows, batchSize).Error
}

// Orders returns orders created in [from, to), oldest first.
func (r *recordRepository) Orders(ctx context.Context, merchantID string, from, to time.Time) ([]models.NormalizedOrder, error) {
	var orders []models.NormalizedOrder
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND created_at >= ? AND created_at < ?", merchantID, from, to).
		Order("created_at, provider, id").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	return orders, nil
}

// Refunds returns refunds created in [from, to), oldest first.
func (r *recordRepository) Refunds(ctx context.Context, merchantID string, from, to time.Time) ([]models.NormalizedRefund, error) {
	var refunds []models.NormalizedRefund
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND created_at >= ? AND created_at < ?", merchantID, from, to).
		Order("created_at, provider, id").
		Find(&refunds).Error
	if err != nil {
		return nil, fmt.Errorf("query refunds: %w", err)
	}
	return refunds, nil
}

// Customers returns every customer known for the merchant.
func (r *recordRepository) Customers(ctx context.Context, merchantID string) ([]models.NormalizedCustomer, error) {
	var customers []models.NormalizedCustomer
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("provider, id").
		Find(&customers).Error
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	return customers, nil
}

// Load reads everything the KPI engine needs for [from, to).
func (r *recordRepository) Load(ctx context.Context, merchantID string, from, to time.Time) (Records, error) {
	var (
		out Records
		err error
	)
	if out.Orders, err = r.Orders(ctx, merchantID, from, to); err != nil {
		return Records{}, err
	}
	if out.Refunds, err = r.Refunds(ctx, merchantID, from, to); err != nil {
		return Records{}, err
	}
	if out.Customers, err = r.Customers(ctx, merchantID); err != nil {
		return Records{}, err
	}
	return out, nil
}
