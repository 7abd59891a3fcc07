package gormstore

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketkit/internal/key"
	"marketkit/internal/model"
)

type rateRow struct {
	CoinID    string          `gorm:"primaryKey;size:128"`
	Currency  string          `gorm:"primaryKey;size:16"`
	Value     decimal.Decimal `gorm:"type:decimal(38,18)"`
	Diff24h   decimal.Decimal `gorm:"type:decimal(38,18)"`
	Volume24h decimal.Decimal `gorm:"type:decimal(38,18)"`
	MarketCap decimal.Decimal `gorm:"type:decimal(38,18)"`
	Supply    decimal.Decimal `gorm:"type:decimal(38,18)"`
	SyncedAt  int64           `gorm:"not null"`
}

func (rateRow) TableName() string { return "latest_rates" }

func (r rateRow) record() model.Rate {
	return model.Rate{
		CoinID:    r.CoinID,
		Currency:  r.Currency,
		Value:     r.Value,
		Diff24h:   r.Diff24h,
		Volume24h: r.Volume24h,
		MarketCap: r.MarketCap,
		Supply:    r.Supply,
		Timestamp: fromMillis(r.SyncedAt),
	}
}

// RateStore stores one row per (coin, currency).
type RateStore struct {
	db *gorm.DB
}

func NewRateStore(db *gorm.DB) *RateStore { return &RateStore{db: db} }

func (s *RateStore) Read(ctx context.Context, k key.PairKey) (model.Rate, bool, error) {
	var row rateRow
	err := s.db.WithContext(ctx).
		Where("coin_id = ? AND currency = ?", k.CoinID, k.Currency).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Rate{}, false, nil
	}
	if err != nil {
		return model.Rate{}, false, err
	}
	return row.record(), true, nil
}

func (s *RateStore) ReadAll(ctx context.Context, keys []key.PairKey) ([]model.Rate, error) {
	byCurrency := make(map[string][]string)
	for _, k := range keys {
		byCurrency[k.Currency] = append(byCurrency[k.Currency], k.CoinID)
	}

	out := make([]model.Rate, 0, len(keys))
	for currency, ids := range byCurrency {
		var rows []rateRow
		err := s.db.WithContext(ctx).
			Where("currency = ? AND coin_id IN ?", currency, ids).
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, r.record())
		}
	}
	return out, nil
}

func (s *RateStore) Write(ctx context.Context, records []model.Rate) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]rateRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, rateRow{
			CoinID:    r.CoinID,
			Currency:  r.Currency,
			Value:     r.Value,
			Diff24h:   r.Diff24h,
			Volume24h: r.Volume24h,
			MarketCap: r.MarketCap,
			Supply:    r.Supply,
			SyncedAt:  toMillis(r.Timestamp),
		})
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error
}

func (s *RateStore) Delete(ctx context.Context, k key.PairKey) error {
	return s.db.WithContext(ctx).
		Where("coin_id = ? AND currency = ?", k.CoinID, k.Currency).
		Delete(&rateRow{}).Error
}
