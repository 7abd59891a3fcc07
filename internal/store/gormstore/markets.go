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

type marketListingRow struct {
	Currency string `gorm:"primaryKey;size:16"`
	SyncedAt int64  `gorm:"not null"`
}

func (marketListingRow) TableName() string { return "market_listings" }

type marketRow struct {
	Currency  string          `gorm:"primaryKey;size:16"`
	CoinID    string          `gorm:"primaryKey;size:128"`
	Rank      int             `gorm:"index"`
	Symbol    string          `gorm:"size:32"`
	Name      string          `gorm:"size:128"`
	Rate      decimal.Decimal `gorm:"type:decimal(38,18)"`
	Diff24h   decimal.Decimal `gorm:"type:decimal(38,18)"`
	Volume24h decimal.Decimal `gorm:"type:decimal(38,18)"`
	MarketCap decimal.Decimal `gorm:"type:decimal(38,18)"`
	Supply    decimal.Decimal `gorm:"type:decimal(38,18)"`
}

func (marketRow) TableName() string { return "market_entries" }

// MarketStore keeps one ranked listing per currency.
type MarketStore struct {
	db *gorm.DB
}

func NewMarketStore(db *gorm.DB) *MarketStore { return &MarketStore{db: db} }

func (s *MarketStore) Read(ctx context.Context, k key.MarketsKey) (model.TopMarkets, bool, error) {
	var out model.TopMarkets
	found := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var listing marketListingRow
		err := tx.Where("currency = ?", k.Currency).First(&listing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var rows []marketRow
		if err := tx.Where("currency = ?", k.Currency).Order("rank").Find(&rows).Error; err != nil {
			return err
		}
		out = model.TopMarkets{
			Currency:  k.Currency,
			Markets:   make([]model.MarketInfo, 0, len(rows)),
			Timestamp: fromMillis(listing.SyncedAt),
		}
		for _, r := range rows {
			out.Markets = append(out.Markets, model.MarketInfo{
				CoinID:    r.CoinID,
				Symbol:    r.Symbol,
				Name:      r.Name,
				Rank:      r.Rank,
				Rate:      r.Rate,
				Diff24h:   r.Diff24h,
				Volume24h: r.Volume24h,
				MarketCap: r.MarketCap,
				Supply:    r.Supply,
			})
		}
		found = true
		return nil
	})
	if err != nil {
		return model.TopMarkets{}, false, err
	}
	return out, found, nil
}

func (s *MarketStore) ReadAll(ctx context.Context, keys []key.MarketsKey) ([]model.TopMarkets, error) {
	out := make([]model.TopMarkets, 0, len(keys))
	for _, k := range keys {
		t, ok, err := s.Read(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MarketStore) Write(ctx context.Context, records []model.TopMarkets) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range records {
			listing := marketListingRow{Currency: t.Currency, SyncedAt: toMillis(t.Timestamp)}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&listing).Error; err != nil {
				return err
			}
			if err := tx.Where("currency = ?", t.Currency).Delete(&marketRow{}).Error; err != nil {
				return err
			}
			if len(t.Markets) == 0 {
				continue
			}
			rows := make([]marketRow, 0, len(t.Markets))
			for _, m := range t.Markets {
				rows = append(rows, marketRow{
					Currency:  t.Currency,
					CoinID:    m.CoinID,
					Rank:      m.Rank,
					Symbol:    m.Symbol,
					Name:      m.Name,
					Rate:      m.Rate,
					Diff24h:   m.Diff24h,
					Volume24h: m.Volume24h,
					MarketCap: m.MarketCap,
					Supply:    m.Supply,
				})
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *MarketStore) Delete(ctx context.Context, k key.MarketsKey) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("currency = ?", k.Currency).Delete(&marketRow{}).Error; err != nil {
			return err
		}
		return tx.Where("currency = ?", k.Currency).Delete(&marketListingRow{}).Error
	})
}
