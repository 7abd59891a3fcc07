package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketkit/internal/key"
	"marketkit/internal/model"
)

type chartSeriesRow struct {
	CoinID    string `gorm:"primaryKey;size:128"`
	Currency  string `gorm:"primaryKey;size:16"`
	ChartType string `gorm:"primaryKey;size:16"`
	SyncedAt  int64  `gorm:"not null;index"`
}

func (chartSeriesRow) TableName() string { return "chart_series" }

type chartPointRow struct {
	CoinID    string          `gorm:"primaryKey;size:128"`
	Currency  string          `gorm:"primaryKey;size:16"`
	ChartType string          `gorm:"primaryKey;size:16"`
	Ts        int64           `gorm:"primaryKey"`
	Value     decimal.Decimal `gorm:"type:decimal(38,18)"`
	Volume    decimal.Decimal `gorm:"type:decimal(38,18)"`
}

func (chartPointRow) TableName() string { return "chart_points" }

// ChartStore keeps whole series; a write replaces every point of its key.
type ChartStore struct {
	db *gorm.DB
}

func NewChartStore(db *gorm.DB) *ChartStore { return &ChartStore{db: db} }

func seriesScope(k key.ChartKey) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("coin_id = ? AND currency = ? AND chart_type = ?", k.CoinID, k.Currency, k.Type.Name)
	}
}

func (s *ChartStore) Read(ctx context.Context, k key.ChartKey) (model.ChartInfo, bool, error) {
	var info model.ChartInfo
	found := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var series chartSeriesRow
		err := tx.Scopes(seriesScope(k)).First(&series).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var rows []chartPointRow
		if err := tx.Scopes(seriesScope(k)).Order("ts").Find(&rows).Error; err != nil {
			return err
		}
		info = model.ChartInfo{
			Key:       k,
			Points:    make([]model.ChartPoint, 0, len(rows)),
			Timestamp: fromMillis(series.SyncedAt),
		}
		for _, r := range rows {
			info.Points = append(info.Points, model.ChartPoint{
				Timestamp: fromMillis(r.Ts),
				Value:     r.Value,
				Volume:    r.Volume,
			})
		}
		found = true
		return nil
	})
	if err != nil {
		return model.ChartInfo{}, false, err
	}
	return info, found, nil
}

func (s *ChartStore) ReadAll(ctx context.Context, keys []key.ChartKey) ([]model.ChartInfo, error) {
	out := make([]model.ChartInfo, 0, len(keys))
	for _, k := range keys {
		info, ok, err := s.Read(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, info)
		}
	}
	return out, nil
}

func (s *ChartStore) Write(ctx context.Context, records []model.ChartInfo) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, info := range records {
			k := info.Key
			series := chartSeriesRow{
				CoinID:    k.CoinID,
				Currency:  k.Currency,
				ChartType: k.Type.Name,
				SyncedAt:  toMillis(info.Timestamp),
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&series).Error; err != nil {
				return err
			}
			if err := tx.Scopes(seriesScope(k)).Delete(&chartPointRow{}).Error; err != nil {
				return err
			}
			if len(info.Points) == 0 {
				continue
			}
			rows := make([]chartPointRow, 0, len(info.Points))
			for _, p := range info.Points {
				rows = append(rows, chartPointRow{
					CoinID:    k.CoinID,
					Currency:  k.Currency,
					ChartType: k.Type.Name,
					Ts:        toMillis(p.Timestamp),
					Value:     p.Value,
					Volume:    p.Volume,
				})
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(rows, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *ChartStore) Delete(ctx context.Context, k key.ChartKey) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(seriesScope(k)).Delete(&chartPointRow{}).Error; err != nil {
			return err
		}
		return tx.Scopes(seriesScope(k)).Delete(&chartSeriesRow{}).Error
	})
}

// PurgeOlderThan removes every series last synced before cutoff and reports
// how many series were removed.
func (s *ChartStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []chartSeriesRow
	if err := s.db.WithContext(ctx).Where("synced_at < ?", toMillis(cutoff)).Find(&stale).Error; err != nil {
		return 0, err
	}
	for _, row := range stale {
		ct, err := key.ChartTypeByName(row.ChartType)
		if err != nil {
			ct = key.ChartType{Name: row.ChartType}
		}
		k := key.ChartKey{CoinID: row.CoinID, Currency: row.Currency, Type: ct}
		if err := s.Delete(ctx, k); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}
