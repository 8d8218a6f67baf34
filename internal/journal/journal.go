// Package journal persists closed trades to PostgreSQL for later analysis.
package journal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"main/internal/bus"
	"main/internal/model/enum"
)

// TradeRecord is one settled round trip.
type TradeRecord struct {
	ID         uint            `gorm:"primaryKey"`
	PositionID string          `gorm:"size:64;uniqueIndex"`
	Symbol     string          `gorm:"size:32;index"`
	Side       string          `gorm:"size:8"`
	Quantity   decimal.Decimal `gorm:"type:numeric(24,8)"`
	EntryPrice decimal.Decimal `gorm:"type:numeric(24,8)"`
	ExitPrice  decimal.Decimal `gorm:"type:numeric(24,8)"`
	PnL        decimal.Decimal `gorm:"type:numeric(24,8)"`
	ExitReason string          `gorm:"size:64"`
	Strategy   string          `gorm:"size:64"`
	EntryTime  time.Time
	ExitTime   time.Time
	CreatedAt  time.Time
}

func (TradeRecord) TableName() string { return "trade_journal" }

// Journal subscribes to closed positions and writes one record each.
// Writes happen on the async bus queue so a slow database never stalls the
// trading path.
type Journal struct {
	db  *gorm.DB
	sub *bus.Subscription
}

func New(db *gorm.DB, b *bus.Bus) (*Journal, error) {
	if err := db.AutoMigrate(&TradeRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate trade journal")
	}

	j := &Journal{db: db}
	sub, err := b.Subscribe(enum.TopicPosition, j.onPositionEvent, bus.Async)
	if err != nil {
		return nil, err
	}
	j.sub = sub
	return j, nil
}

func (j *Journal) Shutdown() {
	if j.sub != nil {
		j.sub.Close()
	}
}

func (j *Journal) onPositionEvent(e bus.Event) {
	pe, ok := e.(bus.PositionEvent)
	if !ok || pe.Action != "closed" {
		return
	}

	record := TradeRecord{
		PositionID: pe.Position.ID,
		Symbol:     pe.Position.Symbol,
		Side:       string(pe.Position.Side),
		Quantity:   pe.Position.Quantity,
		EntryPrice: pe.Position.EntryPrice,
		ExitPrice:  pe.Position.ExitPrice,
		PnL:        pe.Position.PnL,
		ExitReason: pe.Position.ExitReason,
		EntryTime:  pe.Position.EntryTime,
		ExitTime:   pe.Position.ExitTime,
	}
	if err := j.db.Create(&record).Error; err != nil {
		logs.Errorf("journal trade %s: %v", pe.Position.ID, err)
	}
}

// Recent returns the latest limit records, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]TradeRecord, error) {
	var records []TradeRecord
	err := j.db.WithContext(ctx).
		Order("exit_time DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "query trade journal")
	}
	return records, nil
}
