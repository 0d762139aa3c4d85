package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	AdStatusActive    = "active"
	AdStatusPaused    = "paused"
	AdStatusExhausted = "exhausted"

	MetricView  = "view"
	MetricClick = "click"
)

// MoneyScale is the number of decimal places kept in every money column.
const MoneyScale = 4

// Ad is a sponsored creative. BudgetSpent never exceeds BudgetTotal.
type Ad struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	SponsorID   string          `gorm:"index;size:36;not null" json:"sponsor_id"`
	Title       string          `gorm:"size:128;not null" json:"title"`
	ImageURL    string          `json:"image_url"`
	TargetURL   string          `json:"target_url"`
	Placement   string          `gorm:"index;size:32;not null" json:"placement"`
	BudgetTotal decimal.Decimal `gorm:"type:decimal(15,4);not null" json:"budget_total"`
	BudgetSpent decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0" json:"budget_spent"`
	CPMBid      decimal.Decimal `gorm:"column:cpm_bid;type:decimal(15,4);not null;default:0" json:"cpm_bid"`
	CPCBid      decimal.Decimal `gorm:"column:cpc_bid;type:decimal(15,4);not null;default:0" json:"cpc_bid"`
	ViewsCount  int64           `gorm:"not null;default:0" json:"views_count"`
	ClicksCount int64           `gorm:"not null;default:0" json:"clicks_count"`
	Status      string          `gorm:"index;size:16;not null;default:active" json:"status"`

	Timestamps
}

func (a *Ad) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// AdMetric is an append-only billing record; one row per charged view or click.
type AdMetric struct {
	ID        string          `gorm:"primaryKey;size:36" json:"id"`
	AdID      string          `gorm:"index;size:36;not null" json:"ad_id"`
	SponsorID string          `gorm:"index;size:36;not null" json:"sponsor_id"`
	Type      string          `gorm:"size:8;not null;check:type IN ('view','click')" json:"type"`
	Placement string          `gorm:"size:32" json:"placement"`
	Cost      decimal.Decimal `gorm:"type:decimal(15,4);not null" json:"cost"`
	CreatedAt time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (m *AdMetric) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
