package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"

	"exam-platform/mail"
	"exam-platform/models"
	"exam-platform/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AdService struct {
	DB       *gorm.DB
	Pricing  *AdPricing
	Mailer   mail.Mailer // optional
	Notifier Notifier    // optional
}

func NewAdService(db *gorm.DB, pricing *AdPricing, mailer mail.Mailer, notifier Notifier) *AdService {
	return &AdService{DB: db, Pricing: pricing, Mailer: mailer, Notifier: notifier}
}

type CreateAdInput struct {
	Title       string          `json:"title" validate:"required,max=128"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url"`
	TargetURL   string          `json:"target_url" validate:"required,url"`
	Placement   string          `json:"placement" validate:"required,max=32"`
	BudgetTotal decimal.Decimal `json:"budget_total"`
	CPMBid      decimal.Decimal `json:"cpm_bid"`
	CPCBid      decimal.Decimal `json:"cpc_bid"`
}

// AdStats summarizes the billing log of one ad.
type AdStats struct {
	Ad        models.Ad         `json:"ad"`
	Views     int64             `json:"views"`
	Clicks    int64             `json:"clicks"`
	TotalCost decimal.Decimal   `json:"total_cost"`
	Recent    []models.AdMetric `json:"recent"`
}

type WalletSummary struct {
	UserID     string          `json:"user_id"`
	Balance    decimal.Decimal `json:"balance"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

// ServeAd picks uniformly at random among active, funded ads for placement
// (or one of its fallback placements).
func (s *AdService) ServeAd(ctx context.Context, placement string) (*models.Ad, error) {
	placement = strings.ToLower(strings.TrimSpace(placement))
	if placement == "" {
		return nil, fmt.Errorf("placement is required: %w", ErrValidation)
	}

	var ads []models.Ad
	err := s.DB.WithContext(ctx).Model(&models.Ad{}).
		Select("ads.*").
		Joins("JOIN users ON users.id = ads.sponsor_id").
		Where("ads.status = ?", models.AdStatusActive).
		Where("ads.placement IN ?", s.Pricing.Candidates(placement)).
		Where("ads.budget_spent < ads.budget_total").
		Where("users.wallet_balance > 0").
		Find(&ads).Error
	if err != nil {
		return nil, err
	}
	if len(ads) == 0 {
		return nil, fmt.Errorf("no ad available for %s: %w", placement, ErrNotFound)
	}
	ad := ads[rand.IntN(len(ads))]
	return &ad, nil
}

func (s *AdService) RecordView(ctx context.Context, adID, placement string) (*models.AdMetric, error) {
	return s.charge(ctx, adID, placement, models.MetricView)
}

func (s *AdService) RecordClick(ctx context.Context, adID, placement string) (*models.AdMetric, error) {
	return s.charge(ctx, adID, placement, models.MetricClick)
}

// charge bills one view or click. The sponsor debit, the budget debit, the
// counter bump and the metric row commit together or not at all. Both debits
// are conditional updates, so concurrent charges can never overdraw.
func (s *AdService) charge(ctx context.Context, adID, placement, kind string) (*models.AdMetric, error) {
	var metric *models.AdMetric
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ad models.Ad
		if err := tx.First(&ad, "id = ?", adID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("ad %s: %w", adID, ErrNotFound)
			}
			return err
		}
		if ad.Status != models.AdStatusActive {
			return fmt.Errorf("ad %s is %s: %w", adID, ad.Status, ErrValidation)
		}

		slot := strings.ToLower(strings.TrimSpace(placement))
		if slot == "" {
			slot = ad.Placement
		}

		var cost decimal.Decimal
		counter := "views_count"
		if kind == models.MetricClick {
			cost = s.Pricing.ClickCost(slot, ad.CPCBid)
			counter = "clicks_count"
		} else {
			cost = s.Pricing.ViewCost(slot, ad.CPMBid)
		}
		// Debits and the metric row must agree to the column scale.
		cost = cost.Round(models.MoneyScale)

		res := tx.Model(&models.User{}).
			Where("id = ? AND wallet_balance > ?", ad.SponsorID, cost).
			Update("wallet_balance", gorm.Expr(roundMoney("wallet_balance - ?"), cost))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientFunds
		}

		res = tx.Model(&models.Ad{}).
			Where("id = ? AND "+roundMoney("budget_spent + ?")+" <= budget_total", ad.ID, cost).
			Updates(map[string]interface{}{
				"budget_spent": gorm.Expr(roundMoney("budget_spent + ?"), cost),
				counter:        gorm.Expr(counter + " + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("ad %s: %w", adID, ErrBudgetExhausted)
		}

		metric = &models.AdMetric{
			AdID:      ad.ID,
			SponsorID: ad.SponsorID,
			Type:      kind,
			Placement: slot,
			Cost:      cost,
		}
		return tx.Create(metric).Error
	})
	if err != nil {
		if HTTPStatus(err) >= 500 {
			utils.ReportError("Ads", fmt.Errorf("%s billing rolled back for ad %s: %w", kind, adID, err), nil)
		}
		return nil, err
	}
	return metric, nil
}

// roundMoney wraps a money expression so the result keeps MoneyScale places.
// SQLite stores decimal columns as REAL, so unrounded sums drift.
func roundMoney(expr string) string {
	return fmt.Sprintf("ROUND(%s, %d)", expr, models.MoneyScale)
}

// CreateAd stores a new active ad for sponsorID.
func (s *AdService) CreateAd(ctx context.Context, sponsorID string, in CreateAdInput) (*models.Ad, error) {
	if !in.BudgetTotal.IsPositive() {
		return nil, fmt.Errorf("budget_total must be positive: %w", ErrValidation)
	}
	if in.CPMBid.IsNegative() || in.CPCBid.IsNegative() {
		return nil, fmt.Errorf("bids must not be negative: %w", ErrValidation)
	}
	if in.CPMBid.IsZero() && in.CPCBid.IsZero() {
		return nil, fmt.Errorf("set a cpm_bid or a cpc_bid: %w", ErrValidation)
	}

	ad := &models.Ad{
		SponsorID:   sponsorID,
		Title:       strings.TrimSpace(in.Title),
		ImageURL:    in.ImageURL,
		TargetURL:   in.TargetURL,
		Placement:   strings.ToLower(strings.TrimSpace(in.Placement)),
		BudgetTotal: in.BudgetTotal,
		BudgetSpent: decimal.Zero,
		CPMBid:      in.CPMBid,
		CPCBid:      in.CPCBid,
		Status:      models.AdStatusActive,
	}

	if err := s.DB.WithContext(ctx).Create(ad).Error; err != nil {
		return nil, err
	}
	log.Printf("[Ads] ✅ Ad %s created for sponsor %s on %s", ad.ID, sponsorID, ad.Placement)
	return ad, nil
}

func (s *AdService) ListSponsorAds(ctx context.Context, sponsorID string) ([]models.Ad, error) {
	var ads []models.Ad
	if err := s.DB.WithContext(ctx).
		Where("sponsor_id = ?", sponsorID).
		Order("created_at DESC").
		Find(&ads).Error; err != nil {
		return nil, err
	}
	return ads, nil
}

func (s *AdService) ownedAd(ctx context.Context, adID, actorID, actorRole string) (*models.Ad, error) {
	var ad models.Ad
	if err := s.DB.WithContext(ctx).First(&ad, "id = ?", adID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ad %s: %w", adID, ErrNotFound)
		}
		return nil, err
	}
	if ad.SponsorID != actorID && actorRole != models.RoleAdmin {
		return nil, fmt.Errorf("ad %s belongs to another sponsor: %w", adID, ErrForbidden)
	}
	return &ad, nil
}

// SetAdStatus pauses or resumes an ad. A spent ad cannot be resumed.
func (s *AdService) SetAdStatus(ctx context.Context, adID, actorID, actorRole, status string) (*models.Ad, error) {
	if status != models.AdStatusActive && status != models.AdStatusPaused {
		return nil, fmt.Errorf("status must be active or paused: %w", ErrValidation)
	}
	ad, err := s.ownedAd(ctx, adID, actorID, actorRole)
	if err != nil {
		return nil, err
	}
	if status == models.AdStatusActive && ad.BudgetSpent.GreaterThanOrEqual(ad.BudgetTotal) {
		return nil, fmt.Errorf("ad %s has no budget left: %w", adID, ErrBudgetExhausted)
	}
	if err := s.DB.WithContext(ctx).Model(&models.Ad{}).
		Where("id = ?", adID).
		Update("status", status).Error; err != nil {
		return nil, err
	}
	ad.Status = status
	return ad, nil
}

func (s *AdService) AdMetrics(ctx context.Context, adID, actorID, actorRole string) (*AdStats, error) {
	ad, err := s.ownedAd(ctx, adID, actorID, actorRole)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Type  string
		Count int64
		Total decimal.Decimal
	}
	if err := s.DB.WithContext(ctx).Model(&models.AdMetric{}).
		Select("type, COUNT(*) AS count, COALESCE(" + roundMoney("SUM(cost)") + ", 0) AS total").
		Where("ad_id = ?", adID).
		Group("type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := &AdStats{Ad: *ad, TotalCost: decimal.Zero}
	for _, r := range rows {
		switch r.Type {
		case models.MetricView:
			stats.Views = r.Count
		case models.MetricClick:
			stats.Clicks = r.Count
		}
		stats.TotalCost = stats.TotalCost.Add(r.Total)
	}

	if err := s.DB.WithContext(ctx).
		Where("ad_id = ?", adID).
		Order("created_at DESC").
		Limit(50).
		Find(&stats.Recent).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// CreditWallet tops up a sponsor wallet.
func (s *AdService) CreditWallet(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error) {
	amount = amount.Round(models.MoneyScale)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive: %w", ErrValidation)
	}
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("wallet_balance", gorm.Expr(roundMoney("wallet_balance + ?"), amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	log.Printf("[Ads] 💰 Wallet of %s credited with %s", userID, amount.String())
	return &user, nil
}

func (s *AdService) Wallet(ctx context.Context, userID string) (*WalletSummary, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil, err
	}
	var spent struct{ Total decimal.Decimal }
	if err := s.DB.WithContext(ctx).Model(&models.AdMetric{}).
		Select("COALESCE(" + roundMoney("SUM(cost)") + ", 0) AS total").
		Where("sponsor_id = ?", userID).
		Scan(&spent).Error; err != nil {
		return nil, err
	}
	return &WalletSummary{UserID: user.ID, Balance: user.WalletBalance, TotalSpent: spent.Total}, nil
}

// ExhaustSpentAds retires active ads whose budget is used up and tells their sponsors.
func (s *AdService) ExhaustSpentAds(ctx context.Context) (int64, error) {
	var spent []models.Ad
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND budget_spent >= budget_total", models.AdStatusActive).
		Find(&spent).Error; err != nil {
		return 0, err
	}

	var retired int64
	for _, ad := range spent {
		res := s.DB.WithContext(ctx).Model(&models.Ad{}).
			Where("id = ? AND status = ?", ad.ID, models.AdStatusActive).
			Update("status", models.AdStatusExhausted)
		if res.Error != nil {
			return retired, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		retired++
		s.notifyExhausted(ctx, ad)
	}
	return retired, nil
}

func (s *AdService) notifyExhausted(ctx context.Context, ad models.Ad) {
	var sponsor models.User
	if err := s.DB.WithContext(ctx).First(&sponsor, "id = ?", ad.SponsorID).Error; err != nil {
		log.Printf("[Ads] ⚠️ sponsor %s of ad %s not found: %v", ad.SponsorID, ad.ID, err)
		return
	}
	text := fmt.Sprintf("Hi %s, your ad %q has spent its budget of %s and is no longer shown.",
		sponsor.Username, ad.Title, ad.BudgetTotal.StringFixed(2))

	if s.Mailer != nil {
		if err := s.Mailer.Send(ctx, mail.Message{
			To:      sponsor.Email,
			Name:    sponsor.Username,
			Subject: "Your ad budget is used up",
			Text:    text,
		}); err != nil {
			log.Printf("[Ads] ⚠️ mail to %s failed: %v", sponsor.Email, err)
		}
	}
	if s.Notifier != nil {
		s.Notifier.EmitToUser(sponsor.ID, "new_notification", map[string]interface{}{
			"type":    "ad_exhausted",
			"message": text,
			"ad_id":   ad.ID,
		})
	}
}
