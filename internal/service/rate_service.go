package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-api/internal/models"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
)

const rateCacheKey = "rates:current"

type exchangeRateRepo interface {
	Current(ctx context.Context) (*models.ExchangeRate, error)
	Supersede(ctx context.Context, rate *models.ExchangeRate) error
	History(ctx context.Context, limit int) ([]models.ExchangeRate, error)
}

// SetRateRequest supersedes the current exchange rate.
type SetRateRequest struct {
	Rate      decimal.Decimal `json:"rate" validate:"required"`
	CreatedBy string          `json:"-"`
}

// RateService manages the versioned exchange rate. The current rate is
// the hottest read in the system, so it sits behind the redis cache.
type RateService struct {
	rates     exchangeRateRepo
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRateService constructs RateService.
func NewRateService(rates exchangeRateRepo, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *RateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &RateService{rates: rates, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Current returns the rate in force.
func (s *RateService) Current(ctx context.Context) (*models.ExchangeRate, error) {
	var cached models.ExchangeRate
	if s.cache.Get(ctx, rateCacheKey, &cached) {
		return &cached, nil
	}

	rate, err := s.rates.Current(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no exchange rate configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exchange rate")
	}
	s.cache.Set(ctx, rateCacheKey, rate, s.cacheTTL)
	return rate, nil
}

// Set supersedes the current rate with a new one. The old row keeps its
// validity window closed at the hand-over instant, so historical payments
// stay explainable.
func (s *RateService) Set(ctx context.Context, req SetRateRequest) (*models.ExchangeRate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rate payload")
	}
	if !req.Rate.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrInvalidRate, "")
	}

	rate := &models.ExchangeRate{
		Rate:      req.Rate,
		ValidFrom: time.Now().UTC(),
		CreatedBy: req.CreatedBy,
	}
	if err := s.rates.Supersede(ctx, rate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to supersede exchange rate")
	}
	s.cache.Invalidate(ctx, rateCacheKey)
	s.logger.Info("exchange rate superseded",
		zap.String("rate", rate.Rate.String()),
		zap.String("created_by", rate.CreatedBy))
	return rate, nil
}

// History returns recent rate rows, newest first.
func (s *RateService) History(ctx context.Context, limit int) ([]models.ExchangeRate, error) {
	rates, err := s.rates.History(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exchange rates")
	}
	return rates, nil
}
