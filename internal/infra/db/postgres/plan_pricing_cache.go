package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"finance-tracker/internal/domain/model"
	"finance-tracker/internal/domain/ports/repository"
	"finance-tracker/internal/infra/metrics"
	"finance-tracker/internal/infra/redis"
)

const pricingCacheName = "plan_pricing"

// CachedPlanPricingRepo fronts a PlanPricingRepository with a Redis
// cache on the hot Resolve path. Cache failures degrade to the
// underlying repository, never to an error.
type CachedPlanPricingRepo struct {
	inner repository.PlanPricingRepository
	redis redis.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

var _ repository.PlanPricingRepository = (*CachedPlanPricingRepo)(nil)

func NewCachedPlanPricingRepo(inner repository.PlanPricingRepository, rc redis.RedisClient, ttl time.Duration, logger *zerolog.Logger) *CachedPlanPricingRepo {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedPlanPricingRepo{inner: inner, redis: rc, ttl: ttl, log: logger}
}

func pricingKey(plan model.Plan, currency string) string {
	return fmt.Sprintf("pricing:%s:%s", plan, currency)
}

func (r *CachedPlanPricingRepo) FindActive(ctx context.Context, tx repository.Tx, plan model.Plan, currency string) (*model.PlanPricing, error) {
	key := pricingKey(plan, currency)
	if raw, err := r.redis.Get(ctx, key); err == nil {
		var pp model.PlanPricing
		if err := json.Unmarshal([]byte(raw), &pp); err == nil {
			metrics.IncCacheRequest(pricingCacheName, "hit")
			return &pp, nil
		}
		r.log.Warn().Str("key", key).Msg("dropping undecodable pricing cache entry")
		_ = r.redis.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		r.log.Warn().Err(err).Str("key", key).Msg("pricing cache read failed")
	}
	metrics.IncCacheRequest(pricingCacheName, "miss")

	pp, err := r.inner.FindActive(ctx, tx, plan, currency)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(pp); err == nil {
		if err := r.redis.Set(ctx, key, string(data), r.ttl); err != nil {
			r.log.Warn().Err(err).Str("key", key).Msg("pricing cache write failed")
		}
	}
	return pp, nil
}

// Save writes through and invalidates the cached entry for the pair.
func (r *CachedPlanPricingRepo) Save(ctx context.Context, tx repository.Tx, pp *model.PlanPricing) error {
	if err := r.inner.Save(ctx, tx, pp); err != nil {
		return err
	}
	if err := r.redis.Del(ctx, pricingKey(pp.Plan, pp.Currency)); err != nil {
		r.log.Warn().Err(err).Str("plan", string(pp.Plan)).Msg("pricing cache invalidation failed")
	}
	return nil
}

func (r *CachedPlanPricingRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PlanPricing, error) {
	return r.inner.FindByID(ctx, tx, id)
}

func (r *CachedPlanPricingRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PlanPricing, error) {
	return r.inner.ListActive(ctx, tx)
}

func (r *CachedPlanPricingRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.PlanPricing, error) {
	return r.inner.ListAll(ctx, tx)
}
