package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"xraymed-saas/internal/domain/model"
	"xraymed-saas/internal/domain/ports/repository"
	"xraymed-saas/internal/infra/metrics"
	red "xraymed-saas/internal/infra/redis"
)

var _ repository.CouponRepository = (*couponRepoCacheDecorator)(nil)

// couponRepoCacheDecorator caches coupon reads by code. Lookups running inside
// a transaction bypass the cache: the billing path needs the FOR UPDATE read
// and must never act on a stale used_count.
type couponRepoCacheDecorator struct {
	inner repository.CouponRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewCouponRepoCacheDecorator(inner repository.CouponRepository, cache red.RedisClient, ttl time.Duration) repository.CouponRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &couponRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func couponCodeKey(code string) string { return fmt.Sprintf("coupon:code:%s", code) }

func (d *couponRepoCacheDecorator) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	if _, ok := tx.(pgx.Tx); ok {
		return d.inner.FindByCode(ctx, tx, code)
	}

	key := couponCodeKey(code)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		metrics.IncCacheRequest("coupon", "hit")
		var c model.Coupon
		if json.Unmarshal([]byte(val), &c) == nil {
			return &c, nil
		}
	}

	metrics.IncCacheRequest("coupon", "miss")
	c, err := d.inner.FindByCode(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if c != nil {
		bytes, _ := json.Marshal(c)
		d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return c, nil
}

func (d *couponRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Coupon, error) {
	return d.inner.FindByID(ctx, tx, id)
}

func (d *couponRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Coupon, error) {
	return d.inner.ListAll(ctx, tx)
}

func (d *couponRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	d.cache.Del(ctx, couponCodeKey(c.Code))
	return d.inner.Save(ctx, tx, c)
}

func (d *couponRepoCacheDecorator) Delete(ctx context.Context, tx repository.Tx, id string) error {
	if c, err := d.inner.FindByID(ctx, tx, id); err == nil && c != nil {
		d.cache.Del(ctx, couponCodeKey(c.Code))
	}
	return d.inner.Delete(ctx, tx, id)
}

func (d *couponRepoCacheDecorator) IncrementUsedCount(ctx context.Context, tx repository.Tx, couponID string) (bool, error) {
	ok, err := d.inner.IncrementUsedCount(ctx, tx, couponID)
	if err == nil && ok {
		if c, ferr := d.inner.FindByID(ctx, tx, couponID); ferr == nil && c != nil {
			d.cache.Del(ctx, couponCodeKey(c.Code))
		}
	}
	return ok, err
}

func (d *couponRepoCacheDecorator) HasRedemption(ctx context.Context, tx repository.Tx, couponID, accountID string) (bool, error) {
	return d.inner.HasRedemption(ctx, tx, couponID, accountID)
}

func (d *couponRepoCacheDecorator) InsertRedemption(ctx context.Context, tx repository.Tx, r *model.CouponRedemption) error {
	return d.inner.InsertRedemption(ctx, tx, r)
}
