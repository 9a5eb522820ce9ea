package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
)

// EnsureSchema creates the billing tables when they do not exist yet. The
// seeder and test harnesses call it; production deployments usually run the
// same DDL through their migration tooling.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS accounts (
  id                    TEXT PRIMARY KEY,
  email                 TEXT NOT NULL UNIQUE,
  name                  TEXT NOT NULL,
  is_admin              BOOLEAN NOT NULL DEFAULT FALSE,
  tier                  TEXT NOT NULL DEFAULT 'free',
  credits               BIGINT NOT NULL DEFAULT 0,
  credit_expiry         TIMESTAMPTZ,
  last_credit_update_at TIMESTAMPTZ,
  registered_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS coupons (
  id          TEXT PRIMARY KEY,
  code        TEXT NOT NULL UNIQUE,
  kind        TEXT NOT NULL,
  value       BIGINT NOT NULL,
  max_uses    BIGINT,
  used_count  BIGINT NOT NULL DEFAULT 0,
  valid_from  TIMESTAMPTZ NOT NULL,
  valid_until TIMESTAMPTZ,
  is_active   BOOLEAN NOT NULL DEFAULT TRUE,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS coupon_redemptions (
  coupon_id   TEXT NOT NULL REFERENCES coupons(id) ON DELETE CASCADE,
  account_id  TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
  redeemed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (coupon_id, account_id)
);

CREATE TABLE IF NOT EXISTS orders (
  id              TEXT PRIMARY KEY,
  account_id      TEXT NOT NULL REFERENCES accounts(id),
  plan_id         TEXT NOT NULL,
  cadence         TEXT NOT NULL,
  coupon_id       TEXT REFERENCES coupons(id),
  base_amount     BIGINT NOT NULL,
  discount_amount BIGINT NOT NULL DEFAULT 0,
  final_amount    BIGINT NOT NULL,
  gateway_handle  TEXT NOT NULL UNIQUE,
  status          TEXT NOT NULL DEFAULT 'pending',
  created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_orders_account ON orders(account_id, created_at DESC);

CREATE TABLE IF NOT EXISTS subscriptions (
  id           TEXT PRIMARY KEY,
  account_id   TEXT NOT NULL REFERENCES accounts(id),
  order_id     TEXT NOT NULL REFERENCES orders(id),
  plan_id      TEXT NOT NULL,
  start_date   TIMESTAMPTZ NOT NULL,
  end_date     TIMESTAMPTZ NOT NULL,
  status       TEXT NOT NULL DEFAULT 'active',
  auto_renew   BOOLEAN NOT NULL DEFAULT FALSE,
  cancelled_at TIMESTAMPTZ,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_account_status ON subscriptions(account_id, status);
CREATE INDEX IF NOT EXISTS idx_subscriptions_due ON subscriptions(end_date) WHERE status = 'active';
`
	_, err := pool.Exec(ctx, ddl)
	return err
}
