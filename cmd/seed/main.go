package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"xraymed-saas/internal/config"
	"xraymed-saas/internal/domain"
	"xraymed-saas/internal/domain/model"
	"xraymed-saas/internal/domain/ports/repository"
	pg "xraymed-saas/internal/infra/db/postgres"
	"xraymed-saas/internal/infra/web"
)

// Seeds the schema, a demo admin and doctor account, and two sample coupons,
// then prints bearer tokens for exercising the API by hand.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if err := pg.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema ensured")

	accounts := pg.NewAccountRepo(pool)
	coupons := pg.NewCouponRepo(pool)
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, 30*24*time.Hour)

	seedAccounts := []struct {
		Email string
		Name  string
		Admin bool
	}{
		{"admin@xraymed.test", "Admin", true},
		{"doctor@xraymed.test", "Demo Doctor", false},
	}

	for _, s := range seedAccounts {
		existing, err := accounts.FindByEmail(ctx, repository.NoTX, s.Email)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Fatalf("find account %s: %v", s.Email, err)
		}
		if existing != nil {
			fmt.Printf("account %s already present (id=%s)\n", s.Email, existing.ID)
			printToken(auth, existing.ID, existing.IsAdmin)
			continue
		}
		a, err := model.NewAccount("", s.Email, s.Name)
		if err != nil {
			log.Fatalf("new account %s: %v", s.Email, err)
		}
		a.IsAdmin = s.Admin
		if err := accounts.Save(ctx, repository.NoTX, a); err != nil {
			log.Fatalf("save account %s: %v", s.Email, err)
		}
		fmt.Printf("seeded account %s (id=%s, admin=%v, credits=%d)\n", s.Email, a.ID, a.IsAdmin, a.Credits)
		printToken(auth, a.ID, a.IsAdmin)
	}

	ten := int64(100)
	seedCoupons := []struct {
		Code    string
		Kind    model.CouponKind
		Value   int64
		MaxUses *int64
	}{
		{"SAVE10", model.CouponPercentage, 10, &ten},
		{"WELCOME500", model.CouponFixedAmount, 500, nil},
	}

	for _, s := range seedCoupons {
		c, err := model.NewCoupon(s.Code, s.Kind, s.Value, s.MaxUses, time.Now(), nil)
		if err != nil {
			log.Fatalf("new coupon %s: %v", s.Code, err)
		}
		if err := coupons.Save(ctx, repository.NoTX, c); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				fmt.Printf("coupon %s already present\n", s.Code)
				continue
			}
			log.Fatalf("save coupon %s: %v", s.Code, err)
		}
		fmt.Printf("seeded coupon %s (%s %d)\n", c.Code, c.Kind, c.Value)
	}

	fmt.Println("seeding complete")
}

func printToken(auth *web.AuthManager, accountID string, admin bool) {
	tok, err := auth.Mint(accountID, admin)
	if err != nil {
		log.Fatalf("mint token for %s: %v", accountID, err)
	}
	fmt.Printf("  bearer: %s\n", tok)
}
