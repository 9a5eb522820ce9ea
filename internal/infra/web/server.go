package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"xraymed-saas/internal/infra/logging"
	red "xraymed-saas/internal/infra/redis"
	"xraymed-saas/internal/usecase"
)

// Server wires the billing HTTP surface onto a chi router.
type Server struct {
	billingUC usecase.BillingUseCase
	couponUC  usecase.CouponUseCase
	creditUC  usecase.CreditUseCase
	statsUC   usecase.StatsUseCase
	auth      *AuthManager
	limiter   *red.RateLimiter
	log       *zerolog.Logger
}

func NewServer(
	billingUC usecase.BillingUseCase,
	couponUC usecase.CouponUseCase,
	creditUC usecase.CreditUseCase,
	statsUC usecase.StatsUseCase,
	auth *AuthManager,
	limiter *red.RateLimiter,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		billingUC: billingUC,
		couponUC:  couponUC,
		creditUC:  creditUC,
		statsUC:   statsUC,
		auth:      auth,
		limiter:   limiter,
		log:       &l,
	}
}

// Router builds the full route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(s.requestID)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Authenticate)

		r.Route("/billing", func(r chi.Router) {
			r.With(s.rateLimit("purchase", 10, time.Minute)).
				Post("/purchase", purchaseHandler(s.billingUC))
			r.With(s.rateLimit("verify", 30, time.Minute)).
				Post("/verify", verifyHandler(s.billingUC))
			r.Post("/cancel", cancelHandler(s.billingUC))
			r.Get("/preview-coupon", previewCouponHandler(s.couponUC))
			r.Get("/subscription", subscriptionHandler(s.billingUC))
			r.Get("/orders", ordersHandler(s.billingUC))
		})

		r.Route("/credits", func(r chi.Router) {
			r.Get("/balance", creditBalanceHandler(s.creditUC))
			r.Post("/debit", creditDebitHandler(s.creditUC))
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/", couponListHandler(s.couponUC))
			r.Post("/", couponCreateHandler(s.couponUC))
			r.Get("/{id}", couponGetHandler(s.couponUC))
			r.Put("/{id}", couponUpdateHandler(s.couponUC))
			r.Delete("/{id}", couponDeleteHandler(s.couponUC))
		})

		r.With(RequireAdmin).Get("/admin/stats", statsHandler(s.statsUC))
	})

	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", rid)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), rid)))
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.With(r.Context(), s.log).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	})
}

// rateLimit applies a fixed-window per-account limit to one route. A Redis
// outage fails open; throttling is not worth refusing payments for.
func (s *Server) rateLimit(route string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			allowed, err := s.limiter.Allow(r.Context(), red.AccountRouteKey(p.AccountID, route), limit, window)
			if err != nil {
				s.log.Warn().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
