package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// OrderCache is the optional Redis layer in front of the order endpoints.
type OrderCache interface {
	LookupIdempotency(ctx context.Context, owner uuid.UUID, key string) (uuid.UUID, bool, error)
	RememberIdempotency(ctx context.Context, owner uuid.UUID, key string, orderID uuid.UUID) error
	GetStatus(ctx context.Context, orderID uuid.UUID) (redisx.StatusEntry, bool, error)
	SetStatus(ctx context.Context, orderID uuid.UUID, e redisx.StatusEntry) error
	EvictStatus(ctx context.Context, orderID uuid.UUID) error
}

type Deps struct {
	Auth     *auth.Authenticator
	Cart     *cart.Service
	Checkout *orders.Checkout
	Orders   *orders.Service
	Cache    OrderCache // nil: tanpa Redis
	Timeout  time.Duration
}

func NewRouter(d Deps) *chi.Mux {
	if d.Timeout <= 0 {
		d.Timeout = 5 * time.Second
	}
	v := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(requestIDField)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", dur).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ch := &CartHandler{Cart: d.Cart, Validate: v, Timeout: d.Timeout}
	oh := &OrdersHandler{Checkout: d.Checkout, Orders: d.Orders, Cache: d.Cache, Validate: v, Timeout: d.Timeout}

	r.Group(func(r chi.Router) {
		r.Use(d.Auth.Middleware(writeError))
		ch.Register(r)
		oh.Register(r)
		r.With(auth.RequireAdmin(writeError)).Get("/admin/orders", oh.listAll)
	})
	return r
}

// requestIDField copies chi's request id into the request logger.
func requestIDField(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			l := hlog.FromRequest(r).With().Str("request_id", id).Logger()
			r = r.WithContext(l.WithContext(r.Context()))
		}
		next.ServeHTTP(w, r)
	})
}

func requester(r *http.Request) orders.Requester {
	id, _ := auth.FromContext(r.Context())
	return orders.Requester{OwnerID: id.OwnerID, Admin: id.Admin}
}
