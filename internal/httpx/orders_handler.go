package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
)

type OrdersHandler struct {
	Checkout *orders.Checkout
	Orders   *orders.Service
	Cache    OrderCache
	Validate *validator.Validate
	Timeout  time.Duration
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders", h.listMine)
	r.Post("/orders", h.createOrder)
	r.Post("/orders/from-cart", h.createFromCart)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Patch("/orders/{id}", h.updateOrder)
	r.Delete("/orders/{id}", h.deleteOrder)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decode(w, r, h.Validate, &req) {
		return
	}
	items := make([]orders.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, orders.ItemInput{ProductID: uuid.MustParse(it.ProductID), Quantity: it.Quantity})
	}
	h.checkout(w, r, orders.Request{Address: req.Address, Phone: req.Phone, Items: items}, h.Checkout.CreateFromItems)
}

func (h *OrdersHandler) createFromCart(w http.ResponseWriter, r *http.Request) {
	var req cartCheckoutRequest
	if !decode(w, r, h.Validate, &req) {
		return
	}
	h.checkout(w, r, orders.Request{Address: req.Address, Phone: req.Phone}, h.Checkout.CreateFromCart)
}

type checkoutFunc func(ctx context.Context, req orders.Request) (*orders.Order, bool, error)

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request, req orders.Request, run checkoutFunc) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	who := requester(r)
	req.OwnerID = who.OwnerID
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get(headerIdempotencyKey))

	// Fast-path idempotency via Redis (optional, DB tetap jadi kebenaran)
	if req.IdempotencyKey != "" && h.Cache != nil {
		if id, ok, err := h.Cache.LookupIdempotency(ctx, who.OwnerID, req.IdempotencyKey); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("idempotency cache lookup")
		} else if ok {
			o, err := h.Orders.Get(ctx, who, id)
			if err == nil {
				w.Header().Set(headerReplayed, "true")
				writeJSON(w, http.StatusOK, toOrderResponse(o))
				return
			}
			if !errors.Is(err, orders.ErrOrderNotFound) {
				writeError(w, r, err)
				return
			}
		}
	}

	o, replayed, err := run(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.Cache != nil {
		if req.IdempotencyKey != "" {
			if err := h.Cache.RememberIdempotency(ctx, who.OwnerID, req.IdempotencyKey, o.ID); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("idempotency cache write")
			}
		}
		h.cacheStatus(ctx, r, o)
	}

	if replayed {
		w.Header().Set(headerReplayed, "true")
		writeJSON(w, http.StatusOK, toOrderResponse(o))
		return
	}
	w.Header().Set("Location", "/orders/"+o.ID.String())
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	list, err := h.Orders.ListMine(ctx, requester(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(list))
}

func (h *OrdersHandler) listAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	list, err := h.Orders.ListAll(ctx, requester(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(list))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	o, err := h.Orders.Get(ctx, requester(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	who := requester(r)

	// 1) coba cache; entry milik orang lain jatuh ke DB supaya dapat 403 yang benar
	if h.Cache != nil {
		e, ok, err := h.Cache.GetStatus(ctx, id)
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("status cache read")
		}
		if ok && (who.Admin || e.OwnerID == who.OwnerID.String()) {
			writeJSON(w, http.StatusOK, statusResponse{OrderID: id.String(), Status: e.Status})
			return
		}
	}

	// 2) fallback DB
	o, err := h.Orders.Get(ctx, who, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cacheStatus(ctx, r, o)
	writeJSON(w, http.StatusOK, statusResponse{OrderID: o.ID.String(), Status: o.Status.String()})
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateOrderRequest
	if !decode(w, r, h.Validate, &req) {
		return
	}
	u := orders.Update{Status: req.Status, Address: req.Address, Phone: req.Phone}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	o, err := h.Orders.Update(ctx, requester(r), id, u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cacheStatus(ctx, r, o)
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if err := h.Orders.Delete(ctx, requester(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.EvictStatus(ctx, id); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("status cache evict")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cache status agar GET cepat
func (h *OrdersHandler) cacheStatus(ctx context.Context, r *http.Request, o *orders.Order) {
	if h.Cache == nil {
		return
	}
	e := redisx.StatusEntry{Status: o.Status.String(), OwnerID: o.OwnerID.String(), UpdatedAt: o.UpdatedAt}
	if err := h.Cache.SetStatus(ctx, o.ID, e); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("status cache write")
	}
}
