package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/hlog"
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`

	// diisi hanya untuk insufficient stock
	ProductID   string `json:"productId,omitempty"`
	ProductName string `json:"productName,omitempty"`
	Requested   *int   `json:"requested,omitempty"`
	Available   *int   `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrNotAdmin), errors.Is(err, orders.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, orders.ErrOwnerNotFound),
		errors.Is(err, orders.ErrProductNotFound),
		errors.Is(err, orders.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrAlreadyFinalized),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrIdempotencyConflict):
		return http.StatusConflict
	case errors.Is(err, orders.ErrEmptyOrder),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrInvalidContact),
		errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrTransactionFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var ise *orders.InsufficientStockError
	if errors.As(err, &ise) {
		resp.ProductID = ise.ProductID.String()
		resp.ProductName = ise.ProductName
		resp.Requested = &ise.Requested
		resp.Available = &ise.Available
	}

	switch code {
	case http.StatusInternalServerError:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		resp.Error = "internal server error"
	case http.StatusServiceUnavailable:
		hlog.FromRequest(r).Warn().Err(err).Msg("transaction failed")
		resp.Error = "temporarily unavailable, please retry"
	case http.StatusUnauthorized:
		resp.Error = "unauthenticated"
	}
	writeJSON(w, code, resp)
}

func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		hlog.FromRequest(r).Error().Err(err).Msg("unexpected validation error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal validation error"})
		return
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Namespace()] = fe.Tag()
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: details})
}
