package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/go-playground/validator/v10"
)

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=100000"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,max=100000"`
}

type orderItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	Address string             `json:"address" validate:"max=500"`
	Phone   string             `json:"phone" validate:"max=32"`
	Items   []orderItemRequest `json:"items" validate:"dive"`
}

type cartCheckoutRequest struct {
	Address string `json:"address" validate:"max=500"`
	Phone   string `json:"phone" validate:"max=32"`
}

type updateOrderRequest struct {
	Status  *string `json:"status"`
	Address *string `json:"address" validate:"omitempty,max=500"`
	Phone   *string `json:"phone" validate:"omitempty,max=32"`
}

type cartLineResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	LineTotal string `json:"lineTotal"`
	Available bool   `json:"available"`
}

type cartResponse struct {
	OwnerID    string             `json:"ownerId"`
	Items      []cartLineResponse `json:"items"`
	TotalPrice string             `json:"totalPrice"`
}

type orderItemResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	LineTotal string `json:"lineTotal"`
}

type orderResponse struct {
	OrderID     string              `json:"orderId"`
	OwnerID     string              `json:"ownerId"`
	Status      string              `json:"status"`
	OrderDate   time.Time           `json:"orderDate"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	Address     string              `json:"address"`
	Phone       string              `json:"phone"`
	Items       []orderItemResponse `json:"items"`
	TotalAmount string              `json:"totalAmount"`
}

type statusResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type availabilityResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Available bool   `json:"available"`
}

func toCartLines(lines []orders.PricedLine) []cartLineResponse {
	out := make([]cartLineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, cartLineResponse{
			ProductID: l.ProductID.String(),
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			LineTotal: l.LineTotal.StringFixed(2),
			Available: l.Available,
		})
	}
	return out
}

func toCartResponse(c orders.Cart) cartResponse {
	return cartResponse{
		OwnerID:    c.OwnerID.String(),
		Items:      toCartLines(c.Items),
		TotalPrice: c.TotalPrice.StringFixed(2),
	}
}

func toOrderResponse(o *orders.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: it.ProductID.String(),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			LineTotal: it.LineTotal().StringFixed(2),
		})
	}
	return orderResponse{
		OrderID:     o.ID.String(),
		OwnerID:     o.OwnerID.String(),
		Status:      o.Status.String(),
		OrderDate:   o.OrderDate,
		UpdatedAt:   o.UpdatedAt,
		Address:     o.Address,
		Phone:       o.Phone,
		Items:       items,
		TotalAmount: o.Total().StringFixed(2),
	}
}

func toOrderList(list []orders.Order) []orderResponse {
	out := make([]orderResponse, 0, len(list))
	for i := range list {
		out = append(out, toOrderResponse(&list[i]))
	}
	return out
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid json: %v", errBadRequest, err))
		return false
	}
	if err := v.Struct(dst); err != nil {
		writeValidationError(w, r, err)
		return false
	}
	return true
}
