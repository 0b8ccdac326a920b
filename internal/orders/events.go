package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderDeleted       = "OrderDeleted"
)

const EventVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// Event is what the services hand to a Publisher once a transaction has
// committed. The transport wraps it in an Envelope.
type Event struct {
	Type    string
	OrderID uuid.UUID
	TraceID string
	Payload any
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type ItemPrice struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID   string      `json:"order_id"`
	OwnerID   string      `json:"owner_id"`
	Status    string      `json:"status"`
	Items     []ItemPrice `json:"items"`
	Total     string      `json:"total"`
	OrderDate time.Time   `json:"order_date"`
}

type OrderStatusChangedPayload struct {
	OrderID   string    `json:"order_id"`
	OwnerID   string    `json:"owner_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderCancelledPayload struct {
	OrderID  string    `json:"order_id"`
	OwnerID  string    `json:"owner_id"`
	Released []ItemQty `json:"released"`
}

type OrderDeletedPayload struct {
	OrderID  string    `json:"order_id"`
	OwnerID  string    `json:"owner_id"`
	Released []ItemQty `json:"released,omitempty"`
}

func orderCreated(o *Order) Event {
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{
			ProductID: it.ProductID.String(),
			Qty:       it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}
	return Event{
		Type:    EventOrderCreated,
		OrderID: o.ID,
		Payload: OrderCreatedPayload{
			OrderID:   o.ID.String(),
			OwnerID:   o.OwnerID.String(),
			Status:    o.Status.String(),
			Items:     items,
			Total:     o.Total().StringFixed(2),
			OrderDate: o.OrderDate,
		},
	}
}

func statusChanged(o *Order, from Status) Event {
	return Event{
		Type:    EventOrderStatusChanged,
		OrderID: o.ID,
		Payload: OrderStatusChangedPayload{
			OrderID:   o.ID.String(),
			OwnerID:   o.OwnerID.String(),
			From:      from.String(),
			To:        o.Status.String(),
			UpdatedAt: o.UpdatedAt,
		},
	}
}

func orderCancelled(o *Order, released []OrderItem) Event {
	return Event{
		Type:    EventOrderCancelled,
		OrderID: o.ID,
		Payload: OrderCancelledPayload{
			OrderID:  o.ID.String(),
			OwnerID:  o.OwnerID.String(),
			Released: toItemQty(released),
		},
	}
}

func orderDeleted(o *Order, released []OrderItem) Event {
	return Event{
		Type:    EventOrderDeleted,
		OrderID: o.ID,
		Payload: OrderDeletedPayload{
			OrderID:  o.ID.String(),
			OwnerID:  o.OwnerID.String(),
			Released: toItemQty(released),
		},
	}
}

func toItemQty(items []OrderItem) []ItemQty {
	if len(items) == 0 {
		return nil
	}
	out := make([]ItemQty, 0, len(items))
	for _, it := range items {
		out = append(out, ItemQty{ProductID: it.ProductID.String(), Qty: it.Quantity})
	}
	return out
}
