// Package simulation replays a historical period day by day, deciding when
// a policy-driven agent would have reordered and comparing that to what
// actually happened.
package simulation

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stocksense/stocksense/internal/domain"
)

// OrderBook tracks outstanding simulated orders and their arrival dates for
// one run. It is exclusively owned by its orchestrator; no locking.
type OrderBook struct {
	orders    []*domain.SimulatedOrder
	inTransit map[string]*domain.SimulatedOrder
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		inTransit: make(map[string]*domain.SimulatedOrder),
	}
}

// PlaceOrder creates a simulated order arriving lead-time days after the
// order date. An item with an order already in transit keeps it: the
// placement is rejected as a logged no-op, preserving the at-most-one
// outstanding order invariant.
func (b *OrderBook) PlaceOrder(itemID string, quantity float64, orderDate time.Time, leadTimeDays int) (*domain.SimulatedOrder, bool) {
	if existing, ok := b.inTransit[itemID]; ok {
		log.Debug().
			Str("item_id", itemID).
			Time("order_date", orderDate).
			Time("pending_arrival", existing.ArrivalDate).
			Msg("order rejected, item already has an order in transit")
		return nil, false
	}

	order := &domain.SimulatedOrder{
		ItemID:       itemID,
		OrderDate:    orderDate,
		ArrivalDate:  orderDate.AddDate(0, 0, leadTimeDays),
		Quantity:     quantity,
		LeadTimeDays: leadTimeDays,
	}
	b.orders = append(b.orders, order)
	b.inTransit[itemID] = order
	return order, true
}

// OrdersArriving returns the unreceived orders whose arrival date equals
// date. The caller applies the quantity to stock and then calls
// MarkReceived.
func (b *OrderBook) OrdersArriving(date time.Time) []*domain.SimulatedOrder {
	var arriving []*domain.SimulatedOrder
	for _, o := range b.orders {
		if !o.Received && o.ArrivalDate.Equal(date) {
			arriving = append(arriving, o)
		}
	}
	return arriving
}

// MarkReceived flips the order's received flag and frees the item's
// in-transit slot. Orders are never deleted.
func (b *OrderBook) MarkReceived(order *domain.SimulatedOrder) {
	order.Received = true
	if current, ok := b.inTransit[order.ItemID]; ok && current == order {
		delete(b.inTransit, order.ItemID)
	}
}

// HasInTransit reports whether an unreceived order exists for the item.
func (b *OrderBook) HasInTransit(itemID string) bool {
	_, ok := b.inTransit[itemID]
	return ok
}

// Orders returns every order placed during the run, received or not.
func (b *OrderBook) Orders() []*domain.SimulatedOrder {
	return b.orders
}
