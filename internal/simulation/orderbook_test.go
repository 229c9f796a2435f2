package simulation

import (
	"testing"
	"time"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestOrderBook_ArrivalDate(t *testing.T) {
	book := NewOrderBook()

	order, placed := book.PlaceOrder("sku-1", 120, date("2024-01-10"), 5)
	if !placed {
		t.Fatal("expected order to be placed")
	}
	if !order.ArrivalDate.Equal(date("2024-01-15")) {
		t.Errorf("ArrivalDate = %v, want 2024-01-15", order.ArrivalDate)
	}
	if !order.ArrivalDate.Equal(order.OrderDate.AddDate(0, 0, order.LeadTimeDays)) {
		t.Error("arrival date must equal order date plus lead time")
	}
}

func TestOrderBook_SingleOutstandingOrder(t *testing.T) {
	book := NewOrderBook()

	if _, placed := book.PlaceOrder("sku-1", 100, date("2024-01-10"), 5); !placed {
		t.Fatal("first order should be placed")
	}
	if _, placed := book.PlaceOrder("sku-1", 50, date("2024-01-12"), 5); placed {
		t.Error("second order for the same item must be rejected while one is in transit")
	}
	if !book.HasInTransit("sku-1") {
		t.Error("expected sku-1 in transit")
	}

	// A different item is unaffected.
	if _, placed := book.PlaceOrder("sku-2", 30, date("2024-01-12"), 3); !placed {
		t.Error("order for another item should be placed")
	}

	// The invariant holds over the whole book: at most one unreceived
	// order per item.
	unreceived := make(map[string]int)
	for _, o := range book.Orders() {
		if !o.Received {
			unreceived[o.ItemID]++
		}
	}
	for item, n := range unreceived {
		if n > 1 {
			t.Errorf("item %s has %d unreceived orders", item, n)
		}
	}
}

func TestOrderBook_ReceiveCycle(t *testing.T) {
	book := NewOrderBook()
	order, _ := book.PlaceOrder("sku-1", 100, date("2024-01-10"), 5)

	if got := book.OrdersArriving(date("2024-01-14")); len(got) != 0 {
		t.Errorf("orders arriving a day early = %d, want 0", len(got))
	}

	arriving := book.OrdersArriving(date("2024-01-15"))
	if len(arriving) != 1 || arriving[0] != order {
		t.Fatalf("expected the placed order to arrive on 2024-01-15")
	}

	book.MarkReceived(order)
	if !order.Received {
		t.Error("order should be marked received")
	}
	if book.HasInTransit("sku-1") {
		t.Error("received order must free the in-transit slot")
	}
	if got := book.OrdersArriving(date("2024-01-15")); len(got) != 0 {
		t.Errorf("received orders must not arrive again, got %d", len(got))
	}

	// The state machine allows a new order once the previous one arrived.
	if _, placed := book.PlaceOrder("sku-1", 60, date("2024-01-20"), 5); !placed {
		t.Error("new order after receipt should be placed")
	}

	// Orders are never deleted, only flipped to received.
	if len(book.Orders()) != 2 {
		t.Errorf("order log = %d entries, want 2", len(book.Orders()))
	}
}
