package domain

import "testing"

func TestOrderStatusCanTransitionTo(t *testing.T) {
	cases := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{"pending to processing", OrderStatusPending, OrderStatusProcessing, true},
		{"pending to cancelled", OrderStatusPending, OrderStatusCancelled, true},
		{"processing to shipped", OrderStatusProcessing, OrderStatusShipped, true},
		{"shipped to delivered", OrderStatusShipped, OrderStatusDelivered, true},
		{"pending to shipped skips a state", OrderStatusPending, OrderStatusShipped, false},
		{"pending to delivered skips states", OrderStatusPending, OrderStatusDelivered, false},
		{"processing to cancelled", OrderStatusProcessing, OrderStatusCancelled, false},
		{"processing to pending reverses", OrderStatusProcessing, OrderStatusPending, false},
		{"delivered is terminal", OrderStatusDelivered, OrderStatusPending, false},
		{"cancelled is terminal", OrderStatusCancelled, OrderStatusProcessing, false},
		{"self transition", OrderStatusPending, OrderStatusPending, false},
		{"empty target", OrderStatusPending, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
				t.Fatalf("CanTransitionTo(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
			}
		})
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	if !OrderStatusDelivered.IsTerminal() {
		t.Fatal("expected DELIVERED to be terminal")
	}
	if !OrderStatusCancelled.IsTerminal() {
		t.Fatal("expected CANCELLED to be terminal")
	}
	for _, status := range []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusShipped} {
		if status.IsTerminal() {
			t.Fatalf("expected %s not to be terminal", status)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, ok := ParseOrderStatus(" shipped ")
	if !ok || status != OrderStatusShipped {
		t.Fatalf("expected SHIPPED, got %q ok=%v", status, ok)
	}
	if _, ok := ParseOrderStatus("RETURNED"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
	if _, ok := ParseOrderStatus(""); ok {
		t.Fatal("expected empty status to be rejected")
	}
}
