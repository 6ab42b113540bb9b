package domain

import (
	"slices"
	"strings"
)

// OrderStatus enumerates the lifecycle states of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// orderStatusTransitions is the single source of truth for legal status edges.
// Terminal statuses have no entry and therefore no outgoing transitions.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransitionTo reports whether moving from s to target is a legal edge.
// Self-transitions, transitions out of terminal states and unknown targets
// are all rejected.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if target == "" || s == target {
		return false
	}
	next, ok := orderStatusTransitions[s]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

// IsTerminal reports whether s has no outgoing transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// ParseOrderStatus normalises a transport-supplied status value.
func ParseOrderStatus(value string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(value)))
	switch status {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return status, true
	}
	return "", false
}
