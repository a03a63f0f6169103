// Package eventsync turns realtime events into cache invalidations. Every
// event the client reacts to is listed once in a table; one Dispatcher wires
// the whole table onto the socket.
package eventsync

import (
	"encoding/json"
	"fmt"

	"github.com/chrisdamba/chowrider/internal/cache"
	"github.com/chrisdamba/chowrider/internal/models"
)

// PatchBuilder derives an optimistic patch from an event payload. It returns
// a nil PatchFunc when the payload calls for no local change.
type PatchBuilder func(payload json.RawMessage) (cache.Key, cache.PatchFunc, error)

// Rule is one row of the table.
type Rule struct {
	Event string
	Keys  []cache.Key
	Patch PatchBuilder
}

// DefaultTable is the event table of the rider and dispatcher apps.
func DefaultTable() []Rule {
	return []Rule{
		{
			Event: models.EventNewDispatcherRequest,
			Keys:  []cache.Key{cache.KeyDispatcherDashboard},
		},
		{
			Event: models.EventOrderDelivered,
			Keys:  []cache.Key{cache.KeyDispatcherDashboard, cache.KeyActiveOrder, cache.KeyEarnings},
		},
		{
			Event: models.EventOrderUpdated,
			Keys:  []cache.Key{cache.KeyDispatcherDashboard, cache.KeyActiveOrder},
		},
		{
			Event: models.EventNewDeliveryAvailable,
			Keys:  []cache.Key{cache.KeyAvailableOrders},
			Patch: prependAvailable,
		},
		{
			Event: models.EventOrderTaken,
			Keys:  []cache.Key{cache.KeyAvailableOrders},
			Patch: removeAvailable,
		},
		{
			Event: models.EventRiderMoved,
		},
	}
}

func prependAvailable(payload json.RawMessage) (cache.Key, cache.PatchFunc, error) {
	var p models.NewDeliveryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", nil, fmt.Errorf("bad %s payload: %w", models.EventNewDeliveryAvailable, err)
	}
	if p.Order.ID == "" {
		return "", nil, nil
	}
	return cache.KeyAvailableOrders, PrependOrder(p.Order), nil
}

func removeAvailable(payload json.RawMessage) (cache.Key, cache.PatchFunc, error) {
	var p models.OrderRefPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", nil, fmt.Errorf("bad %s payload: %w", models.EventOrderTaken, err)
	}
	if p.OrderID == "" {
		return "", nil, nil
	}
	return cache.KeyAvailableOrders, RemoveOrder(p.OrderID), nil
}

// PrependOrder puts order at the head of an available-orders list unless an
// order with the same id is already there.
func PrependOrder(order models.RiderOrder) cache.PatchFunc {
	return func(current interface{}) interface{} {
		orders, _ := current.([]models.RiderOrder)
		for _, o := range orders {
			if o.ID == order.ID {
				return orders
			}
		}
		next := make([]models.RiderOrder, 0, len(orders)+1)
		next = append(next, order)
		return append(next, orders...)
	}
}

// RemoveOrder drops the order with id from an available-orders list.
func RemoveOrder(id string) cache.PatchFunc {
	return func(current interface{}) interface{} {
		orders, _ := current.([]models.RiderOrder)
		next := make([]models.RiderOrder, 0, len(orders))
		for _, o := range orders {
			if o.ID != id {
				next = append(next, o)
			}
		}
		return next
	}
}
