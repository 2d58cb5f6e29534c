// Package broker defines the venue adapter the coordination core
// drives. Implementations own their own timeout and retry policy; the
// core only requires that calls eventually return.
package broker

import (
	"context"

	"main/internal/schema"
)

// Position is one open leg at the venue.
type Position struct {
	PositionID string
	Token      schema.InstrumentToken
	Symbol     string
	Venue      string
	Qty        schema.Quantity
	AvgPrice   schema.Price
}

// OpenOrder is one resting order at the venue.
type OpenOrder struct {
	BrokerOrderID string
	Token         schema.InstrumentToken
	Symbol        string
	Side          schema.OrderSide
	Qty           schema.Quantity
}

// Broker places and cancels orders and reports venue-side state.
type Broker interface {
	PlaceOrder(ctx context.Context, po schema.PrioritizedOrder) (string, error)
	CancelOrder(ctx context.Context, brokerOrderID string) error
	Positions(ctx context.Context) ([]Position, error)
	OpenOrders(ctx context.Context) ([]OpenOrder, error)
}
