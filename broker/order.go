package broker

import (
	"fmt"
	"time"
)

type Direction int

const (
	Buy Direction = iota
	Sell
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}

// Sign is +1 for buy and -1 for sell.
func (d Direction) Sign() float64 {
	if d == Sell {
		return -1
	}
	return 1
}

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "buy", "BUY", "long":
		return Buy, nil
	case "sell", "SELL", "short":
		return Sell, nil
	default:
		return Buy, fmt.Errorf("unknown direction %q", s)
	}
}

type Purpose int

const (
	PurposeOpen Purpose = iota
	PurposeClose
)

func (p Purpose) String() string {
	if p == PurposeClose {
		return "close"
	}
	return "open"
}

type OrderStatus int

const (
	StatusPending OrderStatus = iota
	StatusOpen
	StatusClosed
	StatusCanceled
)

func (s OrderStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("OrderStatus(%d)", int(s))
	}
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusCanceled
}

// CanTransitionTo encodes the order lifecycle:
//
//	pending -> open | canceled
//	open    -> closed
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusOpen || next == StatusCanceled
	case StatusOpen:
		return next == StatusClosed
	default:
		return false
	}
}

// Order is a snapshot of an order owned by an Account implementation.
type Order struct {
	Ticket     int64
	PositionID string
	Symbol     string
	Direction  Direction
	Purpose    Purpose
	Status     OrderStatus
	Volume     float64

	RequestedOpenPrice *float64
	OpenPrice          *float64
	ClosePrice         *float64
	StopLoss           *float64
	TakeProfit         *float64

	CreationTime time.Time
	OpenTime     time.Time
	CloseTime    time.Time
}

// Transition moves the order to next, rejecting moves the lifecycle does
// not allow. Only integrations call it.
func (o *Order) Transition(next OrderStatus) error {
	if !o.Status.CanTransitionTo(next) {
		return NewError(ErrInvalidState,
			fmt.Sprintf("order %d cannot move from %s to %s", o.Ticket, o.Status, next),
			map[string]any{"ticket": o.Ticket, "status": o.Status.String()})
	}
	o.Status = next
	return nil
}

// Float returns a pointer to v, handy for optional price fields.
func Float(v float64) *float64 {
	return &v
}
