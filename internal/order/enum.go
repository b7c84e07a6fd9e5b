package order

import "errors"

var (
	ErrUnknownSide   = errors.New("order: unknown side")
	ErrUnknownStatus = errors.New("order: unknown status")
	ErrUnknownType   = errors.New("order: unknown type")
)

// Side is the order direction.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

func ParseSide(s string) (Side, error) {
	switch s {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	default:
		return SideBuy, ErrUnknownSide
	}
}

// Status is the order lifecycle state. Pending is the build-time state, Open
// the accepted state; Partial and Filled derive from cumulative fills;
// Cancelled, Rejected and Expired are terminal and command-driven.
type Status uint8

const (
	StatusPending Status = iota
	StatusOpen
	StatusPartial
	StatusFilled
	StatusCancelled
	StatusRejected
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusOpen:
		return "OPEN"
	case StatusPartial:
		return "PARTIAL"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusRejected:
		return "REJECTED"
	case StatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

func ParseStatus(s string) (Status, error) {
	switch s {
	case "PENDING":
		return StatusPending, nil
	case "OPEN":
		return StatusOpen, nil
	case "PARTIAL":
		return StatusPartial, nil
	case "FILLED":
		return StatusFilled, nil
	case "CANCELLED":
		return StatusCancelled, nil
	case "REJECTED":
		return StatusRejected, nil
	case "EXPIRED":
		return StatusExpired, nil
	default:
		return StatusPending, ErrUnknownStatus
	}
}

// Type is the order kind.
type Type uint8

const (
	TypeLimit Type = iota
	TypeMarket
	TypeStopLimit
	TypeStopMarket
)

func (t Type) String() string {
	switch t {
	case TypeLimit:
		return "LIMIT"
	case TypeMarket:
		return "MARKET"
	case TypeStopLimit:
		return "STOP_LIMIT"
	case TypeStopMarket:
		return "STOP_MARKET"
	default:
		return "UNKNOWN"
	}
}

func ParseType(s string) (Type, error) {
	switch s {
	case "LIMIT":
		return TypeLimit, nil
	case "MARKET":
		return TypeMarket, nil
	case "STOP_LIMIT":
		return TypeStopLimit, nil
	case "STOP_MARKET":
		return TypeStopMarket, nil
	default:
		return TypeLimit, ErrUnknownType
	}
}
