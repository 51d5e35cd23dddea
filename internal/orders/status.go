package orders

import "fmt"

type Status string

const (
	StatusNew              Status = "NEW"
	StatusContacted        Status = "CONTACTED"
	StatusPaymentConfirmed Status = "PAYMENT_CONFIRMED"
	StatusDelivered        Status = "DELIVERED"
	StatusCancelled        Status = "CANCELLED"
)

// AllStatuses in lifecycle order.
var AllStatuses = []Status{StatusNew, StatusContacted, StatusPaymentConfirmed, StatusDelivered, StatusCancelled}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
	return st, nil
}

// InventoryEffect is what a status transition does to the order's reserved stock.
type InventoryEffect int

const (
	EffectNone InventoryEffect = iota
	EffectRestore
	EffectReserve
)

func (e InventoryEffect) String() string {
	switch e {
	case EffectRestore:
		return "restore"
	case EffectReserve:
		return "reserve"
	default:
		return "none"
	}
}

// transitions lists every (from, to) pair. Any status may move to any other;
// only entering or leaving CANCELLED touches stock.
var transitions = map[Status]map[Status]InventoryEffect{
	StatusNew: {
		StatusNew: EffectNone, StatusContacted: EffectNone, StatusPaymentConfirmed: EffectNone,
		StatusDelivered: EffectNone, StatusCancelled: EffectRestore,
	},
	StatusContacted: {
		StatusNew: EffectNone, StatusContacted: EffectNone, StatusPaymentConfirmed: EffectNone,
		StatusDelivered: EffectNone, StatusCancelled: EffectRestore,
	},
	StatusPaymentConfirmed: {
		StatusNew: EffectNone, StatusContacted: EffectNone, StatusPaymentConfirmed: EffectNone,
		StatusDelivered: EffectNone, StatusCancelled: EffectRestore,
	},
	StatusDelivered: {
		StatusNew: EffectNone, StatusContacted: EffectNone, StatusPaymentConfirmed: EffectNone,
		StatusDelivered: EffectNone, StatusCancelled: EffectRestore,
	},
	StatusCancelled: {
		StatusNew: EffectReserve, StatusContacted: EffectReserve, StatusPaymentConfirmed: EffectReserve,
		StatusDelivered: EffectReserve, StatusCancelled: EffectNone,
	},
}

// EffectOf looks up the stock side effect of moving from one status to another.
func EffectOf(from, to Status) (InventoryEffect, error) {
	effect, ok := transitions[from][to]
	if !ok {
		return EffectNone, fmt.Errorf("%w: no transition %s -> %s", ErrValidation, from, to)
	}
	return effect, nil
}

// undeletable statuses are financial commitments that must not be destroyed.
var undeletable = map[Status]bool{
	StatusPaymentConfirmed: true,
	StatusDelivered:        true,
}

func CanDelete(s Status) bool { return !undeletable[s] }

// HoldsReservation reports whether an order in this status currently owns stock.
func HoldsReservation(s Status) bool { return s != StatusCancelled }
