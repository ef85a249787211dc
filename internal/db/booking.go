package db

import "time"

type BookingStatus string

const (
	StatusRequested         BookingStatus = "requested"
	StatusAwaitingPayment   BookingStatus = "awaiting_payment"
	StatusConfirmed         BookingStatus = "confirmed"
	StatusOnDeliveryPending BookingStatus = "on_delivery_pending"
	StatusCompleted         BookingStatus = "completed"
	StatusCancelled         BookingStatus = "cancelled"
	StatusPaymentFailed     BookingStatus = "payment_failed"
	StatusNoShow            BookingStatus = "no_show"
)

type BookingEvent string

const (
	EventApprove          BookingEvent = "approve"
	EventPaymentConfirmed BookingEvent = "payment_confirmed"
	EventPaymentFailed    BookingEvent = "payment_failed"
	EventStartDelivery    BookingEvent = "start_delivery"
	EventComplete         BookingEvent = "complete"
	EventCancel           BookingEvent = "cancel"
	EventNoShow           BookingEvent = "no_show"
)

// BlockingStatuses are the statuses that occupy a car's calendar. A booking
// in any other status never participates in overlap checks.
var BlockingStatuses = []BookingStatus{
	StatusRequested,
	StatusAwaitingPayment,
	StatusConfirmed,
	StatusOnDeliveryPending,
	StatusCompleted,
}

func (s BookingStatus) Blocks() bool {
	for _, b := range BlockingStatuses {
		if s == b {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	switch s {
	case StatusCancelled, StatusPaymentFailed, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// transitions encodes the booking state machine. Transitions are
// one-directional; no status is ever revisited once left.
var transitions = map[BookingStatus]map[BookingEvent]BookingStatus{
	StatusRequested: {
		EventApprove: StatusAwaitingPayment,
		EventCancel:  StatusCancelled,
	},
	StatusAwaitingPayment: {
		EventPaymentConfirmed: StatusConfirmed,
		EventPaymentFailed:    StatusPaymentFailed,
		EventCancel:           StatusCancelled,
	},
	StatusConfirmed: {
		EventStartDelivery: StatusOnDeliveryPending,
		EventCancel:        StatusCancelled,
		EventNoShow:        StatusNoShow,
	},
	StatusOnDeliveryPending: {
		EventComplete: StatusCompleted,
		EventCancel:   StatusCancelled,
		EventNoShow:   StatusNoShow,
	},
}

// NextStatus reports the status a booking moves to when event is applied
// in the current status, and whether that transition is legal.
func NextStatus(current BookingStatus, event BookingEvent) (BookingStatus, bool) {
	next, ok := transitions[current][event]
	return next, ok
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Back-to-back bookings sharing a boundary date
// do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
