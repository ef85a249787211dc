package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"drivehub/internal/db"
	"drivehub/internal/entities"
	apperr "drivehub/internal/errors"
	"drivehub/internal/repository"
)

// BookingStore is the persistence port of the booking lifecycle. The
// repository implementation owns the transactional conflict check.
type BookingStore interface {
	CreateWithPayment(ctx context.Context, b *db.Booking, p *db.Payment) error
	GetByID(ctx context.Context, id string) (*db.Booking, error)
	GetByCode(ctx context.Context, code, email string) (*db.Booking, error)
	GetByStripeSessionID(ctx context.Context, sessionID string) (*db.Booking, error)
	Transition(ctx context.Context, id string, from, to db.BookingStatus, paymentStatus *db.PaymentStatus) (bool, error)
	SetPaymentStatus(ctx context.Context, bookingID string, status db.PaymentStatus) error
	BlockedIntervals(ctx context.Context, carID string) ([]entities.DateInterval, error)
	List(ctx context.Context, date, status, carID string) ([]db.Booking, error)
	ListForUser(ctx context.Context, userID string) ([]db.Booking, error)
}

type CarStore interface {
	GetByID(ctx context.Context, id string) (*db.Car, error)
}

// PaymentProvider creates checkout sessions and issues refunds. The core
// never talks to the gateway beyond these two calls.
type PaymentProvider interface {
	CreateCheckoutSession(amountCents int64, currency, code, customerEmail string) (url, sessionID string, err error)
	RefundBySessionID(sessionID string) error
}

// Notifier delivers booking lifecycle notifications. Calls are
// fire-and-forget; a failure never rolls back a booking.
type Notifier interface {
	BookingStatusChanged(b *db.Booking, user *db.User, car *db.Car)
}

type BookingService struct {
	bookings BookingStore
	cars     CarStore
	users    repository.UserRepository
	payments PaymentProvider
	notifier Notifier

	requirePrepayment  bool
	cancellationWindow time.Duration
}

func NewBookingService(
	bookings BookingStore,
	cars CarStore,
	users repository.UserRepository,
	payments PaymentProvider,
	notifier Notifier,
	requirePrepayment bool,
	cancellationWindow time.Duration,
) *BookingService {
	return &BookingService{
		bookings:           bookings,
		cars:               cars,
		users:              users,
		payments:           payments,
		notifier:           notifier,
		requirePrepayment:  requirePrepayment,
		cancellationWindow: cancellationWindow,
	}
}

// QuoteCents prices a half-open rental range: full days, partial days
// rounded up, at least one.
func QuoteCents(dailyPriceCents int64, start, end time.Time) int64 {
	hours := end.Sub(start).Hours()
	days := int64(hours / 24)
	if hours > float64(days*24) {
		days++
	}
	if days == 0 {
		days = 1
	}
	return days * dailyPriceCents
}

// RequestBooking checks the requested range against the car's calendar and
// creates the booking with its unpaid payment record. The check and the
// insert run atomically in the store; a concurrent overlapping request
// surfaces as ErrConflict.
func (s *BookingService) RequestBooking(ctx context.Context, req *entities.BookingRequest) (*entities.BookingResponse, error) {
	if !req.StartDate.Before(req.EndDate) {
		return nil, fmt.Errorf("start_date must be before end_date: %w", apperr.ErrValidation)
	}
	if req.StartDate.Before(time.Now().UTC()) {
		return nil, fmt.Errorf("start_date must not be in the past: %w", apperr.ErrValidation)
	}

	car, err := s.cars.GetByID(ctx, req.CarID)
	if err != nil {
		return nil, err
	}
	renter, err := s.users.GetByID(ctx, req.RenterID)
	if err != nil {
		return nil, err
	}

	total := QuoteCents(car.DailyPriceCents, req.StartDate, req.EndDate)
	if req.QuotedPriceCents != 0 && req.QuotedPriceCents != total {
		return nil, fmt.Errorf("quoted price %d does not match current price %d: %w",
			req.QuotedPriceCents, total, apperr.ErrValidation)
	}

	now := time.Now().UTC()
	booking := &db.Booking{
		ID:              uuid.New().String(),
		Code:            fmt.Sprintf("%08X", now.UnixNano()%100000000),
		CarID:           car.ID,
		CarOwnerID:      car.OwnerID,
		UserID:          renter.ID,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Status:          db.StatusRequested,
		TotalPriceCents: total,
		Currency:        car.Currency,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	payment := &db.Payment{
		ID:          uuid.New().String(),
		BookingID:   booking.ID,
		AmountCents: total,
		Currency:    car.Currency,
		Method:      "card",
		Status:      db.PaymentUnpaid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var checkoutURL string
	if s.requirePrepayment {
		booking.Status = db.StatusAwaitingPayment
		url, sessionID, err := s.payments.CreateCheckoutSession(total, car.Currency, booking.Code, renter.Email)
		if err != nil {
			return nil, fmt.Errorf("create checkout session: %w", err)
		}
		checkoutURL = url
		payment.StripeSessionID = sessionID
	}

	if err := s.bookings.CreateWithPayment(ctx, booking, payment); err != nil {
		return nil, err
	}

	go s.notify(context.WithoutCancel(ctx), booking)

	resp := toBookingResponse(booking)
	resp.CheckoutURL = checkoutURL
	return resp, nil
}

// Transition applies event to the booking on behalf of actor: authorization
// first, then state machine legality, then business policy. The store update
// is conditional on the status the decision was made against, so a
// concurrent transition loses with ErrInvalidState instead of clobbering.
func (s *BookingService) Transition(ctx context.Context, bookingID string, event db.BookingEvent, actor db.Actor) (*db.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !authorized(b, event, actor) {
		return nil, fmt.Errorf("%s may not %s booking %s: %w", actor.Role, event, b.Code, apperr.ErrForbidden)
	}

	next, ok := db.NextStatus(b.Status, event)
	if !ok {
		return nil, fmt.Errorf("cannot %s a booking in status %s: %w", event, b.Status, apperr.ErrInvalidState)
	}

	if event == db.EventCancel && actor.Role == db.RoleRenter {
		if time.Until(b.StartDate) < s.cancellationWindow {
			return nil, fmt.Errorf("cancellation closed %s before start: %w", s.cancellationWindow, apperr.ErrPolicy)
		}
	}

	moved, err := s.bookings.Transition(ctx, b.ID, b.Status, next, paymentStatusFor(event))
	if err != nil {
		return nil, err
	}
	if !moved {
		// Someone else transitioned the booking between our read and write.
		return nil, fmt.Errorf("booking %s changed status concurrently: %w", b.Code, apperr.ErrInvalidState)
	}

	wasPaid := b.PaymentStatus == db.PaymentPaid
	b.Status = next
	if ps := paymentStatusFor(event); ps != nil {
		b.PaymentStatus = *ps
	}
	b.UpdatedAt = time.Now().UTC()

	// The refund runs only after the conditional update won, so a losing
	// concurrent cancel never moves money. If the gateway call fails the
	// payment stays paid and the charge.refunded webhook reconciles it
	// once the refund eventually goes through.
	if event == db.EventCancel && wasPaid {
		if err := s.refundAfterCancel(ctx, b); err != nil {
			log.Printf("booking %s: refund after cancel failed: %v", b.Code, err)
		} else {
			b.PaymentStatus = db.PaymentRefunded
		}
	}

	go s.notify(context.WithoutCancel(ctx), b)

	return b, nil
}

// paymentStatusFor derives the payment status applied in the same store
// update as the booking transition. Refunds are not mapped here: they are
// recorded separately, after the gateway call succeeds.
func paymentStatusFor(event db.BookingEvent) *db.PaymentStatus {
	var ps db.PaymentStatus
	switch event {
	case db.EventPaymentConfirmed:
		ps = db.PaymentPaid
	case db.EventPaymentFailed:
		ps = db.PaymentFailed
	default:
		return nil
	}
	return &ps
}

func (s *BookingService) refundAfterCancel(ctx context.Context, b *db.Booking) error {
	if b.StripeSessionID == "" {
		return fmt.Errorf("no payment session recorded for booking %s: %w", b.Code, apperr.ErrStorage)
	}
	if err := s.payments.RefundBySessionID(b.StripeSessionID); err != nil {
		return err
	}
	return s.bookings.SetPaymentStatus(ctx, b.ID, db.PaymentRefunded)
}

func authorized(b *db.Booking, event db.BookingEvent, actor db.Actor) bool {
	if actor.Role == db.RoleAdmin {
		return true
	}
	switch event {
	case db.EventCancel:
		switch actor.Role {
		case db.RoleRenter:
			return actor.ID == b.UserID
		case db.RoleOwner:
			return actor.ID == b.CarOwnerID
		}
	case db.EventApprove, db.EventStartDelivery, db.EventComplete:
		return actor.Role == db.RoleOwner && actor.ID == b.CarOwnerID
	case db.EventPaymentConfirmed, db.EventPaymentFailed:
		return actor.Role == db.RolePayment
	case db.EventNoShow:
		// admin only, handled above
	}
	return false
}

// GetAvailability returns the blocked intervals on a car's calendar.
func (s *BookingService) GetAvailability(ctx context.Context, carID string) (*entities.AvailabilityResponse, error) {
	if _, err := s.cars.GetByID(ctx, carID); err != nil {
		return nil, err
	}
	intervals, err := s.bookings.BlockedIntervals(ctx, carID)
	if err != nil {
		return nil, err
	}
	return &entities.AvailabilityResponse{
		CarID:            carID,
		Available:        true,
		BlockedIntervals: intervals,
	}, nil
}

// CheckAvailability reports whether a specific range is free. Advisory only:
// the authoritative check happens inside RequestBooking's transaction.
func (s *BookingService) CheckAvailability(ctx context.Context, carID string, start, end time.Time) (*entities.AvailabilityResponse, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("start must be before end: %w", apperr.ErrValidation)
	}
	resp, err := s.GetAvailability(ctx, carID)
	if err != nil {
		return nil, err
	}
	resp.RequestedStart = &start
	resp.RequestedEnd = &end
	for _, iv := range resp.BlockedIntervals {
		if db.Overlaps(iv.Start, iv.End, start, end) {
			resp.Available = false
			break
		}
	}
	return resp, nil
}

func (s *BookingService) GetBookingByCode(ctx context.Context, code, email string) (*entities.BookingResponse, error) {
	b, err := s.bookings.GetByCode(ctx, code, email)
	if err != nil {
		return nil, err
	}
	return toBookingResponse(b), nil
}

func (s *BookingService) GetBookingByStripeSessionID(ctx context.Context, sessionID string) (*db.Booking, error) {
	return s.bookings.GetByStripeSessionID(ctx, sessionID)
}

// ReconcileRefund records a refund confirmed by the gateway outside the
// cancellation flow (e.g. issued from the Stripe dashboard, or a retry of a
// refund call that failed here): an open booking is cancelled alongside, a
// closed one only gets its payment marked refunded.
func (s *BookingService) ReconcileRefund(ctx context.Context, sessionID string) error {
	b, err := s.bookings.GetByStripeSessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	if b.Status.Terminal() {
		// Booking already closed. If the payment still reads paid our own
		// refund call failed earlier; record the refund now that the
		// gateway confirms it.
		if b.PaymentStatus == db.PaymentPaid {
			return s.bookings.SetPaymentStatus(ctx, b.ID, db.PaymentRefunded)
		}
		return nil
	}
	next, ok := db.NextStatus(b.Status, db.EventCancel)
	if !ok {
		return nil
	}
	ps := db.PaymentRefunded
	if _, err := s.bookings.Transition(ctx, b.ID, b.Status, next, &ps); err != nil {
		return err
	}
	b.Status = next
	b.PaymentStatus = ps
	go s.notify(context.WithoutCancel(ctx), b)
	return nil
}

func (s *BookingService) ListBookings(ctx context.Context, date, status, carID string) (*entities.BookingsList, error) {
	bookings, err := s.bookings.List(ctx, date, status, carID)
	if err != nil {
		return nil, err
	}
	return toBookingsList(bookings), nil
}

func (s *BookingService) ListBookingsForUser(ctx context.Context, userID string) (*entities.BookingsList, error) {
	bookings, err := s.bookings.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toBookingsList(bookings), nil
}

func (s *BookingService) notify(ctx context.Context, b *db.Booking) {
	user, err := s.users.GetByID(ctx, b.UserID)
	if err != nil {
		log.Printf("notify: could not load user %s for booking %s: %v", b.UserID, b.Code, err)
		return
	}
	car, err := s.cars.GetByID(ctx, b.CarID)
	if err != nil {
		log.Printf("notify: could not load car %s for booking %s: %v", b.CarID, b.Code, err)
		return
	}
	s.notifier.BookingStatusChanged(b, user, car)
}

func toBookingResponse(b *db.Booking) *entities.BookingResponse {
	return &entities.BookingResponse{
		ID:              b.ID,
		Code:            b.Code,
		CarID:           b.CarID,
		UserID:          b.UserID,
		StartDate:       b.StartDate,
		EndDate:         b.EndDate,
		Status:          string(b.Status),
		TotalPriceCents: b.TotalPriceCents,
		Currency:        b.Currency,
		Notes:           b.Notes,
		PaymentStatus:   string(b.PaymentStatus),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func toBookingsList(bookings []db.Booking) *entities.BookingsList {
	list := &entities.BookingsList{Total: len(bookings), Bookings: []entities.BookingResponse{}}
	for i := range bookings {
		list.Bookings = append(list.Bookings, *toBookingResponse(&bookings[i]))
	}
	return list
}
