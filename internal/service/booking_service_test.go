package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"drivehub/internal/db"
	"drivehub/internal/entities"
	apperr "drivehub/internal/errors"
)

type fixture struct {
	bookings *mockBookingStore
	cars     *mockCarStore
	users    *mockUserStore
	payments *mockPaymentProvider
	svc      *BookingService
}

func newFixture(t *testing.T, prepay bool) *fixture {
	t.Helper()
	f := &fixture{
		bookings: &mockBookingStore{},
		cars:     &mockCarStore{},
		users:    &mockUserStore{},
		payments: &mockPaymentProvider{},
	}
	f.svc = NewBookingService(f.bookings, f.cars, f.users, f.payments, stubNotifier{}, prepay, time.Hour)
	t.Cleanup(func() {
		f.bookings.AssertExpectations(t)
		f.cars.AssertExpectations(t)
		f.payments.AssertExpectations(t)
	})
	return f
}

var (
	testCar = &db.Car{
		ID:              "car-1",
		OwnerID:         "owner-1",
		Make:            "Fiat",
		Model:           "Panda",
		DailyPriceCents: 4000,
		Currency:        "eur",
	}
	testRenter = &db.User{ID: "renter-1", Name: "Alice", Email: "alice@example.com"}

	errStripeDown = errors.New("stripe unreachable")
)

// expectLookups allows the car/user fetches made both synchronously and by
// the async notification path; Maybe keeps the latter from racing teardown.
func (f *fixture) expectLookups() {
	f.cars.On("GetByID", mock.Anything, "car-1").Return(testCar, nil).Maybe()
	f.users.On("GetByID", mock.Anything, mock.Anything).Return(testRenter, nil).Maybe()
}

func TestQuoteCents(t *testing.T) {
	start := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(12000), QuoteCents(4000, start, start.Add(72*time.Hour)), "three full days")
	assert.Equal(t, int64(8000), QuoteCents(4000, start, start.Add(25*time.Hour)), "partial day rounds up")
	assert.Equal(t, int64(4000), QuoteCents(4000, start, start.Add(3*time.Hour)), "minimum one day")
}

func TestRequestBooking_CreatesAwaitingPaymentWithCheckout(t *testing.T) {
	f := newFixture(t, true)
	f.expectLookups()

	start := time.Now().UTC().Add(48 * time.Hour)
	end := start.Add(72 * time.Hour)

	f.payments.On("CreateCheckoutSession", int64(12000), "eur", mock.Anything, "alice@example.com").
		Return("https://checkout.example/s", "cs_123", nil)
	f.bookings.On("CreateWithPayment", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			b := args.Get(1).(*db.Booking)
			p := args.Get(2).(*db.Payment)
			assert.Equal(t, db.StatusAwaitingPayment, b.Status)
			assert.Equal(t, int64(12000), b.TotalPriceCents)
			assert.Equal(t, "cs_123", p.StripeSessionID)
			assert.Equal(t, db.PaymentUnpaid, p.Status)
			assert.Equal(t, b.ID, p.BookingID)
		}).
		Return(nil)

	resp, err := f.svc.RequestBooking(context.Background(), &entities.BookingRequest{
		CarID:     "car-1",
		RenterID:  "renter-1",
		StartDate: start,
		EndDate:   end,
	})

	require.NoError(t, err)
	assert.Equal(t, string(db.StatusAwaitingPayment), resp.Status)
	assert.Equal(t, "https://checkout.example/s", resp.CheckoutURL)
	assert.NotEmpty(t, resp.Code)
}

func TestRequestBooking_NoPrepaymentStartsRequested(t *testing.T) {
	f := newFixture(t, false)
	f.expectLookups()

	start := time.Now().UTC().Add(48 * time.Hour)

	f.bookings.On("CreateWithPayment", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			b := args.Get(1).(*db.Booking)
			assert.Equal(t, db.StatusRequested, b.Status)
		}).
		Return(nil)

	resp, err := f.svc.RequestBooking(context.Background(), &entities.BookingRequest{
		CarID:     "car-1",
		RenterID:  "renter-1",
		StartDate: start,
		EndDate:   start.Add(24 * time.Hour),
	})

	require.NoError(t, err)
	assert.Equal(t, string(db.StatusRequested), resp.Status)
	assert.Empty(t, resp.CheckoutURL)
	f.payments.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestBooking_RejectsBadRanges(t *testing.T) {
	f := newFixture(t, true)

	start := time.Now().UTC().Add(48 * time.Hour)

	_, err := f.svc.RequestBooking(context.Background(), &entities.BookingRequest{
		CarID: "car-1", RenterID: "renter-1",
		StartDate: start, EndDate: start,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation, "empty range")

	_, err = f.svc.RequestBooking(context.Background(), &entities.BookingRequest{
		CarID: "car-1", RenterID: "renter-1",
		StartDate: start.Add(24 * time.Hour), EndDate: start,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation, "inverted range")

	past := time.Now().UTC().Add(-24 * time.Hour)
	_, err = f.svc.RequestBooking(context.Background(), &entities.BookingRequest{
		CarID: "car-1", RenterID: "renter-1",
		StartDate: past, EndDate: past.Add(48 * time.Hour),
	})
	assert.ErrorIs(t, err, apperr.ErrValidation, "past start date")
}

func TestRequestBooking_StaleQuoteRejected(t *testing.T) {
	f := newFixture(t, true)
	f.expectLookups()

	start := time.Now().UTC().Add(48 * time.Hour)

	_, err := f.svc.RequestBooking(context.Background(), &entities.BookingRequest{
		CarID:            "car-1",
		RenterID:         "renter-1",
		StartDate:        start,
		EndDate:          start.Add(24 * time.Hour),
		QuotedPriceCents: 999,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRequestBooking_ConflictSurfaced(t *testing.T) {
	f := newFixture(t, true)
	f.expectLookups()

	start := time.Now().UTC().Add(48 * time.Hour)

	f.payments.On("CreateCheckoutSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://checkout.example/s", "cs_123", nil)
	f.bookings.On("CreateWithPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(apperr.ErrConflict)

	_, err := f.svc.RequestBooking(context.Background(), &entities.BookingRequest{
		CarID:     "car-1",
		RenterID:  "renter-1",
		StartDate: start,
		EndDate:   start.Add(24 * time.Hour),
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func awaitingPaymentBooking(start time.Time) *db.Booking {
	return &db.Booking{
		ID:            "b-1",
		Code:          "AB12CD34",
		CarID:         "car-1",
		CarOwnerID:    "owner-1",
		UserID:        "renter-1",
		StartDate:     start,
		EndDate:       start.Add(72 * time.Hour),
		Status:        db.StatusAwaitingPayment,
		PaymentStatus: db.PaymentUnpaid,
	}
}

func TestTransition_PaymentConfirmed(t *testing.T) {
	f := newFixture(t, true)
	f.expectLookups()

	b := awaitingPaymentBooking(time.Now().UTC().Add(48 * time.Hour))
	f.bookings.On("GetByID", mock.Anything, "b-1").Return(b, nil)
	f.bookings.On("Transition", mock.Anything, "b-1", db.StatusAwaitingPayment, db.StatusConfirmed,
		mock.MatchedBy(func(ps *db.PaymentStatus) bool { return ps != nil && *ps == db.PaymentPaid })).
		Return(true, nil)

	got, err := f.svc.Transition(context.Background(), "b-1", db.EventPaymentConfirmed, db.Actor{ID: "stripe-webhook", Role: db.RolePayment})

	require.NoError(t, err)
	assert.Equal(t, db.StatusConfirmed, got.Status)
	assert.Equal(t, db.PaymentPaid, got.PaymentStatus)
}

func TestTransition_IllegalEventForStatus(t *testing.T) {
	f := newFixture(t, true)

	b := awaitingPaymentBooking(time.Now().UTC().Add(48 * time.Hour))
	b.Status = db.StatusRequested
	f.bookings.On("GetByID", mock.Anything, "b-1").Return(b, nil)

	_, err := f.svc.Transition(context.Background(), "b-1", db.EventComplete, db.Actor{ID: "owner-1", Role: db.RoleOwner})

	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestTransition_CancellationWindow(t *testing.T) {
	f := newFixture(t, true)
	renter := db.Actor{ID: "renter-1", Role: db.RoleRenter}

	// 30 minutes before start, window is 1 hour: rejected.
	soon := awaitingPaymentBooking(time.Now().UTC().Add(30 * time.Minute))
	f.bookings.On("GetByID", mock.Anything, "b-1").Return(soon, nil).Once()

	_, err := f.svc.Transition(context.Background(), "b-1", db.EventCancel, renter)
	assert.ErrorIs(t, err, apperr.ErrPolicy)

	// 2 hours before start: allowed.
	f2 := newFixture(t, true)
	f2.expectLookups()
	later := awaitingPaymentBooking(time.Now().UTC().Add(2 * time.Hour))
	f2.bookings.On("GetByID", mock.Anything, "b-1").Return(later, nil)
	f2.bookings.On("Transition", mock.Anything, "b-1", db.StatusAwaitingPayment, db.StatusCancelled,
		(*db.PaymentStatus)(nil)).Return(true, nil)

	got, err := f2.svc.Transition(context.Background(), "b-1", db.EventCancel, renter)
	require.NoError(t, err)
	assert.Equal(t, db.StatusCancelled, got.Status)
}

func TestTransition_WindowDoesNotBindOwnerOrAdmin(t *testing.T) {
	f := newFixture(t, true)
	f.expectLookups()

	soon := awaitingPaymentBooking(time.Now().UTC().Add(10 * time.Minute))
	f.bookings.On("GetByID", mock.Anything, "b-1").Return(soon, nil)
	f.bookings.On("Transition", mock.Anything, "b-1", db.StatusAwaitingPayment, db.StatusCancelled,
		(*db.PaymentStatus)(nil)).Return(true, nil)

	_, err := f.svc.Transition(context.Background(), "b-1", db.EventCancel, db.Actor{ID: "owner-1", Role: db.RoleOwner})
	require.NoError(t, err)
}

func TestTransition_RenterCannotTouchOthersBooking(t *testing.T) {
	f := newFixture(t, true)

	b := awaitingPaymentBooking(time.Now().UTC().Add(48 * time.Hour))
	f.bookings.On("GetByID", mock.Anything, "b-1").Return(b, nil)

	_, err := f.svc.Transition(context.Background(), "b-1", db.EventCancel, db.Actor{ID: "someone-else", Role: db.RoleRenter})

	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestTransition_NoShowIsAdminOnly(t *testing.T) {
	f := newFixture(t, true)

	b := awaitingPaymentBooking(time.Now().UTC().Add(48 * time.Hour))
	b.Status = db.StatusConfirmed
	b.PaymentStatus = db.PaymentPaid
	f.bookings.On("GetByID", mock.Anything, "b-1").Return(b, nil).Once()

	_, err := f.svc.Transition(context.Background(), "b-1", db.EventNoShow, db.Actor{ID: "owner-1", Role: db.RoleOwner})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	f2 := newFixture(t, true)
	f2.expectLookups()
	b2 := awaitingPaymentBooking(time.Now().UTC().Add(48 * time.Hour))
	b2.Status = db.StatusConfirmed
	f2.bookings.On("GetByID", mock.Anything, "b-1").Return(b2, nil)
	f2.bookings.On("Transition", mock.Anything, "b-1", db.StatusConfirmed, db.StatusNoShow,
		(*db.PaymentStatus)(nil)).Return(true, nil)

	got, err := f2.svc.Transition(context.Background(), "b-1", db.EventNoShow, db.Actor{ID: "admin-1", Role: db.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, db.StatusNoShow, got.Status)
}

func paidConfirmedBooking(start time.Time) *db.Booking {
	b := awaitingPaymentBooking(start)
	b.Status = db.StatusConfirmed
	b.PaymentStatus = db.PaymentPaid
	b.StripeSessionID = "cs_123"
	return b
}

func TestTransition_CancelAfterPaymentRefunds(t *testing.T) {
	f := newFixture(t, true)
	f.expectLookups()

	b := paidConfirmedBooking(time.Now().UTC().Add(48 * time.Hour))
	f.bookings.On("GetByID", mock.Anything, "b-1").Return(b, nil)
	f.bookings.On("Transition", mock.Anything, "b-1", db.StatusConfirmed, db.StatusCancelled,
		(*db.PaymentStatus)(nil)).Return(true, nil)
	f.payments.On("RefundBySessionID", "cs_123").Return(nil)
	f.bookings.On("SetPaymentStatus", mock.Anything, "b-1", db.PaymentRefunded).Return(nil)

	got, err := f.svc.Transition(context.Background(), "b-1", db.EventCancel, db.Actor{ID: "renter-1", Role: db.RoleRenter})

	require.NoError(t, err)
	assert.Equal(t, db.StatusCancelled, got.Status)
	assert.Equal(t, db.PaymentRefunded, got.PaymentStatus)
}

func TestTransition_NoRefundWhenCancelLosesRace(t *testing.T) {
	f := newFixture(t, true)

	b := paidConfirmedBooking(time.Now().UTC().Add(48 * time.Hour))
	f.bookings.On("GetByID", mock.Anything, "b-1").Return(b, nil)
	// Someone else moved the booking first; the conditional update misses.
	f.bookings.On("Transition", mock.Anything, "b-1", db.StatusConfirmed, db.StatusCancelled,
		(*db.PaymentStatus)(nil)).Return(false, nil)

	_, err := f.svc.Transition(context.Background(), "b-1", db.EventCancel, db.Actor{ID: "renter-1", Role: db.RoleRenter})

	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	f.payments.AssertNotCalled(t, "RefundBySessionID", mock.Anything)
}

func TestTransition_RefundFailureKeepsPaymentPaid(t *testing.T) {
	f := newFixture(t, true)
	f.expectLookups()

	b := paidConfirmedBooking(time.Now().UTC().Add(48 * time.Hour))
	f.bookings.On("GetByID", mock.Anything, "b-1").Return(b, nil)
	f.bookings.On("Transition", mock.Anything, "b-1", db.StatusConfirmed, db.StatusCancelled,
		(*db.PaymentStatus)(nil)).Return(true, nil)
	f.payments.On("RefundBySessionID", "cs_123").Return(errStripeDown)

	got, err := f.svc.Transition(context.Background(), "b-1", db.EventCancel, db.Actor{ID: "renter-1", Role: db.RoleRenter})

	// The cancellation stands; the payment stays paid until the gateway
	// refund lands and ReconcileRefund records it.
	require.NoError(t, err)
	assert.Equal(t, db.StatusCancelled, got.Status)
	assert.Equal(t, db.PaymentPaid, got.PaymentStatus)
	f.bookings.AssertNotCalled(t, "SetPaymentStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestTransition_ConcurrentLoserGetsInvalidState(t *testing.T) {
	f := newFixture(t, true)

	b := awaitingPaymentBooking(time.Now().UTC().Add(48 * time.Hour))
	f.bookings.On("GetByID", mock.Anything, "b-1").Return(b, nil)
	f.bookings.On("Transition", mock.Anything, "b-1", db.StatusAwaitingPayment, db.StatusConfirmed,
		mock.Anything).Return(false, nil)

	_, err := f.svc.Transition(context.Background(), "b-1", db.EventPaymentConfirmed, db.Actor{ID: "stripe-webhook", Role: db.RolePayment})

	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCheckAvailability_HalfOpenBoundaries(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, time.April, d, 0, 0, 0, 0, time.UTC)
	}
	blocked := []entities.DateInterval{{Start: day(10), End: day(15)}}

	cases := []struct {
		name      string
		start     time.Time
		end       time.Time
		available bool
	}{
		{"overlap at boundary day", day(14), day(20), false},
		{"adjacent after, half-open", day(15), day(20), true},
		{"adjacent before", day(1), day(10), true},
		{"contained", day(11), day(12), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t, true)
			f.cars.On("GetByID", mock.Anything, "car-1").Return(testCar, nil)
			f.bookings.On("BlockedIntervals", mock.Anything, "car-1").Return(blocked, nil)

			resp, err := f.svc.CheckAvailability(context.Background(), "car-1", c.start, c.end)
			require.NoError(t, err)
			assert.Equal(t, c.available, resp.Available)
		})
	}
}

func TestReconcileRefund(t *testing.T) {
	f := newFixture(t, true)
	f.expectLookups()

	b := paidConfirmedBooking(time.Now().UTC().Add(48 * time.Hour))
	f.bookings.On("GetByStripeSessionID", mock.Anything, "cs_123").Return(b, nil)
	f.bookings.On("Transition", mock.Anything, "b-1", db.StatusConfirmed, db.StatusCancelled,
		mock.MatchedBy(func(ps *db.PaymentStatus) bool { return ps != nil && *ps == db.PaymentRefunded })).
		Return(true, nil)

	require.NoError(t, f.svc.ReconcileRefund(context.Background(), "cs_123"))
}

func TestReconcileRefund_TerminalBooking(t *testing.T) {
	// Already cancelled with the payment settled: nothing to do.
	f := newFixture(t, true)
	done := awaitingPaymentBooking(time.Now().UTC().Add(48 * time.Hour))
	done.Status = db.StatusCancelled
	done.PaymentStatus = db.PaymentRefunded
	f.bookings.On("GetByStripeSessionID", mock.Anything, "cs_123").Return(done, nil)

	require.NoError(t, f.svc.ReconcileRefund(context.Background(), "cs_123"))
	f.bookings.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	// Cancelled but still paid, as after a failed refund call: the
	// gateway's confirmation settles the payment without a transition.
	f2 := newFixture(t, true)
	stuck := paidConfirmedBooking(time.Now().UTC().Add(48 * time.Hour))
	stuck.Status = db.StatusCancelled
	f2.bookings.On("GetByStripeSessionID", mock.Anything, "cs_123").Return(stuck, nil)
	f2.bookings.On("SetPaymentStatus", mock.Anything, "b-1", db.PaymentRefunded).Return(nil)

	require.NoError(t, f2.svc.ReconcileRefund(context.Background(), "cs_123"))
	f2.bookings.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
