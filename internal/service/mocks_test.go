package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"drivehub/internal/db"
	"drivehub/internal/entities"
)

type mockBookingStore struct{ mock.Mock }

func (m *mockBookingStore) CreateWithPayment(ctx context.Context, b *db.Booking, p *db.Payment) error {
	args := m.Called(ctx, b, p)
	return args.Error(0)
}

func (m *mockBookingStore) GetByID(ctx context.Context, id string) (*db.Booking, error) {
	args := m.Called(ctx, id)
	if b := args.Get(0); b != nil {
		return b.(*db.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBookingStore) GetByCode(ctx context.Context, code, email string) (*db.Booking, error) {
	args := m.Called(ctx, code, email)
	if b := args.Get(0); b != nil {
		return b.(*db.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBookingStore) GetByStripeSessionID(ctx context.Context, sessionID string) (*db.Booking, error) {
	args := m.Called(ctx, sessionID)
	if b := args.Get(0); b != nil {
		return b.(*db.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBookingStore) Transition(ctx context.Context, id string, from, to db.BookingStatus, paymentStatus *db.PaymentStatus) (bool, error) {
	args := m.Called(ctx, id, from, to, paymentStatus)
	return args.Bool(0), args.Error(1)
}

func (m *mockBookingStore) SetPaymentStatus(ctx context.Context, bookingID string, status db.PaymentStatus) error {
	return m.Called(ctx, bookingID, status).Error(0)
}

func (m *mockBookingStore) BlockedIntervals(ctx context.Context, carID string) ([]entities.DateInterval, error) {
	args := m.Called(ctx, carID)
	if iv := args.Get(0); iv != nil {
		return iv.([]entities.DateInterval), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBookingStore) List(ctx context.Context, date, status, carID string) ([]db.Booking, error) {
	args := m.Called(ctx, date, status, carID)
	if b := args.Get(0); b != nil {
		return b.([]db.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBookingStore) ListForUser(ctx context.Context, userID string) ([]db.Booking, error) {
	args := m.Called(ctx, userID)
	if b := args.Get(0); b != nil {
		return b.([]db.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCarStore struct{ mock.Mock }

func (m *mockCarStore) GetByID(ctx context.Context, id string) (*db.Car, error) {
	args := m.Called(ctx, id)
	if c := args.Get(0); c != nil {
		return c.(*db.Car), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*db.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) GetByID(ctx context.Context, id string) (*db.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*db.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) Create(ctx context.Context, u *db.User, password string) error {
	args := m.Called(ctx, u, password)
	return args.Error(0)
}

type mockPaymentProvider struct{ mock.Mock }

func (m *mockPaymentProvider) CreateCheckoutSession(amountCents int64, currency, code, customerEmail string) (string, string, error) {
	args := m.Called(amountCents, currency, code, customerEmail)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockPaymentProvider) RefundBySessionID(sessionID string) error {
	args := m.Called(sessionID)
	return args.Error(0)
}

type mockReviewStore struct{ mock.Mock }

func (m *mockReviewStore) CreateAndRecompute(ctx context.Context, review *db.Review) (float64, int, error) {
	args := m.Called(ctx, review)
	return args.Get(0).(float64), args.Int(1), args.Error(2)
}

func (m *mockReviewStore) ListForCar(ctx context.Context, carID string) ([]db.Review, error) {
	args := m.Called(ctx, carID)
	if r := args.Get(0); r != nil {
		return r.([]db.Review), args.Error(1)
	}
	return nil, args.Error(1)
}

// stubNotifier swallows notifications; they are fire-and-forget and tested
// nowhere near the lifecycle logic.
type stubNotifier struct{}

func (stubNotifier) BookingStatusChanged(*db.Booking, *db.User, *db.Car) {}
