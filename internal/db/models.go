package db

import "time"

type Role string

const (
	RoleRenter Role = "renter"
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	// RolePayment is the internal actor the payment webhook acts as.
	RolePayment Role = "payment"
)

// Actor identifies who is performing an operation. It is always passed in
// explicitly; services never read identity from ambient state.
type Actor struct {
	ID   string
	Role Role
}

type User struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}

type Car struct {
	ID              string
	OwnerID         string
	Make            string
	Model           string
	Year            int
	Plate           string
	DailyPriceCents int64
	Currency        string
	AverageRating   float64
	TotalRatings    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

type Payment struct {
	ID              string
	BookingID       string
	AmountCents     int64
	Currency        string
	Method          string
	Status          PaymentStatus
	StripeSessionID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Booking is one reservation of one car for the half-open interval
// [StartDate, EndDate). CarOwnerID and the payment fields are denormalized
// from joins so the service layer can authorize and notify without extra
// round trips.
type Booking struct {
	ID              string
	Code            string
	CarID           string
	CarOwnerID      string
	UserID          string
	StartDate       time.Time
	EndDate         time.Time
	Status          BookingStatus
	TotalPriceCents int64
	Currency        string
	Notes           string
	PaymentStatus   PaymentStatus
	StripeSessionID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Review struct {
	ID        string
	BookingID string
	CarID     string
	UserID    string
	Rating    int
	Comment   string
	CreatedAt time.Time
}
