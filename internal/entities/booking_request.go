package entities

import "time"

type BookingRequest struct {
	CarID            string    `json:"car_id"`
	RenterID         string    `json:"renter_id"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	QuotedPriceCents int64     `json:"quoted_price_cents"`
	Notes            string    `json:"notes"`
}

type BookingResponse struct {
	ID              string    `json:"id"`
	Code            string    `json:"code"`
	CarID           string    `json:"car_id"`
	UserID          string    `json:"user_id"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Status          string    `json:"status"`
	TotalPriceCents int64     `json:"total_price_cents"`
	Currency        string    `json:"currency"`
	Notes           string    `json:"notes,omitempty"`
	PaymentStatus   string    `json:"payment_status"`
	CheckoutURL     string    `json:"checkout_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
