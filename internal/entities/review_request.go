package entities

import "time"

type ReviewRequest struct {
	BookingID string `json:"booking_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

type ReviewResponse struct {
	ID            string    `json:"id"`
	BookingID     string    `json:"booking_id"`
	CarID         string    `json:"car_id"`
	UserID        string    `json:"user_id"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment,omitempty"`
	AverageRating float64   `json:"average_rating"`
	TotalRatings  int       `json:"total_ratings"`
	CreatedAt     time.Time `json:"created_at"`
}
