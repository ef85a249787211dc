package entities

import "time"

// DateInterval is a half-open blocked range [Start, End) on a car's calendar.
type DateInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AvailabilityResponse struct {
	CarID            string         `json:"car_id"`
	RequestedStart   *time.Time     `json:"requested_start,omitempty"`
	RequestedEnd     *time.Time     `json:"requested_end,omitempty"`
	Available        bool           `json:"available"`
	BlockedIntervals []DateInterval `json:"blocked_intervals"`
}
