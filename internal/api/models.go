package api

import (
	"encoding/json"
	"log"
	"net/http"

	apperr "drivehub/internal/errors"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type CreateCarRequest struct {
	OwnerID         string `json:"owner_id"`
	Make            string `json:"make"`
	Model           string `json:"model"`
	Year            int    `json:"year"`
	Plate           string `json:"plate"`
	DailyPriceCents int64  `json:"daily_price_cents"`
	Currency        string `json:"currency"`
}

type TransitionRequest struct {
	Event string `json:"event"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error onto its HTTP status. Internal errors are
// logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		msg = "internal error"
	}
	writeJSON(w, status, apperr.NewHTTPError(status, msg))
}
