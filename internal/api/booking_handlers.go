package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"drivehub/internal/auth"
	"drivehub/internal/db"
	"drivehub/internal/entities"
	"drivehub/internal/service"
)

type BookingHandler struct {
	Bookings *service.BookingService
	Reviews  *service.ReviewService
}

func NewBookingHandler(bookings *service.BookingService, reviews *service.ReviewService) *BookingHandler {
	return &BookingHandler{Bookings: bookings, Reviews: reviews}
}

func (h *BookingHandler) RequestBooking(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	var req entities.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	// A renter can only book for themselves.
	if actor.Role != db.RoleAdmin {
		req.RenterID = actor.ID
	}

	booking, err := h.Bookings.RequestBooking(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	email := r.URL.Query().Get("email")
	if email == "" {
		http.Error(w, "email required", http.StatusBadRequest)
		return
	}

	booking, err := h.Bookings.GetBookingByCode(r.Context(), code, email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) ListOwnBookings(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	list, err := h.Bookings.ListBookingsForUser(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Transition applies a lifecycle event to a booking on behalf of the
// authenticated actor. Authorization happens in the service.
func (h *BookingHandler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	id := mux.Vars(r)["id"]

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	booking, err := h.Bookings.Transition(r.Context(), id, db.BookingEvent(req.Event), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	id := mux.Vars(r)["id"]

	booking, err := h.Bookings.Transition(r.Context(), id, db.EventCancel, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	carID := mux.Vars(r)["car_id"]

	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr != "" && endStr != "" {
		start, err1 := time.Parse(time.RFC3339, startStr)
		end, err2 := time.Parse(time.RFC3339, endStr)
		if err1 != nil || err2 != nil {
			http.Error(w, "start and end must be RFC3339 timestamps", http.StatusBadRequest)
			return
		}
		resp, err := h.Bookings.CheckAvailability(r.Context(), carID, start, end)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp, err := h.Bookings.GetAvailability(r.Context(), carID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) AttachReview(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	bookingID := mux.Vars(r)["id"]

	var req entities.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	review, err := h.Reviews.AttachReview(r.Context(), bookingID, actor.ID, req.Rating, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (h *BookingHandler) ListCarReviews(w http.ResponseWriter, r *http.Request) {
	carID := mux.Vars(r)["car_id"]
	reviews, err := h.Reviews.ListForCar(r.Context(), carID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}
