package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"drivehub/internal/db"
	"drivehub/internal/repository"
	"drivehub/internal/service"
)

type AdminHandler struct {
	Bookings *service.BookingService
	Cars     *repository.CarRepository
}

func NewAdminHandler(bookings *service.BookingService, cars *repository.CarRepository) *AdminHandler {
	return &AdminHandler{Bookings: bookings, Cars: cars}
}

func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	status := r.URL.Query().Get("status")
	carID := r.URL.Query().Get("car_id")

	list, err := h.Bookings.ListBookings(r.Context(), date, status, carID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) ListCars(w http.ResponseWriter, r *http.Request) {
	cars, err := h.Cars.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cars)
}

func (h *AdminHandler) CreateCar(w http.ResponseWriter, r *http.Request) {
	var req CreateCarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Currency == "" {
		req.Currency = "eur"
	}

	car := &db.Car{
		ID:              uuid.New().String(),
		OwnerID:         req.OwnerID,
		Make:            req.Make,
		Model:           req.Model,
		Year:            req.Year,
		Plate:           req.Plate,
		DailyPriceCents: req.DailyPriceCents,
		Currency:        req.Currency,
	}
	if err := h.Cars.Create(r.Context(), car); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, car)
}

func (h *AdminHandler) UpdateCarPrice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		DailyPriceCents int64 `json:"daily_price_cents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := h.Cars.UpdateDailyPrice(r.Context(), id, req.DailyPriceCents); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Car price updated"})
}
