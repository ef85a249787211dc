package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/robfig/cron/v3"
	"github.com/stripe/stripe-go/v82"

	"drivehub/internal/api"
	"drivehub/internal/auth"
	"drivehub/internal/config"
	"drivehub/internal/repository"
	"drivehub/internal/service"
)

const migrationsDir = "migrations"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := database.Ping(); err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to set goose dialect: %v", err)
	}
	if err := goose.Up(database, migrationsDir); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	stripe.Key = cfg.StripeSecretKey

	bookingRepo := repository.NewBookingRepository(database)
	reviewRepo := repository.NewReviewRepository(database)
	carRepo := repository.NewCarRepository(database)
	userRepo := repository.NewUserRepository(database)
	jobRepo := repository.NewJobRepository(database)

	stripeService := service.NewStripeService(cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)
	senderService := service.NewSenderService(
		cfg.SendgridAPIKey, cfg.SendgridFromEmail, cfg.SendgridFromName,
		cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber,
	)
	bookingService := service.NewBookingService(
		bookingRepo, carRepo, userRepo, stripeService, senderService,
		cfg.RequirePrepayment, cfg.CancellationWindow,
	)
	reviewService := service.NewReviewService(reviewRepo, bookingRepo)
	authService := service.NewAuthService(userRepo, cfg.JWTSecret)
	jobService := service.NewJobService(jobRepo, cfg.PaymentTTL)

	bookingHandler := api.NewBookingHandler(bookingService, reviewService)
	adminHandler := api.NewAdminHandler(bookingService, carRepo)
	authHandler := api.NewAuthHandler(authService)
	stripeHandler := api.NewStripeWebhookHandler(cfg.StripeWebhookSecret, bookingService, stripeService)

	mw := auth.NewMiddleware(cfg.JWTSecret)

	r := mux.NewRouter()

	// Public endpoints
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/api/cars/{car_id}/availability", bookingHandler.GetAvailability).Methods("GET")
	r.HandleFunc("/api/cars/{car_id}/reviews", bookingHandler.ListCarReviews).Methods("GET")
	r.HandleFunc("/api/bookings/{code}", bookingHandler.GetBooking).Methods("GET")
	r.HandleFunc("/api/stripe/webhook", stripeHandler.HandleWebhook).Methods("POST")

	// Authenticated endpoints
	user := r.PathPrefix("/api").Subrouter()
	user.Use(mw.Authenticate)
	user.HandleFunc("/bookings", bookingHandler.RequestBooking).Methods("POST")
	user.HandleFunc("/bookings", bookingHandler.ListOwnBookings).Methods("GET")
	user.HandleFunc("/bookings/{id}/transition", bookingHandler.Transition).Methods("POST")
	user.HandleFunc("/bookings/{id}", bookingHandler.CancelBooking).Methods("DELETE")
	user.HandleFunc("/bookings/{id}/review", bookingHandler.AttachReview).Methods("POST")

	// Admin endpoints (protected)
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(mw.RequireAdmin)
	admin.HandleFunc("/bookings", adminHandler.ListBookings).Methods("GET")
	admin.HandleFunc("/cars", adminHandler.ListCars).Methods("GET")
	admin.HandleFunc("/cars", adminHandler.CreateCar).Methods("POST")
	admin.HandleFunc("/cars/{id}/price", adminHandler.UpdateCarPrice).Methods("PUT")

	c := cron.New()
	c.AddFunc("@every 5m", func() {
		if err := jobService.CompleteFinishedBookings(context.Background()); err != nil {
			log.Printf("Cron job error: %v", err)
		}
	})
	c.AddFunc("@every 5m", func() {
		if err := jobService.ExpireStalePayments(context.Background()); err != nil {
			log.Printf("Cron job error: %v", err)
		}
	})
	c.Start()
	defer c.Stop()

	handler := handlers.CombinedLoggingHandler(os.Stdout,
		handlers.CORS(
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		)(r),
	)

	log.Printf("Server running on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler))
}
