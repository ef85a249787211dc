package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every setting the server needs. It is built once in main
// and injected into constructors; nothing reads the environment afterwards.
type Config struct {
	DatabaseURL string
	Port        string

	JWTSecret string

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	SendgridAPIKey    string
	SendgridFromEmail string
	SendgridFromName  string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// RequirePrepayment makes new bookings start in awaiting_payment with a
	// Stripe checkout session; when false they start in requested and wait
	// for owner approval.
	RequirePrepayment bool

	// CancellationWindow is the minimum lead time before start_date during
	// which a renter can no longer cancel.
	CancellationWindow time.Duration

	// PaymentTTL is how long a booking may sit in awaiting_payment before
	// the sweep job fails it.
	PaymentTTL time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		Port:                getEnv("PORT", "8080"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/bookings/confirmation?session_id={CHECKOUT_SESSION_ID}"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/bookings/failed?session_id={CHECKOUT_SESSION_ID}"),
		SendgridAPIKey:      os.Getenv("SENDGRID_API_KEY"),
		SendgridFromEmail:   os.Getenv("SENDGRID_FROM_EMAIL"),
		SendgridFromName:    getEnv("SENDGRID_FROM_NAME", "DriveHub"),
		TwilioAccountSID:    os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:    os.Getenv("TWILIO_FROM_NUMBER"),
		RequirePrepayment:   getEnv("REQUIRE_PREPAYMENT", "true") != "false",
		CancellationWindow:  getDuration("CANCELLATION_WINDOW", time.Hour),
		PaymentTTL:          getDuration("PAYMENT_TTL", 30*time.Minute),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
