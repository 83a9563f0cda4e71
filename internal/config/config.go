package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr     string
	PostgresDSN  string // empty runs the API on the in-memory store
	DBMaxConns   int32
	RedisAddr    string // empty disables event de-duplication
	KafkaBrokers []string
	ServiceName  string

	PaymentMode         string // offline | stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeCurrency      string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	StaleOrderDays  int
	NotifierGroup   string
	NotifierWorkers int
}

const (
	PaymentOffline = "offline"
	PaymentStripe  = "stripe"
)

func Load() Config {
	return Config{
		HTTPAddr:     getenv("HTTP_ADDR", ":8081"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		DBMaxConns:   int32(atoi(os.Getenv("DB_MAX_CONNS"), 8)),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		ServiceName:  getenv("SERVICE_NAME", "shop-api"),

		PaymentMode:         strings.ToLower(getenv("PAYMENT_MODE", PaymentOffline)),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeCurrency:      getenv("STRIPE_CURRENCY", "usd"),
		CheckoutSuccessURL:  getenv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CheckoutCancelURL:   getenv("CHECKOUT_CANCEL_URL", "http://localhost:3000/checkout/cancel"),

		StaleOrderDays:  atoi(os.Getenv("STALE_ORDER_DAYS"), 7),
		NotifierGroup:   getenv("NOTIFIER_GROUP", "shop-notifier"),
		NotifierWorkers: atoi(os.Getenv("NOTIFIER_WORKERS"), 4),
	}
}

// Validate rejects combinations the binaries cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.PaymentMode {
	case PaymentOffline:
	case PaymentStripe:
		if c.StripeSecretKey == "" {
			errs = append(errs, errors.New("PAYMENT_MODE=stripe requires STRIPE_SECRET_KEY"))
		}
	default:
		errs = append(errs, errors.New("PAYMENT_MODE must be offline or stripe, got "+strconv.Quote(c.PaymentMode)))
	}
	if c.StaleOrderDays < 1 {
		errs = append(errs, errors.New("STALE_ORDER_DAYS must be at least 1"))
	}
	if c.NotifierWorkers < 1 {
		errs = append(errs, errors.New("NOTIFIER_WORKERS must be at least 1"))
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// atoi falls back to def when s is empty or not a number.
func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return i
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
