package gateway

import (
	"context"
	"fmt"

	"github.com/contesthub/contesthub-gobackend/internal/config"
)

// StatusPaid is the payment status of a completed checkout session.
const StatusPaid = "paid"

// Gateway creates hosted checkout sessions and reports their state.
type Gateway interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error)
	RetrieveSession(ctx context.Context, id string) (*Session, error)
}

// CheckoutParams describes a single line item checkout. Amount is in major
// currency units.
type CheckoutParams struct {
	ProductName   string
	Amount        float64
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// Session is the provider's view of a checkout session.
type Session struct {
	ID            string
	URL           string
	PaymentStatus string
	// AmountTotal is in minor units (cents).
	AmountTotal   int64
	Currency      string
	TransactionID string
	CustomerEmail string
	Metadata      map[string]string
}

// Paid reports whether the session has been paid.
func (s *Session) Paid() bool {
	return s != nil && s.PaymentStatus == StatusPaid
}

// Amount returns AmountTotal in major units.
func (s *Session) Amount() float64 {
	return float64(s.AmountTotal) / 100
}

// New returns the gateway selected by cfg.PaymentProvider.
func New(cfg config.Config) (Gateway, error) {
	switch cfg.PaymentProvider {
	case "stripe":
		return NewStripe(cfg.StripeSecretKey, cfg.StripeBaseURL), nil
	case "stub":
		return NewStub("http://localhost:" + cfg.Port), nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %s", cfg.PaymentProvider)
	}
}

func toMinorUnits(amount float64) int64 {
	if amount <= 0 {
		return 0
	}
	return int64(amount*100 + 0.5)
}
