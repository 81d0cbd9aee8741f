package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Stub is an in-process gateway for local development and tests. Sessions
// start unpaid; MarkPaid completes them (POST /pay/stub).
type Stub struct {
	baseURL string

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStub(baseURL string) *Stub {
	return &Stub{baseURL: strings.TrimRight(baseURL, "/"), sessions: map[string]*Session{}}
}

func (s *Stub) Name() string { return "stub" }

func (s *Stub) CreateCheckoutSession(_ context.Context, p CheckoutParams) (*Session, error) {
	id := "cs_stub_" + uuid.NewString()
	metadata := make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		metadata[k] = v
	}
	sess := &Session{
		ID:            id,
		URL:           s.baseURL + "/pay/stub?session_id=" + id,
		PaymentStatus: "unpaid",
		AmountTotal:   toMinorUnits(p.Amount),
		Currency:      p.Currency,
		CustomerEmail: p.CustomerEmail,
		Metadata:      metadata,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	out := *sess
	return &out, nil
}

func (s *Stub) RetrieveSession(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such checkout session: %s", id)
	}
	out := *sess
	return &out, nil
}

// MarkPaid completes a session and assigns it a transaction id.
func (s *Stub) MarkPaid(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("no such checkout session: %s", id)
	}
	if sess.PaymentStatus != StatusPaid {
		sess.PaymentStatus = StatusPaid
		sess.TransactionID = "pi_stub_" + uuid.NewString()
	}
	return nil
}

// Put registers a session as-is. Tests use it to stage arbitrary states.
func (s *Stub) Put(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = &sess
}
