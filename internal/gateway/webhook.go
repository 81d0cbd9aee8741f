package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WebhookTolerance bounds how old a signed webhook timestamp may be.
const WebhookTolerance = 5 * time.Minute

const EventCheckoutCompleted = "checkout.session.completed"

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNoWebhookSecret  = errors.New("webhook secret not configured")
)

// Event is the subset of a Stripe event the webhook handler needs.
type Event struct {
	ID      string
	Type    string
	Session *Session
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object stripeSession `json:"object"`
	} `json:"data"`
}

// VerifyWebhook checks a Stripe-Signature header ("t=<unix>,v1=<hex>[,v1=...]")
// against payload and decodes the event.
func VerifyWebhook(payload []byte, header, secret string, now time.Time) (*Event, error) {
	if secret == "" {
		return nil, ErrNoWebhookSecret
	}

	var ts int64
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, ErrInvalidSignature
			}
			ts = n
		case "v1":
			signatures = append(signatures, v)
		}
	}
	if ts == 0 || len(signatures) == 0 {
		return nil, ErrInvalidSignature
	}
	if now.Sub(time.Unix(ts, 0)) > WebhookTolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected := SignWebhook(payload, secret, ts)
	matched := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrInvalidSignature
	}

	var ev stripeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	return &Event{ID: ev.ID, Type: ev.Type, Session: ev.Data.Object.toSession()}, nil
}

// SignWebhook returns the hex v1 signature for payload at timestamp ts.
func SignWebhook(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
