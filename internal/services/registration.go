package services

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/contesthub/contesthub-gobackend/internal/apperr"
	"github.com/contesthub/contesthub-gobackend/internal/gateway"
	"github.com/contesthub/contesthub-gobackend/internal/lock"
	"github.com/contesthub/contesthub-gobackend/internal/logging"
	"github.com/contesthub/contesthub-gobackend/internal/metrics"
	"github.com/contesthub/contesthub-gobackend/internal/models"
	"github.com/contesthub/contesthub-gobackend/internal/store"
)

const (
	confirmLockTTL = 30 * time.Second
	// confirmLockWait bounds how long a second confirmation of the same
	// session waits for the first before going on without the lock.
	confirmLockWait = 5 * time.Second
)

// Checkout metadata keys stored on the gateway session.
const (
	MetaContestID       = "contest_id"
	MetaContestName     = "contest_name"
	MetaParticipantName = "participant_name"
	MetaUserEmail       = "user_email"
)

var (
	errReplayed  = errors.New("payment already recorded")
	errEntryRace = errors.New("entry created by another session")
	errNoContest = errors.New("contest deleted before confirmation")
)

type RegistrationConfig struct {
	SiteDomain string
	Currency   string
}

// RegistrationService turns paid checkout sessions into contest entries.
// Each session is applied at most once: the unique index on
// payments.sessionId decides, the per-session lock only avoids wasted work.
type RegistrationService struct {
	store   store.Store
	gateway gateway.Gateway
	locker  lock.Locker
	metrics *metrics.Metrics
	cfg     RegistrationConfig
	now     Clock

	lockWait time.Duration
}

func NewRegistrationService(st store.Store, gw gateway.Gateway, locker lock.Locker, m *metrics.Metrics, cfg RegistrationConfig) *RegistrationService {
	cfg.SiteDomain = strings.TrimRight(cfg.SiteDomain, "/")
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &RegistrationService{store: st, gateway: gw, locker: locker, metrics: m, cfg: cfg, now: utcNow, lockWait: confirmLockWait}
}

// CreateCheckoutSession starts a hosted checkout for one contest entry. It
// never writes to the store.
func (s *RegistrationService) CreateCheckoutSession(ctx context.Context, principalEmail string, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	logger := logging.FromContext(ctx)

	email := normalizeEmail(req.UserEmail)
	if email == "" {
		return nil, apperr.New(apperr.CodeValidation, "userEmail is required")
	}
	if req.EntryPrice < 0 || math.IsNaN(req.EntryPrice) {
		return nil, apperr.New(apperr.CodeValidation, "entryPrice must not be negative")
	}
	contestID, err := parseID(req.ContestID, "contestId")
	if err != nil {
		return nil, err
	}
	if p := normalizeEmail(principalEmail); p != "" && p != email {
		return nil, apperr.New(apperr.CodeForbidden, "cannot register on behalf of another user")
	}

	readCtx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	contest, err := s.store.Contests().Get(readCtx, contestID)
	if err != nil {
		return nil, storeErr(err, "contest not found")
	}
	if !contest.Open(s.now()) {
		return nil, apperr.New(apperr.CodeValidation, "contest is closed for registration")
	}
	if req.EntryPrice != contest.EntryPrice {
		logger.WarnContext(ctx, "client entry price differs from contest price",
			"contest_id", req.ContestID,
			"client_price", req.EntryPrice,
			"contest_price", contest.EntryPrice,
		)
	}

	if _, err := s.store.Payments().FindPaid(readCtx, email, contestID); err == nil {
		return nil, apperr.New(apperr.CodeDuplicateRegistration, "already registered for this contest")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, storeErr(err, "")
	}
	if _, err := s.store.Entries().Get(readCtx, contestID, email); err == nil {
		return nil, apperr.New(apperr.CodeDuplicateRegistration, "already registered for this contest")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, storeErr(err, "")
	}

	participant := strings.TrimSpace(req.ParticipantName)
	gwCtx, gwCancel := context.WithTimeout(ctx, writeTimeout)
	defer gwCancel()
	sess, err := s.gateway.CreateCheckoutSession(gwCtx, gateway.CheckoutParams{
		ProductName:   contest.Name,
		Amount:        contest.EntryPrice,
		Currency:      s.cfg.Currency,
		CustomerEmail: email,
		SuccessURL:    s.cfg.SiteDomain + "/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.SiteDomain + "/contest/" + url.PathEscape(contestID.Hex()),
		Metadata: map[string]string{
			MetaContestID:       contestID.Hex(),
			MetaContestName:     contest.Name,
			MetaParticipantName: participant,
			MetaUserEmail:       email,
		},
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUpstream, "failed to create checkout session")
	}

	s.metrics.IncrementCheckoutCreated()
	logger.InfoContext(ctx, "checkout session created",
		"session_id", sess.ID,
		"contest_id", contestID.Hex(),
		"user", maskEmail(email),
		"gateway", s.gateway.Name(),
	)
	return &models.CheckoutResponse{URL: sess.URL, SessionID: sess.ID}, nil
}

// ConfirmPayment applies a paid checkout session: ledger row, entry, counter.
// Repeated calls for the same session are no-ops that report
// AlreadyProcessed.
func (s *RegistrationService) ConfirmPayment(ctx context.Context, sessionID string) (*models.ConfirmResult, error) {
	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() { s.metrics.ObserveConfirm(outcome, start) }()

	logger := logging.FromContext(ctx).With("session_id", sessionID)

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperr.New(apperr.CodeValidation, "session_id is required")
	}

	release, err := lock.AcquireWait(ctx, s.locker, "confirm:"+sessionID, confirmLockTTL, s.lockWait)
	switch {
	case errors.Is(err, lock.ErrLocked):
		// The unique session index still decides the outcome.
		logger.WarnContext(ctx, "confirmation lock still held, continuing without it")
		release = func() {}
	case err != nil:
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to acquire confirmation lock")
	}
	defer release()

	gwCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	sess, err := s.gateway.RetrieveSession(gwCtx, sessionID)
	cancel()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUpstream, "failed to retrieve checkout session")
	}
	if !sess.Paid() {
		outcome = metrics.OutcomeIncomplete
		logger.InfoContext(ctx, "checkout session not paid", "payment_status", sess.PaymentStatus)
		return nil, apperr.New(apperr.CodePaymentIncomplete, "payment not completed")
	}

	if existing, err := s.store.Payments().GetBySession(ctx, sessionID); err == nil {
		outcome = metrics.OutcomeReplayed
		return replayResult(existing)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, storeErr(err, "")
	}

	payment, entry, err := s.ledgerRows(sess)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Contests().Get(ctx, entry.ContestID); errors.Is(err, store.ErrNotFound) {
		return s.orphan(ctx, payment)
	} else if err != nil {
		return nil, storeErr(err, "")
	}

	var alreadyEntered bool
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		alreadyEntered = false
		if _, err := s.store.Entries().Get(ctx, entry.ContestID, entry.UserEmail); err == nil {
			alreadyEntered = true
			payment.Status = models.PaymentStatusDuplicate
			if err := s.store.Payments().Insert(ctx, payment); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return errReplayed
				}
				return err
			}
			return nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		payment.Status = models.PaymentStatusPaid
		if err := s.store.Payments().Insert(ctx, payment); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return errReplayed
			}
			return err
		}
		if err := s.store.Entries().Insert(ctx, entry); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return errEntryRace
			}
			return err
		}
		inc, err := s.store.Contests().IncrementParticipants(ctx, entry.ContestID, 1)
		if err != nil {
			return err
		}
		if inc.Matched == 0 {
			return errNoContest
		}
		return nil
	})

	switch {
	case err == nil && alreadyEntered:
		outcome = metrics.OutcomeDuplicate
		logger.WarnContext(ctx, "paid session for an existing entry recorded as duplicate",
			"contest_id", entry.ContestID.Hex(),
			"user", maskEmail(entry.UserEmail),
		)
		return nil, apperr.New(apperr.CodeDuplicateRegistration, "already registered for this contest")

	case err == nil:
		outcome = metrics.OutcomeConfirmed
		logger.InfoContext(ctx, "payment confirmed",
			"contest_id", entry.ContestID.Hex(),
			"user", maskEmail(entry.UserEmail),
			"transaction_id", payment.TransactionID,
		)
		return &models.ConfirmResult{
			Success:       true,
			TransactionID: payment.TransactionID,
			ContestID:     entry.ContestID.Hex(),
		}, nil

	case errors.Is(err, errReplayed):
		existing, getErr := s.store.Payments().GetBySession(ctx, sessionID)
		if getErr != nil {
			return nil, storeErr(getErr, "payment not found")
		}
		outcome = metrics.OutcomeReplayed
		return replayResult(existing)

	case errors.Is(err, errEntryRace):
		payment.Status = models.PaymentStatusDuplicate
		if markErr := s.store.Payments().MarkStatus(ctx, payment); markErr != nil {
			logger.ErrorContext(ctx, "failed to flag duplicate payment", "error", markErr)
			return nil, storeErr(markErr, "")
		}
		outcome = metrics.OutcomeDuplicate
		logger.WarnContext(ctx, "concurrent registration won by another session",
			"contest_id", entry.ContestID.Hex(),
			"user", maskEmail(entry.UserEmail),
		)
		return nil, apperr.New(apperr.CodeDuplicateRegistration, "already registered for this contest")

	case errors.Is(err, errNoContest):
		return s.orphan(ctx, payment)

	default:
		logger.ErrorContext(ctx, "payment confirmation failed", "error", err)
		return nil, storeErr(err, "")
	}
}

func (s *RegistrationService) ledgerRows(sess *gateway.Session) (*models.Payment, *models.ContestEntry, error) {
	contestID, err := parseID(sess.Metadata[MetaContestID], "contest id in session metadata")
	if err != nil {
		return nil, nil, err
	}
	email := normalizeEmail(sess.Metadata[MetaUserEmail])
	if email == "" {
		email = normalizeEmail(sess.CustomerEmail)
	}
	if email == "" {
		return nil, nil, apperr.New(apperr.CodeValidation, "session metadata has no user email")
	}

	transactionID := sess.TransactionID
	if transactionID == "" {
		transactionID = sess.ID
	}
	currency := sess.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}

	now := s.now()
	payment := &models.Payment{
		SessionID:       sess.ID,
		UserEmail:       email,
		ContestID:       contestID,
		ContestName:     sess.Metadata[MetaContestName],
		ParticipantName: sess.Metadata[MetaParticipantName],
		Amount:          sess.Amount(),
		Currency:        currency,
		Status:          models.PaymentStatusPaid,
		TransactionID:   transactionID,
		CreatedAt:       now,
	}
	entry := &models.ContestEntry{
		ContestID:       contestID,
		UserEmail:       email,
		ParticipantName: sess.Metadata[MetaParticipantName],
		JoinedAt:        now,
		SessionID:       sess.ID,
		Status:          models.EntryStatusConfirmed,
	}
	return payment, entry, nil
}

// orphan records a paid session whose contest no longer exists, so that
// replays report the same not found outcome.
func (s *RegistrationService) orphan(ctx context.Context, payment *models.Payment) (*models.ConfirmResult, error) {
	logger := logging.FromContext(ctx)
	payment.Status = models.PaymentStatusOrphaned
	if err := s.store.Payments().MarkStatus(ctx, payment); err != nil {
		logger.ErrorContext(ctx, "failed to flag orphaned payment", "session_id", payment.SessionID, "error", err)
		return nil, storeErr(err, "")
	}
	logger.ErrorContext(ctx, "paid session for a missing contest",
		"session_id", payment.SessionID,
		"contest_id", payment.ContestID.Hex(),
	)
	return nil, apperr.New(apperr.CodeNotFound, "contest not found")
}

func replayResult(p *models.Payment) (*models.ConfirmResult, error) {
	switch p.Status {
	case models.PaymentStatusDuplicate:
		return nil, apperr.New(apperr.CodeDuplicateRegistration, "already registered for this contest")
	case models.PaymentStatusOrphaned:
		return nil, apperr.New(apperr.CodeNotFound, "contest not found")
	}
	return &models.ConfirmResult{
		Success:          true,
		TransactionID:    p.TransactionID,
		ContestID:        p.ContestID.Hex(),
		AlreadyProcessed: true,
	}, nil
}
