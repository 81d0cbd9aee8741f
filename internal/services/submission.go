package services

import (
	"context"
	"errors"
	"strings"

	"github.com/contesthub/contesthub-gobackend/internal/apperr"
	"github.com/contesthub/contesthub-gobackend/internal/logging"
	"github.com/contesthub/contesthub-gobackend/internal/models"
	"github.com/contesthub/contesthub-gobackend/internal/store"
)

type SubmissionService struct {
	entries store.EntryStore
	now     Clock
}

func NewSubmissionService(entries store.EntryStore) *SubmissionService {
	return &SubmissionService{entries: entries, now: utcNow}
}

// SubmitTask stores (or overwrites) the principal's submission for a contest
// they hold an entry in.
func (s *SubmissionService) SubmitTask(ctx context.Context, principalEmail string, req models.SubmitTaskRequest) (models.UpdateResult, error) {
	contestID, err := parseID(req.ContestID, "contestId")
	if err != nil {
		return models.UpdateResult{}, err
	}
	task := strings.TrimSpace(req.SubmittedTask)
	if task == "" {
		return models.UpdateResult{}, apperr.New(apperr.CodeValidation, "submittedTask is required")
	}
	principal := normalizeEmail(principalEmail)
	email := normalizeEmail(req.UserEmail)
	if email == "" {
		email = principal
	}
	if email == "" {
		return models.UpdateResult{}, apperr.New(apperr.CodeValidation, "userEmail is required")
	}
	if principal != "" && principal != email {
		return models.UpdateResult{}, apperr.New(apperr.CodeForbidden, "cannot submit on behalf of another user")
	}

	res, err := s.entries.SubmitTask(ctx, contestID, email, task, s.now())
	if err != nil {
		return models.UpdateResult{}, storeErr(err, "")
	}
	if res.Matched == 0 {
		return models.UpdateResult{}, apperr.New(apperr.CodeEntryNotFound, "no entry found for this contest")
	}
	logging.FromContext(ctx).InfoContext(ctx, "task submitted", "contest_id", req.ContestID, "user", maskEmail(email))
	return res, nil
}

func (s *SubmissionService) IsRegistered(ctx context.Context, contestID, email string) (bool, error) {
	_, err := s.GetEntry(ctx, contestID, email)
	if apperr.Is(err, apperr.CodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SubmissionService) GetEntry(ctx context.Context, contestID, email string) (*models.ContestEntry, error) {
	objID, err := parseID(contestID, "contestId")
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.New(apperr.CodeValidation, "email is required")
	}
	entry, err := s.entries.Get(ctx, objID, email)
	if err != nil {
		return nil, storeErr(err, "entry not found")
	}
	return entry, nil
}

// ListRegistrations returns a contest's entries, latest submissions first.
func (s *SubmissionService) ListRegistrations(ctx context.Context, contestID string) ([]models.ContestEntry, error) {
	objID, err := parseID(contestID, "contestId")
	if err != nil {
		return nil, err
	}
	entries, err := s.entries.ListByContest(ctx, objID)
	if err != nil {
		return nil, storeErr(err, "")
	}
	return entries, nil
}

func (s *SubmissionService) MyParticipated(ctx context.Context, email string) ([]models.ParticipatedContest, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.New(apperr.CodeValidation, "email is required")
	}
	contests, err := s.entries.ListByUser(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, storeErr(err, "")
	}
	if contests == nil {
		contests = []models.ParticipatedContest{}
	}
	return contests, nil
}
