package services

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/contesthub/contesthub-gobackend/internal/apperr"
	"github.com/contesthub/contesthub-gobackend/internal/logging"
	"github.com/contesthub/contesthub-gobackend/internal/models"
	"github.com/contesthub/contesthub-gobackend/internal/store"
)

// PopularLimit is the number of contests served by GET /contests/popular.
const PopularLimit = 8

const reconcileAttempts = 5

type ContestService struct {
	store store.Store
	roles *UserService
	now   Clock
}

func NewContestService(st store.Store, roles *UserService) *ContestService {
	return &ContestService{store: st, roles: roles, now: utcNow}
}

func (s *ContestService) Create(ctx context.Context, creatorEmail string, in models.ContestInput) (*models.Contest, error) {
	creatorEmail = normalizeEmail(creatorEmail)
	if creatorEmail == "" {
		return nil, apperr.New(apperr.CodeValidation, "creator email is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.New(apperr.CodeValidation, "name is required")
	}
	if in.EntryPrice < 0 || in.PrizeMoney < 0 {
		return nil, apperr.New(apperr.CodeValidation, "entry price and prize money must not be negative")
	}
	deadline, err := models.ParseDeadline(in.Deadline)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeValidation, err.Error())
	}

	now := s.now()
	c := &models.Contest{
		CreatorEmail:    creatorEmail,
		CreatorName:     strings.TrimSpace(in.CreatorName),
		Name:            name,
		Image:           in.Image,
		Description:     in.Description,
		TaskInstruction: in.TaskInstruction,
		ContestType:     strings.TrimSpace(in.ContestType),
		PrizeMoney:      in.PrizeMoney,
		EntryPrice:      in.EntryPrice,
		Deadline:        deadline,
		ApprovalStatus:  models.ApprovalPending,
		Participants:    0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Contests().Insert(ctx, c); err != nil {
		return nil, storeErr(err, "")
	}
	logging.FromContext(ctx).InfoContext(ctx, "contest created", "contest_id", c.ID.Hex(), "creator", maskEmail(creatorEmail))
	return c, nil
}

func (s *ContestService) List(ctx context.Context, f models.ContestFilter) ([]models.Contest, error) {
	f.CreatorEmail = normalizeEmail(f.CreatorEmail)
	f.WinnerEmail = normalizeEmail(f.WinnerEmail)
	f.Search = strings.TrimSpace(f.Search)
	f.ContestType = strings.TrimSpace(f.ContestType)
	if f.Status != "" {
		if _, ok := models.ParseApprovalStatus(f.Status); !ok {
			return nil, apperr.New(apperr.CodeValidation, "invalid status filter")
		}
	}

	contests, err := s.store.Contests().List(ctx, f)
	if err != nil {
		return nil, storeErr(err, "")
	}
	return contests, nil
}

func (s *ContestService) Get(ctx context.Context, id string) (*models.Contest, error) {
	objID, err := parseID(id, "contest id")
	if err != nil {
		return nil, err
	}
	c, err := s.store.Contests().Get(ctx, objID)
	if err != nil {
		return nil, storeErr(err, "contest not found")
	}
	return c, nil
}

// Popular returns open, approved contests ordered by participants.
func (s *ContestService) Popular(ctx context.Context) ([]models.Contest, error) {
	contests, err := s.store.Contests().Popular(ctx, s.now(), PopularLimit)
	if err != nil {
		return nil, storeErr(err, "")
	}
	return contests, nil
}

// AdminUpdate changes approval status and/or the winner. Winner fields are
// written as a group.
func (s *ContestService) AdminUpdate(ctx context.Context, id string, p models.AdminPatch) (models.UpdateResult, error) {
	objID, err := parseID(id, "contest id")
	if err != nil {
		return models.UpdateResult{}, err
	}

	u := models.ContestUpdate{UpdatedAt: s.now()}
	if p.ApprovalStatus != nil {
		status, ok := models.ParseApprovalStatus(strings.TrimSpace(*p.ApprovalStatus))
		if !ok {
			return models.UpdateResult{}, apperr.New(apperr.CodeValidation, "approvalStatus must be one of pending, approved, rejected")
		}
		u.ApprovalStatus = &status
	}
	if p.WinnerEmail != nil || p.WinnerName != nil || p.WinnerPhoto != nil {
		w := models.Winner{}
		if p.WinnerEmail != nil {
			w.Email = normalizeEmail(*p.WinnerEmail)
		}
		if w.Email == "" {
			return models.UpdateResult{}, apperr.New(apperr.CodeValidation, "winnerEmail is required when declaring a winner")
		}
		if p.WinnerName != nil {
			w.Name = strings.TrimSpace(*p.WinnerName)
		}
		if p.WinnerPhoto != nil {
			w.Photo = strings.TrimSpace(*p.WinnerPhoto)
		}
		u.Winner = &w
	}
	if u.Empty() {
		return models.UpdateResult{}, apperr.New(apperr.CodeValidation, "nothing to update")
	}

	res, err := s.store.Contests().Update(ctx, objID, u)
	if err != nil {
		return models.UpdateResult{}, storeErr(err, "")
	}
	logging.FromContext(ctx).InfoContext(ctx, "contest updated by admin", "contest_id", id, "matched", res.Matched)
	return res, nil
}

// Edit applies a creator's patch. Only the owner or an admin may edit;
// approval, participants and winner fields cannot be changed this way.
func (s *ContestService) Edit(ctx context.Context, id, principalEmail string, p models.ContestPatch) (models.UpdateResult, error) {
	objID, err := parseID(id, "contest id")
	if err != nil {
		return models.UpdateResult{}, err
	}

	c, err := s.store.Contests().Get(ctx, objID)
	if errors.Is(err, store.ErrNotFound) {
		return models.UpdateResult{}, nil
	}
	if err != nil {
		return models.UpdateResult{}, storeErr(err, "")
	}
	if err := s.authorizeOwner(ctx, c, principalEmail); err != nil {
		return models.UpdateResult{}, err
	}

	u := models.ContestUpdate{
		Image:           p.Image,
		Description:     p.Description,
		TaskInstruction: p.TaskInstruction,
		ContestType:     p.ContestType,
		UpdatedAt:       s.now(),
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return models.UpdateResult{}, apperr.New(apperr.CodeValidation, "name cannot be empty")
		}
		u.Name = &name
	}
	if p.EntryPrice != nil {
		if *p.EntryPrice < 0 {
			return models.UpdateResult{}, apperr.New(apperr.CodeValidation, "entry price must not be negative")
		}
		u.EntryPrice = p.EntryPrice
	}
	if p.PrizeMoney != nil {
		if *p.PrizeMoney < 0 {
			return models.UpdateResult{}, apperr.New(apperr.CodeValidation, "prize money must not be negative")
		}
		u.PrizeMoney = p.PrizeMoney
	}
	if p.Deadline != nil {
		deadline, err := models.ParseDeadline(*p.Deadline)
		if err != nil {
			return models.UpdateResult{}, apperr.Wrap(err, apperr.CodeValidation, err.Error())
		}
		u.Deadline = &deadline
	}
	if u.Empty() {
		return models.UpdateResult{}, apperr.New(apperr.CodeValidation, "nothing to update")
	}

	res, err := s.store.Contests().Update(ctx, objID, u)
	if err != nil {
		return models.UpdateResult{}, storeErr(err, "")
	}
	return res, nil
}

// Delete removes the contest document only; entries and payments stay.
func (s *ContestService) Delete(ctx context.Context, id, principalEmail string) (int64, error) {
	objID, err := parseID(id, "contest id")
	if err != nil {
		return 0, err
	}
	c, err := s.store.Contests().Get(ctx, objID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr(err, "")
	}
	if err := s.authorizeOwner(ctx, c, principalEmail); err != nil {
		return 0, err
	}

	n, err := s.store.Contests().Delete(ctx, objID)
	if err != nil {
		return 0, storeErr(err, "")
	}
	logging.FromContext(ctx).InfoContext(ctx, "contest deleted", "contest_id", id, "deleted", n)
	return n, nil
}

func (s *ContestService) authorizeOwner(ctx context.Context, c *models.Contest, principalEmail string) error {
	principalEmail = normalizeEmail(principalEmail)
	if principalEmail == "" {
		return apperr.New(apperr.CodeUnauthorized, "authentication required")
	}
	if normalizeEmail(c.CreatorEmail) == principalEmail {
		return nil
	}
	role, err := s.roles.Role(ctx, principalEmail)
	if err != nil {
		return err
	}
	if role == models.RoleAdmin {
		return nil
	}
	return apperr.New(apperr.CodeForbidden, "only the contest creator can modify this contest")
}

// ReconcileParticipants resets the participants counter to the number of
// confirmed entries.
func (s *ContestService) ReconcileParticipants(ctx context.Context, id string) (models.RepairResult, error) {
	objID, err := parseID(id, "contest id")
	if err != nil {
		return models.RepairResult{}, err
	}
	return s.reconcile(ctx, objID)
}

func (s *ContestService) reconcile(ctx context.Context, contestID primitive.ObjectID) (models.RepairResult, error) {
	for attempt := 0; attempt < reconcileAttempts; attempt++ {
		var (
			result models.RepairResult
			moved  bool
		)
		err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
			moved = false
			c, err := s.store.Contests().Get(ctx, contestID)
			if err != nil {
				return err
			}
			count, err := s.store.Entries().CountConfirmed(ctx, contestID)
			if err != nil {
				return err
			}
			result = models.RepairResult{OldParticipants: c.Participants, Participants: count}
			if count == c.Participants {
				return nil
			}
			// A confirmation may $inc between the count and this write.
			res, err := s.store.Contests().SetParticipants(ctx, contestID, c.Participants, count, s.now())
			if err != nil {
				return err
			}
			moved = res.Matched == 0
			return nil
		})
		if err != nil {
			return models.RepairResult{}, storeErr(err, "contest not found")
		}
		if moved {
			continue
		}
		if result.OldParticipants != result.Participants {
			logging.FromContext(ctx).WarnContext(ctx, "participants counter reconciled",
				"contest_id", contestID.Hex(),
				"old", result.OldParticipants,
				"new", result.Participants,
			)
		}
		return result, nil
	}
	return models.RepairResult{}, apperr.New(apperr.CodeConflict, "participants counter is changing, retry later")
}

// RepairEntries recreates entries for paid payments that lack one, then
// reconciles the counter.
func (s *ContestService) RepairEntries(ctx context.Context, id string) (models.RepairResult, error) {
	objID, err := parseID(id, "contest id")
	if err != nil {
		return models.RepairResult{}, err
	}
	if _, err := s.store.Contests().Get(ctx, objID); err != nil {
		return models.RepairResult{}, storeErr(err, "contest not found")
	}

	payments, err := s.store.Payments().ListPaidByContest(ctx, objID)
	if err != nil {
		return models.RepairResult{}, storeErr(err, "")
	}

	created := 0
	for _, p := range payments {
		_, err := s.store.Entries().Get(ctx, objID, p.UserEmail)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return models.RepairResult{}, storeErr(err, "")
		}
		entry := &models.ContestEntry{
			ContestID:       objID,
			UserEmail:       p.UserEmail,
			ParticipantName: p.ParticipantName,
			JoinedAt:        p.CreatedAt,
			SessionID:       p.SessionID,
			Status:          models.EntryStatusConfirmed,
		}
		if err := s.store.Entries().Insert(ctx, entry); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				continue
			}
			return models.RepairResult{}, storeErr(err, "")
		}
		created++
	}

	result, err := s.reconcile(ctx, objID)
	if err != nil {
		return models.RepairResult{}, err
	}
	result.EntriesCreated = created
	if created > 0 {
		logging.FromContext(ctx).WarnContext(ctx, "missing entries repaired", "contest_id", id, "created", created)
	}
	return result, nil
}
