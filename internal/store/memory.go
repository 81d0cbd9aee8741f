package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/contesthub/contesthub-gobackend/internal/models"
)

// Memory is an in-process Store. Each call is atomic on its own; there is no
// rollback, so WithTransaction only runs fn.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]*models.User // by email
	contests map[primitive.ObjectID]*models.Contest
	payments map[string]*models.Payment       // by session id
	entries  map[entryKey]*models.ContestEntry // by (contest, email)

	// FailNext, when set, is consulted before each mutating call with the
	// operation name ("payments.insert", "entries.insert",
	// "contests.increment", ...). A non-nil result is returned as the error.
	FailNext func(op string) error
}

type entryKey struct {
	contestID primitive.ObjectID
	email     string
}

func NewMemory() *Memory {
	return &Memory{
		users:    map[string]*models.User{},
		contests: map[primitive.ObjectID]*models.Contest{},
		payments: map[string]*models.Payment{},
		entries:  map[entryKey]*models.ContestEntry{},
	}
}

func (m *Memory) Users() UserStore       { return memUsers{m} }
func (m *Memory) Contests() ContestStore { return memContests{m} }
func (m *Memory) Payments() PaymentStore { return memPayments{m} }
func (m *Memory) Entries() EntryStore    { return memEntries{m} }

func (m *Memory) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) fail(op string) error {
	if m.FailNext == nil {
		return nil
	}
	return m.FailNext(op)
}

type memUsers struct{ m *Memory }

func (s memUsers) Upsert(_ context.Context, u *models.User) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if existing, ok := s.m.users[u.Email]; ok {
		*u = *existing
		return false, nil
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	stored := *u
	s.m.users[u.Email] = &stored
	return true, nil
}

func (s memUsers) List(_ context.Context) ([]models.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]models.User, 0, len(s.m.users))
	for _, u := range s.m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	u, ok := s.m.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s memUsers) UpdateProfile(_ context.Context, email string, p models.ProfileUpdate, now time.Time) (models.UpdateResult, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[email]
	if !ok {
		return models.UpdateResult{}, nil
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Photo != nil {
		u.Photo = *p.Photo
	}
	u.UpdatedAt = now
	return models.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (s memUsers) UpdateRole(_ context.Context, id primitive.ObjectID, role models.Role, now time.Time) (models.UpdateResult, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if u.ID == id {
			modified := int64(0)
			if u.Role != role {
				modified = 1
			}
			u.Role = role
			u.UpdatedAt = now
			return models.UpdateResult{Matched: 1, Modified: modified}, nil
		}
	}
	return models.UpdateResult{}, nil
}

func (s memUsers) Leaderboard(_ context.Context, limit int) ([]models.LeaderboardRow, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	rows := make([]models.LeaderboardRow, 0, len(s.m.users))
	for _, u := range s.m.users {
		row := models.LeaderboardRow{Email: u.Email, Name: u.Name, Photo: u.Photo}
		for _, c := range s.m.contests {
			if c.WinnerEmail == u.Email {
				row.Wins++
			}
		}
		for k := range s.m.entries {
			if k.email == u.Email {
				row.Participated++
			}
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Wins != rows[j].Wins {
			return rows[i].Wins > rows[j].Wins
		}
		return rows[i].Participated > rows[j].Participated
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

type memContests struct{ m *Memory }

func (s memContests) Insert(_ context.Context, c *models.Contest) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if _, ok := s.m.contests[c.ID]; ok {
		return ErrDuplicate
	}
	stored := *c
	s.m.contests[c.ID] = &stored
	return nil
}

func (s memContests) Get(_ context.Context, id primitive.ObjectID) (*models.Contest, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	c, ok := s.m.contests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s memContests) matches(c *models.Contest, f models.ContestFilter) bool {
	if f.CreatorEmail != "" && c.CreatorEmail != f.CreatorEmail {
		return false
	}
	if f.WinnerEmail != "" && c.WinnerEmail != f.WinnerEmail {
		return false
	}
	if f.ContestType != "" && c.ContestType != f.ContestType {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Search)) {
		return false
	}
	if f.Status != "" {
		status := c.ApprovalStatus
		if status == "" {
			status = models.ApprovalPending
		}
		if string(status) != f.Status {
			return false
		}
	}
	return true
}

func (s memContests) List(_ context.Context, f models.ContestFilter) ([]models.Contest, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := []models.Contest{}
	for _, c := range s.m.contests {
		if s.matches(c, f) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s memContests) Popular(_ context.Context, now time.Time, limit int) ([]models.Contest, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := []models.Contest{}
	for _, c := range s.m.contests {
		if c.ApprovalStatus == models.ApprovalApproved && c.Deadline.After(now) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Participants != out[j].Participants {
			return out[i].Participants > out[j].Participants
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memContests) Update(_ context.Context, id primitive.ObjectID, u models.ContestUpdate) (models.UpdateResult, error) {
	if err := s.m.fail("contests.update"); err != nil {
		return models.UpdateResult{}, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.contests[id]
	if !ok {
		return models.UpdateResult{}, nil
	}
	u.Apply(c)
	return models.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (s memContests) IncrementParticipants(_ context.Context, id primitive.ObjectID, delta int64) (models.UpdateResult, error) {
	if err := s.m.fail("contests.increment"); err != nil {
		return models.UpdateResult{}, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.contests[id]
	if !ok {
		return models.UpdateResult{}, nil
	}
	c.Participants += delta
	return models.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (s memContests) SetParticipants(_ context.Context, id primitive.ObjectID, old, count int64, now time.Time) (models.UpdateResult, error) {
	if err := s.m.fail("contests.setParticipants"); err != nil {
		return models.UpdateResult{}, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.contests[id]
	if !ok || c.Participants != old {
		return models.UpdateResult{}, nil
	}
	c.Participants = count
	c.UpdatedAt = now
	return models.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (s memContests) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.contests[id]; !ok {
		return 0, nil
	}
	delete(s.m.contests, id)
	return 1, nil
}

func (s memContests) LatestWinners(_ context.Context, limit int) ([]models.LatestWinner, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := []models.LatestWinner{}
	for _, c := range s.m.contests {
		if c.WinnerEmail == "" {
			continue
		}
		out = append(out, models.LatestWinner{
			ContestID:   c.ID,
			Name:        c.Name,
			PrizeMoney:  c.PrizeMoney,
			Deadline:    c.Deadline,
			WinnerEmail: c.WinnerEmail,
			WinnerName:  c.WinnerName,
			WinnerPhoto: c.WinnerPhoto,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.After(out[j].Deadline) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memContests) CountWins(_ context.Context, email string) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var n int64
	for _, c := range s.m.contests {
		if c.WinnerEmail == email {
			n++
		}
	}
	return n, nil
}

type memPayments struct{ m *Memory }

func (s memPayments) Insert(_ context.Context, p *models.Payment) error {
	if err := s.m.fail("payments.insert"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.payments[p.SessionID]; ok {
		return ErrDuplicate
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	stored := *p
	s.m.payments[p.SessionID] = &stored
	return nil
}

func (s memPayments) GetBySession(_ context.Context, sessionID string) (*models.Payment, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	p, ok := s.m.payments[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s memPayments) FindPaid(_ context.Context, email string, contestID primitive.ObjectID) (*models.Payment, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, p := range s.m.payments {
		if p.UserEmail == email && p.ContestID == contestID && p.Status == models.PaymentStatusPaid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s memPayments) MarkStatus(_ context.Context, p *models.Payment) error {
	if err := s.m.fail("payments.markStatus"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if existing, ok := s.m.payments[p.SessionID]; ok {
		existing.Status = p.Status
		return nil
	}
	stored := *p
	if stored.ID.IsZero() {
		stored.ID = primitive.NewObjectID()
	}
	s.m.payments[p.SessionID] = &stored
	return nil
}

func (s memPayments) ListPaidByContest(_ context.Context, contestID primitive.ObjectID) ([]models.Payment, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := []models.Payment{}
	for _, p := range s.m.payments {
		if p.ContestID == contestID && p.Status == models.PaymentStatusPaid {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memEntries struct{ m *Memory }

func (s memEntries) Insert(_ context.Context, e *models.ContestEntry) error {
	if err := s.m.fail("entries.insert"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	key := entryKey{e.ContestID, e.UserEmail}
	if _, ok := s.m.entries[key]; ok {
		return ErrDuplicate
	}
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	stored := *e
	s.m.entries[key] = &stored
	return nil
}

func (s memEntries) Get(_ context.Context, contestID primitive.ObjectID, email string) (*models.ContestEntry, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	e, ok := s.m.entries[entryKey{contestID, email}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s memEntries) SubmitTask(_ context.Context, contestID primitive.ObjectID, email, task string, at time.Time) (models.UpdateResult, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	e, ok := s.m.entries[entryKey{contestID, email}]
	if !ok {
		return models.UpdateResult{}, nil
	}
	e.SubmittedTask = task
	e.SubmittedAt = &at
	return models.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (s memEntries) ListByContest(_ context.Context, contestID primitive.ObjectID) ([]models.ContestEntry, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := []models.ContestEntry{}
	for k, e := range s.m.entries {
		if k.contestID == contestID {
			out = append(out, *e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].SubmittedAt, out[j].SubmittedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	return out, nil
}

func (s memEntries) ListByUser(_ context.Context, email string) ([]models.ParticipatedContest, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := []models.ParticipatedContest{}
	for k, e := range s.m.entries {
		if k.email != email {
			continue
		}
		pc := models.ParticipatedContest{ContestEntry: *e}
		if c, ok := s.m.contests[k.contestID]; ok {
			cp := *c
			pc.Contest = &cp
		}
		out = append(out, pc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.After(out[j].JoinedAt) })
	return out, nil
}

func (s memEntries) CountConfirmed(_ context.Context, contestID primitive.ObjectID) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var n int64
	for k, e := range s.m.entries {
		if k.contestID == contestID && e.Status == models.EntryStatusConfirmed {
			n++
		}
	}
	return n, nil
}

func (s memEntries) CountByUser(_ context.Context, email string) (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var n int64
	for k, e := range s.m.entries {
		if k.email == email && e.Status == models.EntryStatusConfirmed {
			n++
		}
	}
	return n, nil
}
