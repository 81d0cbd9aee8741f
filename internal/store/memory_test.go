package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/contesthub/contesthub-gobackend/internal/models"
)

func TestMemoryPaymentsSessionUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	contestID := primitive.NewObjectID()

	p := &models.Payment{SessionID: "cs_1", UserEmail: "u1@x.io", ContestID: contestID, Status: models.PaymentStatusPaid}
	require.NoError(t, m.Payments().Insert(ctx, p))
	assert.False(t, p.ID.IsZero())

	err := m.Payments().Insert(ctx, &models.Payment{SessionID: "cs_1"})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := m.Payments().FindPaid(ctx, "u1@x.io", contestID)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", got.SessionID)

	_, err = m.Payments().GetBySession(ctx, "cs_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryMarkStatus(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	contestID := primitive.NewObjectID()

	require.NoError(t, m.Payments().Insert(ctx, &models.Payment{SessionID: "cs_1", ContestID: contestID, Status: models.PaymentStatusPaid}))
	require.NoError(t, m.Payments().MarkStatus(ctx, &models.Payment{SessionID: "cs_1", Status: models.PaymentStatusDuplicate}))
	require.NoError(t, m.Payments().MarkStatus(ctx, &models.Payment{SessionID: "cs_2", ContestID: contestID, Status: models.PaymentStatusDuplicate}))

	for _, id := range []string{"cs_1", "cs_2"} {
		p, err := m.Payments().GetBySession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusDuplicate, p.Status, id)
	}
	paid, err := m.Payments().ListPaidByContest(ctx, contestID)
	require.NoError(t, err)
	assert.Empty(t, paid)
}

func TestMemoryEntriesPairUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	contestID := primitive.NewObjectID()

	e := &models.ContestEntry{ContestID: contestID, UserEmail: "u1@x.io", Status: models.EntryStatusConfirmed}
	require.NoError(t, m.Entries().Insert(ctx, e))
	err := m.Entries().Insert(ctx, &models.ContestEntry{ContestID: contestID, UserEmail: "u1@x.io"})
	assert.ErrorIs(t, err, ErrDuplicate)

	res, err := m.Entries().SubmitTask(ctx, contestID, "u1@x.io", "t1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Matched)

	res, err = m.Entries().SubmitTask(ctx, contestID, "nobody@x.io", "t1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Matched)

	n, err := m.Entries().CountConfirmed(ctx, contestID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryListByContestOrdersBySubmission(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	contestID := primitive.NewObjectID()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, email := range []string{"a@x.io", "b@x.io", "c@x.io"} {
		require.NoError(t, m.Entries().Insert(ctx, &models.ContestEntry{ContestID: contestID, UserEmail: email, Status: models.EntryStatusConfirmed}))
	}
	_, _ = m.Entries().SubmitTask(ctx, contestID, "a@x.io", "a", base)
	_, _ = m.Entries().SubmitTask(ctx, contestID, "c@x.io", "c", base.Add(time.Hour))

	entries, err := m.Entries().ListByContest(ctx, contestID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "c@x.io", entries[0].UserEmail)
	assert.Equal(t, "a@x.io", entries[1].UserEmail)
	assert.Nil(t, entries[2].SubmittedAt)
}

func TestMemoryPopular(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	insert := func(status models.ApprovalStatus, deadline time.Time, participants int64) primitive.ObjectID {
		c := &models.Contest{ApprovalStatus: status, Deadline: deadline, Participants: participants, CreatedAt: now}
		require.NoError(t, m.Contests().Insert(ctx, c))
		return c.ID
	}
	insert(models.ApprovalApproved, now.Add(-time.Hour), 100)
	insert(models.ApprovalPending, now.Add(time.Hour), 90)
	for i := 0; i < 10; i++ {
		insert(models.ApprovalApproved, now.Add(time.Hour), int64(i))
	}

	got, err := m.Contests().Popular(ctx, now, 8)
	require.NoError(t, err)
	require.Len(t, got, 8)
	assert.Equal(t, int64(9), got[0].Participants)
	for i, c := range got {
		assert.True(t, c.Deadline.After(now))
		assert.Equal(t, models.ApprovalApproved, c.ApprovalStatus)
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Participants, c.Participants)
		}
	}
}

func TestMemoryLeaderboard(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, email := range []string{"a@x.io", "b@x.io", "c@x.io"} {
		_, err := m.Users().Upsert(ctx, &models.User{Email: email, Role: models.RoleUser})
		require.NoError(t, err)
	}
	c1 := &models.Contest{WinnerEmail: "b@x.io"}
	c2 := &models.Contest{}
	require.NoError(t, m.Contests().Insert(ctx, c1))
	require.NoError(t, m.Contests().Insert(ctx, c2))
	for _, e := range []struct {
		c     primitive.ObjectID
		email string
	}{{c1.ID, "a@x.io"}, {c2.ID, "a@x.io"}, {c1.ID, "b@x.io"}, {c1.ID, "c@x.io"}} {
		require.NoError(t, m.Entries().Insert(ctx, &models.ContestEntry{ContestID: e.c, UserEmail: e.email, Status: models.EntryStatusConfirmed}))
	}

	rows, err := m.Users().Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "b@x.io", rows[0].Email)
	assert.Equal(t, int64(1), rows[0].Wins)
	assert.Equal(t, "a@x.io", rows[1].Email)
	assert.Equal(t, int64(2), rows[1].Participated)
}

func TestMemoryUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first := &models.User{Email: "u@x.io", Name: "First", Role: models.RoleUser}
	inserted, err := m.Users().Upsert(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	second := &models.User{Email: "u@x.io", Name: "Second", Role: models.RoleAdmin}
	inserted, err = m.Users().Upsert(ctx, second)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "First", second.Name)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.RoleUser, second.Role)
}

func TestMemoryFailNext(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")
	m.FailNext = func(op string) error {
		if op == "entries.insert" {
			return boom
		}
		return nil
	}
	err := m.Entries().Insert(ctx, &models.ContestEntry{UserEmail: "u@x.io"})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, m.Payments().Insert(ctx, &models.Payment{SessionID: "cs"}))
}

func TestMemorySetParticipantsIsConditional(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	c := &models.Contest{Name: "A", Participants: 2}
	require.NoError(t, m.Contests().Insert(ctx, c))

	res, err := m.Contests().SetParticipants(ctx, c.ID, 1, 5, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Matched)

	res, err = m.Contests().SetParticipants(ctx, c.ID, 2, 5, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Matched)

	got, err := m.Contests().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Participants)
}
