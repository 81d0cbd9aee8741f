package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/contesthub/contesthub-gobackend/internal/apperr"
	"github.com/contesthub/contesthub-gobackend/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestContestCreate(t *testing.T) {
	f := newFixture(t)

	c, err := f.contests.Create(context.Background(), "Creator@x.io", models.ContestInput{
		Name:        "  Poster  ",
		EntryPrice:  10,
		PrizeMoney:  100,
		ContestType: "design",
		Deadline:    "2026-12-01",
	})
	require.NoError(t, err)
	assert.False(t, c.ID.IsZero())
	assert.Equal(t, "Poster", c.Name)
	assert.Equal(t, "creator@x.io", c.CreatorEmail)
	assert.Equal(t, models.ApprovalPending, c.ApprovalStatus)
	assert.Equal(t, int64(0), c.Participants)
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), c.Deadline)
	assert.Equal(t, fixedNow, c.CreatedAt)

	bad := []models.ContestInput{
		{Name: "", Deadline: "2026-12-01"},
		{Name: "x", EntryPrice: -1, Deadline: "2026-12-01"},
		{Name: "x", Deadline: "next week"},
	}
	for _, in := range bad {
		_, err := f.contests.Create(context.Background(), "creator@x.io", in)
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err), in)
	}
}

func TestContestPopularFiltersAndLimits(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		c := f.openContest(t, 1)
		_, err := f.store.Contests().IncrementParticipants(context.Background(), c.ID, int64(i))
		require.NoError(t, err)
	}
	expired := &models.Contest{ApprovalStatus: models.ApprovalApproved, Deadline: fixedNow.Add(-time.Minute), Participants: 1000}
	pending := &models.Contest{ApprovalStatus: models.ApprovalPending, Deadline: fixedNow.Add(time.Hour), Participants: 999}
	require.NoError(t, f.store.Contests().Insert(context.Background(), expired))
	require.NoError(t, f.store.Contests().Insert(context.Background(), pending))

	got, err := f.contests.Popular(context.Background())
	require.NoError(t, err)
	require.Len(t, got, PopularLimit)
	assert.Equal(t, int64(9), got[0].Participants)
	for _, c := range got {
		assert.True(t, c.Open(fixedNow))
	}
}

func TestContestAdminUpdate(t *testing.T) {
	f := newFixture(t)
	c := f.openContest(t, 1)

	res, err := f.contests.AdminUpdate(context.Background(), c.ID.Hex(), models.AdminPatch{
		WinnerEmail: ptr("Winner@x.io"),
		WinnerName:  ptr("Win"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Matched)

	got, err := f.contests.Get(context.Background(), c.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "winner@x.io", got.WinnerEmail)
	assert.Equal(t, "Win", got.WinnerName)
	assert.Equal(t, "", got.WinnerPhoto)
	assert.Equal(t, models.ApprovalApproved, got.ApprovalStatus)

	_, err = f.contests.AdminUpdate(context.Background(), c.ID.Hex(), models.AdminPatch{ApprovalStatus: ptr("published")})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	_, err = f.contests.AdminUpdate(context.Background(), c.ID.Hex(), models.AdminPatch{WinnerName: ptr("No Email")})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	_, err = f.contests.AdminUpdate(context.Background(), c.ID.Hex(), models.AdminPatch{})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	res, err = f.contests.AdminUpdate(context.Background(), primitive.NewObjectID().Hex(), models.AdminPatch{ApprovalStatus: ptr("rejected")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Matched)
}

func TestContestEditStripsProtectedFields(t *testing.T) {
	f := newFixture(t)
	c, err := f.contests.Create(context.Background(), "creator@x.io", models.ContestInput{Name: "Old", Deadline: "2026-12-01"})
	require.NoError(t, err)

	var patch models.ContestPatch
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "New",
		"approvalStatus": "approved",
		"participants": 99,
		"winnerEmail": "me@x.io",
		"creatorEmail": "thief@x.io",
		"deadline": "2026-12-24T18:00:00Z"
	}`), &patch))

	res, err := f.contests.Edit(context.Background(), c.ID.Hex(), "creator@x.io", patch)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Matched)

	got, err := f.contests.Get(context.Background(), c.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, models.ApprovalPending, got.ApprovalStatus)
	assert.Equal(t, int64(0), got.Participants)
	assert.Empty(t, got.WinnerEmail)
	assert.Equal(t, "creator@x.io", got.CreatorEmail)
	assert.Equal(t, time.Date(2026, 12, 24, 18, 0, 0, 0, time.UTC), got.Deadline)
}

func TestContestEditAndDeleteOwnership(t *testing.T) {
	f := newFixture(t)
	c, err := f.contests.Create(context.Background(), "creator@x.io", models.ContestInput{Name: "Old", Deadline: "2026-12-01"})
	require.NoError(t, err)

	_, err = f.contests.Edit(context.Background(), c.ID.Hex(), "stranger@x.io", models.ContestPatch{Name: ptr("Hijack")})
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
	_, err = f.contests.Delete(context.Background(), c.ID.Hex(), "stranger@x.io")
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	admin, _, err := f.users.Upsert(context.Background(), models.User{Email: "admin@x.io"})
	require.NoError(t, err)
	_, err = f.users.UpdateRole(context.Background(), admin.ID.Hex(), "admin")
	require.NoError(t, err)

	_, err = f.contests.Edit(context.Background(), c.ID.Hex(), "admin@x.io", models.ContestPatch{Name: ptr("By Admin")})
	require.NoError(t, err)

	_, err = f.contests.Edit(context.Background(), c.ID.Hex(), "creator@x.io", models.ContestPatch{})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	res, err := f.contests.Edit(context.Background(), primitive.NewObjectID().Hex(), "creator@x.io", models.ContestPatch{Name: ptr("x")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Matched)

	n, err := f.contests.Delete(context.Background(), c.ID.Hex(), "creator@x.io")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = f.contests.Get(context.Background(), c.ID.Hex())
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestContestDeleteDoesNotCascade(t *testing.T) {
	f := newFixture(t)
	c := f.openContest(t, 5)
	sessionID := f.paidSession(t, c, "ann@x.io")
	_, err := f.reg.ConfirmPayment(context.Background(), sessionID)
	require.NoError(t, err)

	_, err = f.contests.Delete(context.Background(), c.ID.Hex(), "creator@x.io")
	require.NoError(t, err)

	_, err = f.store.Entries().Get(context.Background(), c.ID, "ann@x.io")
	assert.NoError(t, err)
	_, err = f.store.Payments().GetBySession(context.Background(), sessionID)
	assert.NoError(t, err)
}

func TestContestList(t *testing.T) {
	f := newFixture(t)
	_, err := f.contests.Create(context.Background(), "a@x.io", models.ContestInput{Name: "Art Battle", ContestType: "art", Deadline: "2026-12-01"})
	require.NoError(t, err)
	_, err = f.contests.Create(context.Background(), "b@x.io", models.ContestInput{Name: "Code Golf", ContestType: "code", Deadline: "2026-12-01"})
	require.NoError(t, err)

	got, err := f.contests.List(context.Background(), models.ContestFilter{CreatorEmail: "A@x.io"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Art Battle", got[0].Name)

	got, err = f.contests.List(context.Background(), models.ContestFilter{Search: "golf"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = f.contests.List(context.Background(), models.ContestFilter{Status: "pending"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = f.contests.List(context.Background(), models.ContestFilter{Status: "bogus"})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	_, err = f.contests.Get(context.Background(), "not-an-id")
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}
