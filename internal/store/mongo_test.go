package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/contesthub/contesthub-gobackend/internal/models"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("payment insert maps duplicate key", func(mt *mtest.T) {
		s := NewMongo(mt.DB, false)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: payments index: sessionId_1",
		}))

		err := s.Payments().Insert(context.Background(), &models.Payment{SessionID: "cs_1"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	mt.Run("payment insert succeeds", func(mt *mtest.T) {
		s := NewMongo(mt.DB, false)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		p := &models.Payment{SessionID: "cs_1"}
		require.NoError(t, s.Payments().Insert(context.Background(), p))
		assert.False(t, p.ID.IsZero())
	})

	mt.Run("get by session not found", func(mt *mtest.T) {
		s := NewMongo(mt.DB, false)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.payments", mtest.FirstBatch))

		_, err := s.Payments().GetBySession(context.Background(), "cs_missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	mt.Run("get by session decodes", func(mt *mtest.T) {
		s := NewMongo(mt.DB, false)
		contestID := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.payments", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "sessionId", Value: "cs_1"},
			{Key: "contestId", Value: contestID},
			{Key: "status", Value: "paid"},
			{Key: "transactionId", Value: "pi_1"},
		}))

		p, err := s.Payments().GetBySession(context.Background(), "cs_1")
		require.NoError(t, err)
		assert.Equal(t, contestID, p.ContestID)
		assert.Equal(t, "pi_1", p.TransactionID)
	})

	mt.Run("submit task reports matched", func(mt *mtest.T) {
		s := NewMongo(mt.DB, false)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		res, err := s.Entries().SubmitTask(context.Background(), primitive.NewObjectID(), "u@x.io", "t1", time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.Matched)
	})

	mt.Run("popular decodes contests", func(mt *mtest.T) {
		s := NewMongo(mt.DB, false)
		deadline := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Millisecond)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.contests", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: "A"}, {Key: "participants", Value: int64(5)}, {Key: "approvalStatus", Value: "approved"}, {Key: "deadline", Value: deadline}},
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: "B"}, {Key: "participants", Value: int64(2)}, {Key: "approvalStatus", Value: "approved"}, {Key: "deadline", Value: deadline}},
		))

		got, err := s.Contests().Popular(context.Background(), time.Now(), 8)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "A", got[0].Name)
		assert.Equal(t, int64(5), got[0].Participants)
		assert.Equal(t, deadline, got[0].Deadline)
	})

	mt.Run("set participants misses a moved counter", func(mt *mtest.T) {
		s := NewMongo(mt.DB, false)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		res, err := s.Contests().SetParticipants(context.Background(), primitive.NewObjectID(), 3, 4, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.Matched)
	})

	mt.Run("count confirmed", func(mt *mtest.T) {
		s := NewMongo(mt.DB, false)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.contestEntries", mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(3)}}))

		n, err := s.Entries().CountConfirmed(context.Background(), primitive.NewObjectID())
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}

func TestContestQuery(t *testing.T) {
	q := contestQuery(models.ContestFilter{CreatorEmail: "c@x.io", Search: "art (2026)", Status: "pending"})
	assert.Equal(t, "c@x.io", q["creatorEmail"])
	assert.Equal(t, primitive.Regex{Pattern: `art \(2026\)`, Options: "i"}, q["name"])
	assert.Equal(t, bson.M{"$in": bson.A{models.ApprovalPending, nil}}, q["approvalStatus"])

	q = contestQuery(models.ContestFilter{WinnerEmail: "w@x.io", Status: "approved"})
	assert.Equal(t, "w@x.io", q["winnerEmail"])
	assert.Equal(t, "approved", q["approvalStatus"])
	assert.NotContains(t, q, "creatorEmail")
}
