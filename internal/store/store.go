// Package store is the persistence boundary. Services depend on the
// interfaces here; Mongo backs production and Memory backs tests.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/contesthub/contesthub-gobackend/internal/models"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

type UserStore interface {
	// Upsert inserts u unless a user with the same email exists. It fills u
	// with the stored document and reports whether an insert happened.
	Upsert(ctx context.Context, u *models.User) (bool, error)
	List(ctx context.Context) ([]models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, email string, p models.ProfileUpdate, now time.Time) (models.UpdateResult, error)
	UpdateRole(ctx context.Context, id primitive.ObjectID, role models.Role, now time.Time) (models.UpdateResult, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardRow, error)
}

type ContestStore interface {
	Insert(ctx context.Context, c *models.Contest) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Contest, error)
	List(ctx context.Context, f models.ContestFilter) ([]models.Contest, error)
	// Popular returns approved contests with deadline after now, ordered by
	// participants then createdAt, both descending.
	Popular(ctx context.Context, now time.Time, limit int) ([]models.Contest, error)
	Update(ctx context.Context, id primitive.ObjectID, u models.ContestUpdate) (models.UpdateResult, error)
	IncrementParticipants(ctx context.Context, id primitive.ObjectID, delta int64) (models.UpdateResult, error)
	// SetParticipants overwrites the counter only while it still equals old.
	// Matched is 0 when the contest is gone or the counter moved.
	SetParticipants(ctx context.Context, id primitive.ObjectID, old, count int64, now time.Time) (models.UpdateResult, error)
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	LatestWinners(ctx context.Context, limit int) ([]models.LatestWinner, error)
	CountWins(ctx context.Context, email string) (int64, error)
}

type PaymentStore interface {
	// Insert returns ErrDuplicate when the session id was already recorded.
	Insert(ctx context.Context, p *models.Payment) error
	GetBySession(ctx context.Context, sessionID string) (*models.Payment, error)
	FindPaid(ctx context.Context, email string, contestID primitive.ObjectID) (*models.Payment, error)
	// MarkStatus sets the session's payment status to p.Status, inserting p
	// when it does not exist yet.
	MarkStatus(ctx context.Context, p *models.Payment) error
	ListPaidByContest(ctx context.Context, contestID primitive.ObjectID) ([]models.Payment, error)
}

type EntryStore interface {
	// Insert returns ErrDuplicate when the (contest, user) pair already exists.
	Insert(ctx context.Context, e *models.ContestEntry) error
	Get(ctx context.Context, contestID primitive.ObjectID, email string) (*models.ContestEntry, error)
	SubmitTask(ctx context.Context, contestID primitive.ObjectID, email, task string, at time.Time) (models.UpdateResult, error)
	ListByContest(ctx context.Context, contestID primitive.ObjectID) ([]models.ContestEntry, error)
	ListByUser(ctx context.Context, email string) ([]models.ParticipatedContest, error)
	CountConfirmed(ctx context.Context, contestID primitive.ObjectID) (int64, error)
	CountByUser(ctx context.Context, email string) (int64, error)
}

// Store groups the four collections and the transaction boundary.
type Store interface {
	Users() UserStore
	Contests() ContestStore
	Payments() PaymentStore
	Entries() EntryStore
	// WithTransaction runs fn atomically when the backend supports it and
	// sequentially otherwise. fn must use the context it is given.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error
}
