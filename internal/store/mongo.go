package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/contesthub/contesthub-gobackend/internal/db"
	"github.com/contesthub/contesthub-gobackend/internal/models"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
	aggTimeout   = 10 * time.Second
)

// Mongo implements Store on a MongoDB database. When transactions is true,
// WithTransaction runs inside a multi-document transaction (replica set or
// Atlas required).
type Mongo struct {
	database     *mongo.Database
	transactions bool

	users    *mongoUsers
	contests *mongoContests
	payments *mongoPayments
	entries  *mongoEntries
}

func NewMongo(database *mongo.Database, transactions bool) *Mongo {
	return &Mongo{
		database:     database,
		transactions: transactions,
		users: &mongoUsers{
			collection: database.Collection(db.UsersCollection),
		},
		contests: &mongoContests{collection: database.Collection(db.ContestsCollection)},
		payments: &mongoPayments{collection: database.Collection(db.PaymentsCollection)},
		entries:  &mongoEntries{collection: database.Collection(db.EntriesCollection)},
	}
}

func (m *Mongo) Users() UserStore       { return m.users }
func (m *Mongo) Contests() ContestStore { return m.contests }
func (m *Mongo) Payments() PaymentStore { return m.payments }
func (m *Mongo) Entries() EntryStore    { return m.entries }

func (m *Mongo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	return m.database.Client().Ping(ctx, nil)
}

func (m *Mongo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !m.transactions {
		return fn(ctx)
	}
	session, err := m.database.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func updateResult(res *mongo.UpdateResult) models.UpdateResult {
	return models.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}
}

// users

type mongoUsers struct {
	collection *mongo.Collection
}

func (s *mongoUsers) Upsert(ctx context.Context, u *models.User) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	onInsert := bson.M{
		"email":     u.Email,
		"role":      u.Role,
		"createdAt": u.CreatedAt,
	}
	if u.Name != "" {
		onInsert["name"] = u.Name
	}
	if u.Photo != "" {
		onInsert["photo"] = u.Photo
	}

	res, err := s.collection.UpdateOne(ctx,
		bson.M{"email": u.Email},
		bson.M{"$setOnInsert": onInsert},
		options.Update().SetUpsert(true))
	inserted := false
	switch {
	case err == nil:
		inserted = res.UpsertedCount > 0
	case mongo.IsDuplicateKeyError(err):
		// a concurrent upsert for the same email won
	default:
		return false, fmt.Errorf("failed to upsert user: %w", err)
	}

	if err := s.collection.FindOne(ctx, bson.M{"email": u.Email}).Decode(u); err != nil {
		return inserted, translate(err)
	}
	return inserted, nil
}

func (s *mongoUsers) List(ctx context.Context) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	cur, err := s.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *mongoUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var user models.User
	if err := s.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *mongoUsers) UpdateProfile(ctx context.Context, email string, p models.ProfileUpdate, now time.Time) (models.UpdateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	set := bson.M{"updatedAt": now}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Photo != nil {
		set["photo"] = *p.Photo
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": set})
	if err != nil {
		return models.UpdateResult{}, err
	}
	return updateResult(res), nil
}

func (s *mongoUsers) UpdateRole(ctx context.Context, id primitive.ObjectID, role models.Role, now time.Time) (models.UpdateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"role": role, "updatedAt": now}})
	if err != nil {
		return models.UpdateResult{}, err
	}
	return updateResult(res), nil
}

func (s *mongoUsers) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardRow, error) {
	ctx, cancel := context.WithTimeout(ctx, aggTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         db.ContestsCollection,
			"localField":   "email",
			"foreignField": "winnerEmail",
			"as":           "won",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         db.EntriesCollection,
			"localField":   "email",
			"foreignField": "userEmail",
			"as":           "joined",
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":          0,
			"email":        1,
			"name":         1,
			"photo":        1,
			"wins":         bson.M{"$size": "$won"},
			"participated": bson.M{"$size": "$joined"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "wins", Value: -1}, {Key: "participated", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	}
	cur, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	rows := []models.LeaderboardRow{}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// contests

type mongoContests struct {
	collection *mongo.Collection
}

func (s *mongoContests) Insert(ctx context.Context, c *models.Contest) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	_, err := s.collection.InsertOne(ctx, c)
	return translate(err)
}

func (s *mongoContests) Get(ctx context.Context, id primitive.ObjectID) (*models.Contest, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var contest models.Contest
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&contest); err != nil {
		return nil, translate(err)
	}
	return &contest, nil
}

func contestQuery(f models.ContestFilter) bson.M {
	query := bson.M{}
	if f.CreatorEmail != "" {
		query["creatorEmail"] = f.CreatorEmail
	}
	if f.WinnerEmail != "" {
		query["winnerEmail"] = f.WinnerEmail
	}
	if f.ContestType != "" {
		query["contestType"] = f.ContestType
	}
	if f.Search != "" {
		query["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
	}
	switch f.Status {
	case "":
	case string(models.ApprovalPending):
		query["approvalStatus"] = bson.M{"$in": bson.A{models.ApprovalPending, nil}}
	default:
		query["approvalStatus"] = f.Status
	}
	return query
}

func (s *mongoContests) List(ctx context.Context, f models.ContestFilter) ([]models.Contest, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	cur, err := s.collection.Find(ctx, contestQuery(f), options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	contests := []models.Contest{}
	if err := cur.All(ctx, &contests); err != nil {
		return nil, err
	}
	return contests, nil
}

func (s *mongoContests) Popular(ctx context.Context, now time.Time, limit int) ([]models.Contest, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	query := bson.M{
		"deadline":       bson.M{"$gt": now},
		"approvalStatus": models.ApprovalApproved,
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "participants", Value: -1}, {Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	contests := []models.Contest{}
	if err := cur.All(ctx, &contests); err != nil {
		return nil, err
	}
	return contests, nil
}

func (s *mongoContests) Update(ctx context.Context, id primitive.ObjectID, u models.ContestUpdate) (models.UpdateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": u.SetDoc()})
	if err != nil {
		return models.UpdateResult{}, err
	}
	return updateResult(res), nil
}

func (s *mongoContests) IncrementParticipants(ctx context.Context, id primitive.ObjectID, delta int64) (models.UpdateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"participants": delta}})
	if err != nil {
		return models.UpdateResult{}, err
	}
	return updateResult(res), nil
}

func (s *mongoContests) SetParticipants(ctx context.Context, id primitive.ObjectID, old, count int64, now time.Time) (models.UpdateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "participants": old}
	res, err := s.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"participants": count, "updatedAt": now}})
	if err != nil {
		return models.UpdateResult{}, err
	}
	return updateResult(res), nil
}

func (s *mongoContests) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *mongoContests) LatestWinners(ctx context.Context, limit int) ([]models.LatestWinner, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.M{"deadline": -1}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{
			"name": 1, "prizeMoney": 1, "deadline": 1,
			"winnerEmail": 1, "winnerName": 1, "winnerPhoto": 1,
		})
	cur, err := s.collection.Find(ctx, bson.M{"winnerEmail": bson.M{"$exists": true, "$ne": ""}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	winners := []models.LatestWinner{}
	if err := cur.All(ctx, &winners); err != nil {
		return nil, err
	}
	return winners, nil
}

func (s *mongoContests) CountWins(ctx context.Context, email string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	return s.collection.CountDocuments(ctx, bson.M{"winnerEmail": email})
}

// payments

type mongoPayments struct {
	collection *mongo.Collection
}

func (s *mongoPayments) Insert(ctx context.Context, p *models.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.collection.InsertOne(ctx, p)
	return translate(err)
}

func (s *mongoPayments) GetBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var payment models.Payment
	if err := s.collection.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&payment); err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (s *mongoPayments) FindPaid(ctx context.Context, email string, contestID primitive.ObjectID) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	query := bson.M{"userEmail": email, "contestId": contestID, "status": models.PaymentStatusPaid}
	var payment models.Payment
	if err := s.collection.FindOne(ctx, query).Decode(&payment); err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (s *mongoPayments) MarkStatus(ctx context.Context, p *models.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{"status": p.Status},
		"$setOnInsert": bson.M{
			"userEmail":       p.UserEmail,
			"contestId":       p.ContestID,
			"contestName":     p.ContestName,
			"participantName": p.ParticipantName,
			"amount":          p.Amount,
			"currency":        p.Currency,
			"transactionId":   p.TransactionID,
			"createdAt":       p.CreatedAt,
		},
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"sessionId": p.SessionID}, update, options.Update().SetUpsert(true))
	return translate(err)
}

func (s *mongoPayments) ListPaidByContest(ctx context.Context, contestID primitive.ObjectID) ([]models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	query := bson.M{"contestId": contestID, "status": models.PaymentStatusPaid}
	cur, err := s.collection.Find(ctx, query, options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	payments := []models.Payment{}
	if err := cur.All(ctx, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

// entries

type mongoEntries struct {
	collection *mongo.Collection
}

func (s *mongoEntries) Insert(ctx context.Context, e *models.ContestEntry) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	_, err := s.collection.InsertOne(ctx, e)
	return translate(err)
}

func (s *mongoEntries) Get(ctx context.Context, contestID primitive.ObjectID, email string) (*models.ContestEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var entry models.ContestEntry
	if err := s.collection.FindOne(ctx, bson.M{"contestId": contestID, "userEmail": email}).Decode(&entry); err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (s *mongoEntries) SubmitTask(ctx context.Context, contestID primitive.ObjectID, email, task string, at time.Time) (models.UpdateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := s.collection.UpdateOne(ctx,
		bson.M{"contestId": contestID, "userEmail": email},
		bson.M{"$set": bson.M{"submittedTask": task, "submittedAt": at}})
	if err != nil {
		return models.UpdateResult{}, err
	}
	return updateResult(res), nil
}

func (s *mongoEntries) ListByContest(ctx context.Context, contestID primitive.ObjectID) ([]models.ContestEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	cur, err := s.collection.Find(ctx, bson.M{"contestId": contestID}, options.Find().SetSort(bson.M{"submittedAt": -1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	entries := []models.ContestEntry{}
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *mongoEntries) ListByUser(ctx context.Context, email string) ([]models.ParticipatedContest, error) {
	ctx, cancel := context.WithTimeout(ctx, aggTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userEmail": email}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         db.ContestsCollection,
			"localField":   "contestId",
			"foreignField": "_id",
			"as":           "contest",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$contest", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$sort", Value: bson.M{"joinedAt": -1}}},
	}
	cur, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.ParticipatedContest{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *mongoEntries) CountConfirmed(ctx context.Context, contestID primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	return s.collection.CountDocuments(ctx, bson.M{"contestId": contestID, "status": models.EntryStatusConfirmed})
}

func (s *mongoEntries) CountByUser(ctx context.Context, email string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	return s.collection.CountDocuments(ctx, bson.M{"userEmail": email, "status": models.EntryStatusConfirmed})
}
