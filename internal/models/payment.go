package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PaymentStatusPaid = "paid"
	// PaymentStatusDuplicate marks a paid session whose user already held an
	// entry for the contest. The row stays in the ledger for refunding.
	PaymentStatusDuplicate = "duplicate"
	// PaymentStatusOrphaned marks a paid session whose contest was deleted
	// before it could be confirmed.
	PaymentStatusOrphaned = "orphaned"
)

// Payment is the append-only ledger row written once per confirmed checkout
// session. SessionID is unique.
type Payment struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID       string             `bson:"sessionId" json:"sessionId"`
	UserEmail       string             `bson:"userEmail" json:"userEmail"`
	ContestID       primitive.ObjectID `bson:"contestId" json:"contestId"`
	ContestName     string             `bson:"contestName" json:"contestName"`
	// ParticipantName is kept so a lost entry can be rebuilt from the ledger.
	ParticipantName string             `bson:"participantName,omitempty" json:"participantName,omitempty"`
	Amount          float64            `bson:"amount" json:"amount"`
	Currency        string             `bson:"currency" json:"currency"`
	Status          string             `bson:"status" json:"status"`
	TransactionID   string             `bson:"transactionId" json:"transactionId"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}

// CheckoutRequest is the body of POST /create-checkout-session.
type CheckoutRequest struct {
	UserEmail       string  `json:"userEmail"`
	ContestID       string  `json:"contestId"`
	ContestName     string  `json:"contestName"`
	EntryPrice      float64 `json:"entryPrice"`
	ParticipantName string  `json:"participantName"`
}

type CheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

type ConfirmResult struct {
	Success          bool   `json:"success"`
	TransactionID    string `json:"transactionId"`
	ContestID        string `json:"contestId,omitempty"`
	AlreadyProcessed bool   `json:"alreadyProcessed"`
}

// RepairResult reports what an admin repair pass changed for one contest.
type RepairResult struct {
	EntriesCreated  int   `json:"entriesCreated"`
	OldParticipants int64 `json:"oldParticipants"`
	Participants    int64 `json:"participants"`
}
