package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const EntryStatusConfirmed = "confirmed"

// ContestEntry is a confirmed participant record. (ContestID, UserEmail) is unique.
type ContestEntry struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ContestID       primitive.ObjectID `bson:"contestId" json:"contestId"`
	UserEmail       string             `bson:"userEmail" json:"userEmail"`
	ParticipantName string             `bson:"participantName" json:"participantName"`
	JoinedAt        time.Time          `bson:"joinedAt" json:"joinedAt"`
	SessionID       string             `bson:"sessionId" json:"sessionId"`
	Status          string             `bson:"status" json:"status"`
	SubmittedTask   string             `bson:"submittedTask,omitempty" json:"submittedTask,omitempty"`
	SubmittedAt     *time.Time         `bson:"submittedAt,omitempty" json:"submittedAt,omitempty"`
}

// ParticipatedContest is an entry joined with its contest document.
type ParticipatedContest struct {
	ContestEntry `bson:",inline"`
	Contest      *Contest `bson:"contest,omitempty" json:"contest,omitempty"`
}

// SubmitTaskRequest is the body of PATCH /submit-task.
type SubmitTaskRequest struct {
	ContestID     string `json:"contestId"`
	UserEmail     string `json:"userEmail"`
	SubmittedTask string `json:"submittedTask"`
}
