package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func ParseApprovalStatus(s string) (ApprovalStatus, bool) {
	switch ApprovalStatus(s) {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return ApprovalStatus(s), true
	}
	return "", false
}

// Contest is created by a creator and stays pending until an admin approves it.
// Participants is only ever changed by confirmed payments or reconciliation.
type Contest struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatorEmail    string             `bson:"creatorEmail" json:"creatorEmail"`
	CreatorName     string             `bson:"creatorName,omitempty" json:"creatorName,omitempty"`
	Name            string             `bson:"name" json:"name"`
	Image           string             `bson:"image,omitempty" json:"image,omitempty"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	TaskInstruction string             `bson:"taskInstruction,omitempty" json:"taskInstruction,omitempty"`
	ContestType     string             `bson:"contestType,omitempty" json:"contestType,omitempty"`
	PrizeMoney      float64            `bson:"prizeMoney" json:"prizeMoney"`
	EntryPrice      float64            `bson:"entryPrice" json:"entryPrice"`
	Deadline        time.Time          `bson:"deadline" json:"deadline"`
	ApprovalStatus  ApprovalStatus     `bson:"approvalStatus" json:"approvalStatus"`
	Participants    int64              `bson:"participants" json:"participants"`
	WinnerEmail     string             `bson:"winnerEmail,omitempty" json:"winnerEmail,omitempty"`
	WinnerName      string             `bson:"winnerName,omitempty" json:"winnerName,omitempty"`
	WinnerPhoto     string             `bson:"winnerPhoto,omitempty" json:"winnerPhoto,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Open reports whether the contest accepts new registrations at now.
func (c *Contest) Open(now time.Time) bool {
	return c.ApprovalStatus == ApprovalApproved && c.Deadline.After(now)
}

// ContestInput is the body of POST /contests. Participants, approval and
// winner fields are deliberately absent.
type ContestInput struct {
	Name            string  `json:"name"`
	CreatorName     string  `json:"creatorName"`
	Image           string  `json:"image"`
	Description     string  `json:"description"`
	TaskInstruction string  `json:"taskInstruction"`
	ContestType     string  `json:"contestType"`
	PrizeMoney      float64 `json:"prizeMoney"`
	EntryPrice      float64 `json:"entryPrice"`
	Deadline        string  `json:"deadline"`
}

// ContestPatch is the body of PATCH /contests/edit/{id}. Unknown keys such as
// approvalStatus are dropped by the decoder.
type ContestPatch struct {
	Name            *string  `json:"name"`
	Image           *string  `json:"image"`
	Description     *string  `json:"description"`
	TaskInstruction *string  `json:"taskInstruction"`
	ContestType     *string  `json:"contestType"`
	PrizeMoney      *float64 `json:"prizeMoney"`
	EntryPrice      *float64 `json:"entryPrice"`
	Deadline        *string  `json:"deadline"`
}

// Winner fields are written together or not at all.
type Winner struct {
	Email string `json:"winnerEmail"`
	Name  string `json:"winnerName"`
	Photo string `json:"winnerPhoto"`
}

// AdminPatch is the body of PATCH /contests/{id}.
type AdminPatch struct {
	ApprovalStatus *string `json:"approvalStatus"`
	WinnerEmail    *string `json:"winnerEmail"`
	WinnerName     *string `json:"winnerName"`
	WinnerPhoto    *string `json:"winnerPhoto"`
}

// ContestUpdate is the typed partial update the store applies. Nil fields are
// left untouched.
type ContestUpdate struct {
	Name            *string
	Image           *string
	Description     *string
	TaskInstruction *string
	ContestType     *string
	PrizeMoney      *float64
	EntryPrice      *float64
	Deadline        *time.Time
	ApprovalStatus  *ApprovalStatus
	Winner          *Winner
	UpdatedAt       time.Time
}

func (u ContestUpdate) Empty() bool {
	return u.Name == nil && u.Image == nil && u.Description == nil &&
		u.TaskInstruction == nil && u.ContestType == nil && u.PrizeMoney == nil &&
		u.EntryPrice == nil && u.Deadline == nil && u.ApprovalStatus == nil &&
		u.Winner == nil
}

// SetDoc renders the update as a $set document.
func (u ContestUpdate) SetDoc() bson.M {
	set := bson.M{}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Image != nil {
		set["image"] = *u.Image
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.TaskInstruction != nil {
		set["taskInstruction"] = *u.TaskInstruction
	}
	if u.ContestType != nil {
		set["contestType"] = *u.ContestType
	}
	if u.PrizeMoney != nil {
		set["prizeMoney"] = *u.PrizeMoney
	}
	if u.EntryPrice != nil {
		set["entryPrice"] = *u.EntryPrice
	}
	if u.Deadline != nil {
		set["deadline"] = *u.Deadline
	}
	if u.ApprovalStatus != nil {
		set["approvalStatus"] = *u.ApprovalStatus
	}
	if u.Winner != nil {
		set["winnerEmail"] = u.Winner.Email
		set["winnerName"] = u.Winner.Name
		set["winnerPhoto"] = u.Winner.Photo
	}
	if !u.UpdatedAt.IsZero() {
		set["updatedAt"] = u.UpdatedAt
	}
	return set
}

// Apply mutates c the same way SetDoc would mutate the stored document.
func (u ContestUpdate) Apply(c *Contest) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Image != nil {
		c.Image = *u.Image
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.TaskInstruction != nil {
		c.TaskInstruction = *u.TaskInstruction
	}
	if u.ContestType != nil {
		c.ContestType = *u.ContestType
	}
	if u.PrizeMoney != nil {
		c.PrizeMoney = *u.PrizeMoney
	}
	if u.EntryPrice != nil {
		c.EntryPrice = *u.EntryPrice
	}
	if u.Deadline != nil {
		c.Deadline = *u.Deadline
	}
	if u.ApprovalStatus != nil {
		c.ApprovalStatus = *u.ApprovalStatus
	}
	if u.Winner != nil {
		c.WinnerEmail = u.Winner.Email
		c.WinnerName = u.Winner.Name
		c.WinnerPhoto = u.Winner.Photo
	}
	if !u.UpdatedAt.IsZero() {
		c.UpdatedAt = u.UpdatedAt
	}
}

type ContestFilter struct {
	CreatorEmail string
	WinnerEmail  string
	ContestType  string
	Search       string
	Status       string
}

// LatestWinner is the projection served by GET /latest-winners.
type LatestWinner struct {
	ContestID   primitive.ObjectID `bson:"_id" json:"contestId"`
	Name        string             `bson:"name" json:"name"`
	PrizeMoney  float64            `bson:"prizeMoney" json:"prizeMoney"`
	Deadline    time.Time          `bson:"deadline" json:"deadline"`
	WinnerEmail string             `bson:"winnerEmail" json:"winnerEmail"`
	WinnerName  string             `bson:"winnerName" json:"winnerName"`
	WinnerPhoto string             `bson:"winnerPhoto" json:"winnerPhoto"`
}

// UpdateResult mirrors the matched/modified counts of a single-document update.
type UpdateResult struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
}

var deadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDeadline normalizes the deadline formats sent by the web client into
// a UTC instant.
func ParseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("deadline is required")
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid deadline format %q (use RFC3339 or YYYY-MM-DD)", s)
}
