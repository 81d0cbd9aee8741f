package models

// LeaderboardRow is one user's standing.
type LeaderboardRow struct {
	Email        string `bson:"email" json:"email"`
	Name         string `bson:"name,omitempty" json:"name,omitempty"`
	Photo        string `bson:"photo,omitempty" json:"photo,omitempty"`
	Wins         int64  `bson:"wins" json:"wins"`
	Participated int64  `bson:"participated" json:"participated"`
}

type UserStats struct {
	Email        string  `json:"email"`
	Participated int64   `json:"participated"`
	Wins         int64   `json:"wins"`
	WinRate      float64 `json:"winRate"`
}
