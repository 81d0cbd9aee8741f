package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/contesthub/contesthub-gobackend/internal/apperr"
	"github.com/contesthub/contesthub-gobackend/internal/models"
	"github.com/contesthub/contesthub-gobackend/internal/store"
)

const (
	DefaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 200
	LatestWinnersLimit      = 6
)

// LeaderboardService serves read-only rankings and per-user stats.
type LeaderboardService struct {
	store store.Store
}

func NewLeaderboardService(st store.Store) *LeaderboardService {
	return &LeaderboardService{store: st}
}

func (s *LeaderboardService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardRow, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	rows, err := s.store.Users().Leaderboard(ctx, limit)
	if err != nil {
		return nil, storeErr(err, "")
	}
	if rows == nil {
		rows = []models.LeaderboardRow{}
	}
	return rows, nil
}

// UserStats counts entries and wins for email concurrently.
func (s *LeaderboardService) UserStats(ctx context.Context, email string) (*models.UserStats, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.New(apperr.CodeValidation, "email is required")
	}

	var participated, wins int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.Entries().CountByUser(gctx, email)
		participated = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.Contests().CountWins(gctx, email)
		wins = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeErr(err, "")
	}

	stats := &models.UserStats{Email: email, Participated: participated, Wins: wins}
	if participated > 0 {
		stats.WinRate = float64(wins) / float64(participated)
	}
	return stats, nil
}

func (s *LeaderboardService) LatestWinners(ctx context.Context) ([]models.LatestWinner, error) {
	winners, err := s.store.Contests().LatestWinners(ctx, LatestWinnersLimit)
	if err != nil {
		return nil, storeErr(err, "")
	}
	if winners == nil {
		winners = []models.LatestWinner{}
	}
	return winners, nil
}
