package services

import (
	"context"

	"github.com/vvka-141/deadpool/pkg/deadpool"
)

// StandingsService reads the scoreboard.
type StandingsService struct {
	access *RetryingAccess
}

// NewStandingsService creates a StandingsService.
// Panics if access is nil.
func NewStandingsService(access *RetryingAccess) *StandingsService {
	if access == nil {
		panic("access cannot be nil")
	}
	return &StandingsService{access: access}
}

// Standings returns every non-admin user, best score first, each with
// their list items. Users without items have an empty list.
func (s *StandingsService) Standings(ctx context.Context) ([]deadpool.Standing, error) {
	users, err := CollectRows(ctx, s.access, queryStandingUsers, []any{deadpool.AdminRole},
		func(rows deadpool.Rows) (deadpool.Standing, error) {
			var u deadpool.Standing
			err := rows.Scan(&u.ID, &u.Username, &u.TotalScore, &u.Role)
			return u, err
		})
	if err != nil {
		return nil, err
	}

	items, err := CollectRows(ctx, s.access, queryStandingItems, []any{deadpool.AdminRole},
		func(rows deadpool.Rows) (deadpool.ListItem, error) {
			var item deadpool.ListItem
			err := rows.Scan(&item.ID, &item.UserID, &item.Name, &item.Age, &item.IsDead, &item.BonusPoints, &item.CalculatedPoints)
			return item, err
		})
	if err != nil {
		return nil, err
	}

	byUser := make(map[int64][]deadpool.ListItem, len(users))
	for _, item := range items {
		byUser[item.UserID] = append(byUser[item.UserID], item)
	}

	// a user created between the two queries simply has no items yet
	for i := range users {
		users[i].List = byUser[users[i].ID]
		if users[i].List == nil {
			users[i].List = []deadpool.ListItem{}
		}
	}
	if users == nil {
		users = []deadpool.Standing{}
	}
	return users, nil
}
