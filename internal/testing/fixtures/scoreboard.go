package fixtures

import (
	"context"
	"fmt"

	"github.com/vvka-141/deadpool/pkg/deadpool"
)

// ScoreboardBuilder provides a fluent API for seeding users and their list
// items into a database with the deadpool schema.
//
// Example usage:
//
//	board, err := NewScoreboard().
//	    AddUser("alice", func(u *UserBuilder) {
//	        u.AddItem("Person A", deadpool.ListItem{Age: IntPtr(85), IsDead: true, CalculatedPoints: 10})
//	        u.AddItem("Person B", deadpool.ListItem{})
//	    }).
//	    AddAdmin("root").
//	    Seed(ctx, pool)
type ScoreboardBuilder struct {
	users []*UserBuilder
}

// UserBuilder collects the list items of one user.
type UserBuilder struct {
	username string
	role     string
	items    []deadpool.ListItem
}

// Scoreboard holds the identifiers assigned while seeding.
type Scoreboard struct {
	Users map[string]int64 // username -> users.id
	Items map[string]int64 // item name -> lists.id
}

// NewScoreboard creates an empty builder.
func NewScoreboard() *ScoreboardBuilder {
	return &ScoreboardBuilder{}
}

// AddUser adds a regular player. build may be nil for a user without items.
func (b *ScoreboardBuilder) AddUser(username string, build func(*UserBuilder)) *ScoreboardBuilder {
	return b.add(username, "player", build)
}

// AddAdmin adds an administrator, who never appears in the standings.
func (b *ScoreboardBuilder) AddAdmin(username string) *ScoreboardBuilder {
	return b.add(username, deadpool.AdminRole, nil)
}

func (b *ScoreboardBuilder) add(username, role string, build func(*UserBuilder)) *ScoreboardBuilder {
	u := &UserBuilder{username: username, role: role}
	if build != nil {
		build(u)
	}
	b.users = append(b.users, u)
	return b
}

// AddItem adds a list item. ID, UserID and Name of item are ignored.
func (u *UserBuilder) AddItem(name string, item deadpool.ListItem) *UserBuilder {
	item.Name = name
	u.items = append(u.items, item)
	return u
}

// Seed inserts every user and item through q. Each user's total_score is
// the sum of the calculated_points of their items.
func (b *ScoreboardBuilder) Seed(ctx context.Context, q deadpool.Querier) (*Scoreboard, error) {
	board := &Scoreboard{
		Users: make(map[string]int64),
		Items: make(map[string]int64),
	}

	for _, u := range b.users {
		var total int64
		for _, item := range u.items {
			total += int64(item.CalculatedPoints)
		}

		var userID int64
		err := q.QueryRow(ctx,
			`INSERT INTO users (username, role, total_score) VALUES ($1, $2, $3) RETURNING id`,
			u.username, u.role, total,
		).Scan(&userID)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.username, err)
		}
		board.Users[u.username] = userID

		for _, item := range u.items {
			var itemID int64
			err := q.QueryRow(ctx,
				`INSERT INTO lists (user_id, name, age, is_dead, bonus_points, calculated_points)
				 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
				userID, item.Name, item.Age, item.IsDead, item.BonusPoints, item.CalculatedPoints,
			).Scan(&itemID)
			if err != nil {
				return nil, fmt.Errorf("seed item %s: %w", item.Name, err)
			}
			board.Items[item.Name] = itemID
		}
	}

	return board, nil
}

// ============================================================================
// Pre-built Fixtures
// ============================================================================

// TwoPlayers seeds alice with two items (one already scored) and bob with
// one item, plus an admin account.
//
//	alice: "Alice One" alive, age 50, 0 points
//	       "Alice Two" dead, age 85, bonus 5, 15 points
//	bob:   "Bob One"   alive, no age, 0 points
//	root:  admin, no items
func TwoPlayers() *ScoreboardBuilder {
	return NewScoreboard().
		AddUser("alice", func(u *UserBuilder) {
			u.AddItem("Alice One", deadpool.ListItem{Age: IntPtr(50)})
			u.AddItem("Alice Two", deadpool.ListItem{Age: IntPtr(85), IsDead: true, BonusPoints: 5, CalculatedPoints: 15})
		}).
		AddUser("bob", func(u *UserBuilder) {
			u.AddItem("Bob One", deadpool.ListItem{})
		}).
		AddAdmin("root")
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }
