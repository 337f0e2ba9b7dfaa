package services

// SQL statements of the scoreboard services. Placeholders follow PostgreSQL
// ($1, $2, ...).

const (
	// queryUpdateListItem stores the new state and points of a list item.
	// Parameters: $1 age (nullable), $2 is_dead, $3 calculated_points,
	// $4 bonus_points, $5 list item id
	queryUpdateListItem = `
		UPDATE lists
		   SET age = $1, is_dead = $2, calculated_points = $3, bonus_points = $4
		 WHERE id = $5
	`

	// queryListOwner finds the user owning a list item.
	queryListOwner = `SELECT user_id FROM lists WHERE id = $1`

	// queryLockUser takes the owner's row lock. Held until commit, it makes
	// concurrent updates of one user's items run their SUM one after another.
	queryLockUser = `SELECT id FROM users WHERE id = $1 FOR UPDATE`

	// querySumPoints adds up a user's calculated points; 0 when the user has no items.
	querySumPoints = `SELECT COALESCE(SUM(calculated_points), 0) FROM lists WHERE user_id = $1`

	// queryUpdateTotalScore stores the recomputed aggregate.
	queryUpdateTotalScore = `UPDATE users SET total_score = $1 WHERE id = $2`

	// queryConfigValue reads one config entry.
	queryConfigValue = `SELECT config_value FROM config WHERE config_key = $1`

	// queryInsertConfigDefault stores a value unless the key already exists.
	queryInsertConfigDefault = `
		INSERT INTO config (config_key, config_value) VALUES ($1, $2)
		ON CONFLICT (config_key) DO NOTHING
	`

	// queryUpsertConfig stores a value, replacing any existing one.
	queryUpsertConfig = `
		INSERT INTO config (config_key, config_value) VALUES ($1, $2)
		ON CONFLICT (config_key) DO UPDATE SET config_value = EXCLUDED.config_value
	`

	// queryStandingUsers lists every user except those with role $1,
	// best score first.
	queryStandingUsers = `
		SELECT id, username, total_score, role
		  FROM users
		 WHERE role <> $1
		 ORDER BY total_score DESC, username
	`

	// queryStandingItems lists the items of every user except those with role $1.
	queryStandingItems = `
		SELECT l.id, l.user_id, l.name, l.age, l.is_dead, l.bonus_points, l.calculated_points
		  FROM lists l
		  JOIN users u ON u.id = l.user_id
		 WHERE u.role <> $1
		 ORDER BY l.id
	`
)
