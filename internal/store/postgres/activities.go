package postgres

import (
	"context"

	"github.com/kmelentyev/rosterd/internal/ctxutil"
	"github.com/kmelentyev/rosterd/internal/models"
)

func (s *Store) CountActivities(ctx context.Context, userIDs []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*) FROM activities WHERE user_id = ANY($1) GROUP BY user_id
	`, userIDs)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// ListRecentActivities returns the newest activities visible to a school:
// its own school-scoped rows plus global-scoped ones.
func (s *Store) ListRecentActivities(ctx context.Context, schoolID int64, limit int) ([]models.Activity, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, school_id, action, details, role, scope, created_at
		FROM activities
		WHERE (scope = 'school' AND school_id = $1) OR scope = 'global'
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, schoolID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Activity
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.SchoolID, &a.Action, &a.Details, &a.Role, &a.Scope, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) InsertActivity(ctx context.Context, a models.Activity) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO activities (user_id, school_id, action, details, role, scope, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
		RETURNING id
	`, a.UserID, a.SchoolID, a.Action, a.Details, string(a.Role), string(a.Scope), nullTime(a.CreatedAt)).Scan(&id)
	return id, err
}
