package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kmelentyev/rosterd/internal/ctxutil"
	"github.com/kmelentyev/rosterd/internal/models"
	"github.com/kmelentyev/rosterd/internal/store"
)

func (s *Store) GetSchool(ctx context.Context, id int64) (*models.School, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT id, name FROM schools WHERE id = $1`, id)
	var sc models.School
	if err := row.Scan(&sc.ID, &sc.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sc, nil
}

func (s *Store) ListSchools(ctx context.Context) ([]models.School, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM schools ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.School
	for rows.Next() {
		var sc models.School
		if err := rows.Scan(&sc.ID, &sc.Name); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT id, full_name, email, profile_picture FROM users WHERE id = $1`, id)
	var u models.User
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.ProfilePicture); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateSchool(ctx context.Context, name string) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO schools (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	return id, err
}

func (s *Store) CreateUser(ctx context.Context, fullName, email string) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (full_name, email) VALUES ($1, $2) RETURNING id
	`, fullName, email).Scan(&id)
	return id, err
}

func (s *Store) CreateCourse(ctx context.Context, title string) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO courses (title) VALUES ($1) RETURNING id`, title).Scan(&id)
	return id, err
}

func (s *Store) CreateModule(ctx context.Context, courseID int64, title string) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO modules (course_id, title) VALUES ($1, $2) RETURNING id
	`, courseID, title).Scan(&id)
	return id, err
}

func (s *Store) CreateLesson(ctx context.Context, moduleID int64, title string) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO lessons (module_id, title) VALUES ($1, $2) RETURNING id
	`, moduleID, title).Scan(&id)
	return id, err
}

func (s *Store) UpsertLessonProgress(ctx context.Context, userID, lessonID int64, completedAt *time.Time) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lesson_progress (user_id, lesson_id, completed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, lesson_id) DO UPDATE SET completed_at = excluded.completed_at
	`, userID, lessonID, completedAt)
	return err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
