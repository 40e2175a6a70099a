package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kmelentyev/rosterd/internal/ctxutil"
	"github.com/kmelentyev/rosterd/internal/models"
	"github.com/kmelentyev/rosterd/internal/store"
)

func (s *Store) GetEnrollment(ctx context.Context, schoolID, userID int64) (*models.Enrollment, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, school_id, role, approved, classroom_id, joined_at
		FROM enrollments
		WHERE school_id = $1 AND user_id = $2
	`, schoolID, userID)

	var e models.Enrollment
	if err := row.Scan(&e.UserID, &e.SchoolID, &e.Role, &e.Approved, &e.ClassroomID, &e.JoinedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListEnrollments(ctx context.Context, schoolID int64) ([]models.EnrollmentUser, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.user_id, e.school_id, e.role, e.approved, e.classroom_id, e.joined_at,
		       u.full_name, u.email
		FROM enrollments e
		JOIN users u ON u.id = e.user_id
		WHERE e.school_id = $1
		ORDER BY e.joined_at, e.user_id
	`, schoolID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.EnrollmentUser
	for rows.Next() {
		var e models.EnrollmentUser
		if err := rows.Scan(&e.UserID, &e.SchoolID, &e.Role, &e.Approved, &e.ClassroomID, &e.JoinedAt, &e.FullName, &e.Email); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ApproveEnrollment flips approved=false to true in a single conditional
// update. Zero rows updated is not an error: the enrollment is already
// approved or does not exist, both safe under retry.
func (s *Store) ApproveEnrollment(ctx context.Context, schoolID, userID int64) (bool, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE enrollments SET approved = TRUE
		WHERE school_id = $1 AND user_id = $2 AND approved = FALSE
	`, schoolID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) ApproveAllEnrollments(ctx context.Context, schoolID int64) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE enrollments SET approved = TRUE
		WHERE school_id = $1 AND approved = FALSE
	`, schoolID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) DeleteEnrollment(ctx context.Context, schoolID, userID int64) (bool, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM enrollments WHERE school_id = $1 AND user_id = $2
	`, schoolID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetStudentClassroom places a student into a classroom. Conditional on
// role='student' so a concurrent role mixup cannot attach a teacher here.
func (s *Store) SetStudentClassroom(ctx context.Context, schoolID, userID, classroomID int64) (bool, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE enrollments SET classroom_id = $3
		WHERE school_id = $1 AND user_id = $2 AND role = 'student'
	`, schoolID, userID, classroomID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) CreateEnrollment(ctx context.Context, e models.Enrollment) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO enrollments (user_id, school_id, role, approved, classroom_id, joined_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		ON CONFLICT (user_id, school_id) DO NOTHING
	`, e.UserID, e.SchoolID, string(e.Role), e.Approved, e.ClassroomID, nullTime(e.JoinedAt))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}
