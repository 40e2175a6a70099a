package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kmelentyev/rosterd/internal/ctxutil"
	"github.com/kmelentyev/rosterd/internal/models"
	"github.com/kmelentyev/rosterd/internal/store"
)

func (s *Store) GetClassroom(ctx context.Context, id int64) (*models.Classroom, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT id, school_id, name FROM classrooms WHERE id = $1`, id)
	var c models.Classroom
	if err := row.Scan(&c.ID, &c.SchoolID, &c.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListClassrooms(ctx context.Context, schoolID int64) ([]models.Classroom, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, school_id, name FROM classrooms WHERE school_id = $1 ORDER BY id
	`, schoolID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Classroom
	for rows.Next() {
		var c models.Classroom
		if err := rows.Scan(&c.ID, &c.SchoolID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListTeacherAssignments(ctx context.Context, schoolID int64) ([]models.TeacherAssignment, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT ta.classroom_id, ta.teacher_id
		FROM teacher_assignments ta
		JOIN classrooms c ON c.id = ta.classroom_id
		WHERE c.school_id = $1
		ORDER BY ta.classroom_id, ta.teacher_id
	`, schoolID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.TeacherAssignment
	for rows.Next() {
		var a models.TeacherAssignment
		if err := rows.Scan(&a.ClassroomID, &a.TeacherID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateClassroom inserts the classroom and its teacher assignments in one
// transaction; duplicate teacher ids in the input collapse via
// conflict-ignore.
func (s *Store) CreateClassroom(ctx context.Context, schoolID int64, name string, teacherIDs []int64) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO classrooms (school_id, name) VALUES ($1, $2) RETURNING id
	`, schoolID, name).Scan(&id)
	if err != nil {
		return 0, err
	}

	if err := insertAssignments(ctx, tx, id, teacherIDs); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateClassroom renames the classroom and replaces the full teacher set
// (delete-all-then-insert) atomically. A concurrent reader sees either the
// old set or the new one, never the gap in between.
func (s *Store) UpdateClassroom(ctx context.Context, classroomID int64, name string, teacherIDs []int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE classrooms SET name = $2 WHERE id = $1`, classroomID, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM teacher_assignments WHERE classroom_id = $1`, classroomID); err != nil {
		return err
	}
	if err := insertAssignments(ctx, tx, classroomID, teacherIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteClassroom removes the row; assignments cascade and student
// enrollments detach via the FK actions in the schema.
func (s *Store) DeleteClassroom(ctx context.Context, classroomID int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `DELETE FROM classrooms WHERE id = $1`, classroomID)
	return err
}

func (s *Store) AddTeacherAssignment(ctx context.Context, classroomID, teacherID int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teacher_assignments (classroom_id, teacher_id)
		VALUES ($1, $2)
		ON CONFLICT (classroom_id, teacher_id) DO NOTHING
	`, classroomID, teacherID)
	return err
}

func insertAssignments(ctx context.Context, tx *sql.Tx, classroomID int64, teacherIDs []int64) error {
	if len(teacherIDs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO teacher_assignments (classroom_id, teacher_id)
		VALUES ($1, $2)
		ON CONFLICT (classroom_id, teacher_id) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, tid := range teacherIDs {
		if _, err := stmt.ExecContext(ctx, classroomID, tid); err != nil {
			return err
		}
	}
	return nil
}
