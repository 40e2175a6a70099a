package postgres

import (
	"context"

	"github.com/kmelentyev/rosterd/internal/ctxutil"
	"github.com/kmelentyev/rosterd/internal/models"
)

func (s *Store) ListCourseAssignments(ctx context.Context, schoolID int64) ([]models.CourseAssignment, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT cca.classroom_id, cca.course_id
		FROM classroom_course_assignments cca
		JOIN classrooms c ON c.id = cca.classroom_id
		WHERE c.school_id = $1
		ORDER BY cca.classroom_id, cca.course_id
	`, schoolID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.CourseAssignment
	for rows.Next() {
		var a models.CourseAssignment
		if err := rows.Scan(&a.ClassroomID, &a.CourseID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListCourseLessons flattens course→module→lesson for the given courses.
// DISTINCT guards against double counting when modules share lessons after
// data repairs.
func (s *Store) ListCourseLessons(ctx context.Context, courseIDs []int64) ([]models.CourseLesson, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT m.course_id, l.id
		FROM modules m
		JOIN lessons l ON l.module_id = m.id
		WHERE m.course_id = ANY($1)
		ORDER BY m.course_id, l.id
	`, courseIDs)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.CourseLesson
	for rows.Next() {
		var cl models.CourseLesson
		if err := rows.Scan(&cl.CourseID, &cl.LessonID); err != nil {
			return nil, err
		}
		out = append(out, cl)
	}
	return out, rows.Err()
}

func (s *Store) ListCompletedLessons(ctx context.Context, userIDs []int64) ([]models.UserLesson, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, lesson_id
		FROM lesson_progress
		WHERE user_id = ANY($1) AND completed_at IS NOT NULL
		ORDER BY user_id, lesson_id
	`, userIDs)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.UserLesson
	for rows.Next() {
		var ul models.UserLesson
		if err := rows.Scan(&ul.UserID, &ul.LessonID); err != nil {
			return nil, err
		}
		out = append(out, ul)
	}
	return out, rows.Err()
}

func (s *Store) HasCourseGrant(ctx context.Context, schoolID, courseID int64) (bool, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM school_course_grants WHERE school_id = $1 AND course_id = $2)
	`, schoolID, courseID).Scan(&ok)
	return ok, err
}

func (s *Store) AddCourseAssignment(ctx context.Context, classroomID, courseID int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classroom_course_assignments (classroom_id, course_id)
		VALUES ($1, $2)
		ON CONFLICT (classroom_id, course_id) DO NOTHING
	`, classroomID, courseID)
	return err
}

func (s *Store) GrantCourse(ctx context.Context, schoolID, courseID int64) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO school_course_grants (school_id, course_id)
		VALUES ($1, $2)
		ON CONFLICT (school_id, course_id) DO NOTHING
	`, schoolID, courseID)
	return err
}
