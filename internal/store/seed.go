package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kmelentyev/rosterd/internal/models"
)

// SeedDemo populates a small demo school: one classroom with two teachers,
// three students at different completion levels, and one granted course with
// two modules. Dev environments only.
func SeedDemo(ctx context.Context, st Store) error {
	schoolID, err := st.CreateSchool(ctx, "Demo School")
	if err != nil {
		return fmt.Errorf("seed school: %w", err)
	}

	courseID, err := st.CreateCourse(ctx, "Mathematics")
	if err != nil {
		return err
	}
	if err := st.GrantCourse(ctx, schoolID, courseID); err != nil {
		return err
	}
	var lessonIDs []int64
	for m := 1; m <= 2; m++ {
		moduleID, err := st.CreateModule(ctx, courseID, fmt.Sprintf("Module %d", m))
		if err != nil {
			return err
		}
		for l := 1; l <= 3; l++ {
			lid, err := st.CreateLesson(ctx, moduleID, fmt.Sprintf("Lesson %d.%d", m, l))
			if err != nil {
				return err
			}
			lessonIDs = append(lessonIDs, lid)
		}
	}

	mkUser := func(name, email string, role models.Role, approved bool) (int64, error) {
		id, err := st.CreateUser(ctx, name, email)
		if err != nil {
			return 0, err
		}
		return id, st.CreateEnrollment(ctx, models.Enrollment{
			UserID:   id,
			SchoolID: schoolID,
			Role:     role,
			Approved: approved,
		})
	}

	t1, err := mkUser("Vera Pavlova", "vera@example.org", models.Teacher, true)
	if err != nil {
		return err
	}
	t2, err := mkUser("Igor Smirnov", "igor@example.org", models.Teacher, true)
	if err != nil {
		return err
	}
	classroomID, err := st.CreateClassroom(ctx, schoolID, "7A", []int64{t1, t2})
	if err != nil {
		return err
	}
	if err := st.AddCourseAssignment(ctx, classroomID, courseID); err != nil {
		return err
	}

	students := []struct {
		name, email string
		completed   int
	}{
		{"Anna Ivanova", "anna@example.org", len(lessonIDs)},
		{"Boris Petrov", "boris@example.org", len(lessonIDs) / 2},
		{"Dina Orlova", "dina@example.org", 0},
	}
	now := time.Now()
	for _, s := range students {
		sid, err := mkUser(s.name, s.email, models.Student, true)
		if err != nil {
			return err
		}
		if _, err := st.SetStudentClassroom(ctx, schoolID, sid, classroomID); err != nil {
			return err
		}
		for i := 0; i < s.completed; i++ {
			done := now.Add(-time.Duration(i) * time.Hour)
			if err := st.UpsertLessonProgress(ctx, sid, lessonIDs[i], &done); err != nil {
				return err
			}
		}
	}

	// one pending enrollment so the approval queue is not empty
	if _, err := mkUser("Egor Volkov", "egor@example.org", models.Student, false); err != nil {
		return err
	}
	return nil
}
