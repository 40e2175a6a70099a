// Package store declares the entity store contract the roster and analytics
// components run against. Implementations: postgres (production), memstore
// (tests, local runs).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kmelentyev/rosterd/internal/models"
)

var (
	// ErrNotFound — the referenced row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict — a uniqueness violation not swallowed by conflict-ignore.
	ErrConflict = errors.New("store: conflict")
)

type Store interface {
	// Reads.
	GetSchool(ctx context.Context, id int64) (*models.School, error)
	ListSchools(ctx context.Context) ([]models.School, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetClassroom(ctx context.Context, id int64) (*models.Classroom, error)
	GetEnrollment(ctx context.Context, schoolID, userID int64) (*models.Enrollment, error)
	ListEnrollments(ctx context.Context, schoolID int64) ([]models.EnrollmentUser, error)
	ListClassrooms(ctx context.Context, schoolID int64) ([]models.Classroom, error)
	ListTeacherAssignments(ctx context.Context, schoolID int64) ([]models.TeacherAssignment, error)
	ListCourseAssignments(ctx context.Context, schoolID int64) ([]models.CourseAssignment, error)
	ListCourseLessons(ctx context.Context, courseIDs []int64) ([]models.CourseLesson, error)
	ListCompletedLessons(ctx context.Context, userIDs []int64) ([]models.UserLesson, error)
	CountActivities(ctx context.Context, userIDs []int64) (map[int64]int, error)
	ListRecentActivities(ctx context.Context, schoolID int64, limit int) ([]models.Activity, error)
	HasCourseGrant(ctx context.Context, schoolID, courseID int64) (bool, error)

	// Conditional single-statement mutations (no read-then-write).
	ApproveEnrollment(ctx context.Context, schoolID, userID int64) (bool, error)
	ApproveAllEnrollments(ctx context.Context, schoolID int64) (int64, error)
	DeleteEnrollment(ctx context.Context, schoolID, userID int64) (bool, error)
	SetStudentClassroom(ctx context.Context, schoolID, userID, classroomID int64) (bool, error)

	// Classroom lifecycle. Create and Update run their teacher-assignment
	// writes in one transaction; Update replaces the full set. Delete
	// cascades to teacher and course assignments and detaches students.
	CreateClassroom(ctx context.Context, schoolID int64, name string, teacherIDs []int64) (int64, error)
	UpdateClassroom(ctx context.Context, classroomID int64, name string, teacherIDs []int64) error
	DeleteClassroom(ctx context.Context, classroomID int64) error

	// Duplicate-safe inserts (uniqueness constraint + conflict-ignore).
	AddTeacherAssignment(ctx context.Context, classroomID, teacherID int64) error
	AddCourseAssignment(ctx context.Context, classroomID, courseID int64) error

	// Entity creation, used by registration-side collaborators and seeding.
	CreateSchool(ctx context.Context, name string) (int64, error)
	CreateUser(ctx context.Context, fullName, email string) (int64, error)
	CreateEnrollment(ctx context.Context, e models.Enrollment) error
	CreateCourse(ctx context.Context, title string) (int64, error)
	CreateModule(ctx context.Context, courseID int64, title string) (int64, error)
	CreateLesson(ctx context.Context, moduleID int64, title string) (int64, error)
	GrantCourse(ctx context.Context, schoolID, courseID int64) error
	UpsertLessonProgress(ctx context.Context, userID, lessonID int64, completedAt *time.Time) error
	InsertActivity(ctx context.Context, a models.Activity) (int64, error)
}
