package models

import "time"

type Role string

const (
	Teacher Role = "teacher"
	Student Role = "student"
)

type Scope string

const (
	ScopeSchool Scope = "school"
	ScopeGlobal Scope = "global"
)

type School struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type User struct {
	ID             int64   `db:"id"`
	FullName       string  `db:"full_name"`
	Email          string  `db:"email"`
	ProfilePicture *string `db:"profile_picture"`
}

// Enrollment is the (user, school) membership row. Exactly one row per pair;
// ClassroomID is meaningful only for students.
type Enrollment struct {
	UserID      int64     `db:"user_id"`
	SchoolID    int64     `db:"school_id"`
	Role        Role      `db:"role"`
	Approved    bool      `db:"approved"`
	ClassroomID *int64    `db:"classroom_id"`
	JoinedAt    time.Time `db:"joined_at"`
}

// EnrollmentUser is an enrollment joined with its user row, the unit the
// batched school-wide reads return.
type EnrollmentUser struct {
	Enrollment
	FullName string `db:"full_name"`
	Email    string `db:"email"`
}

type Classroom struct {
	ID       int64  `db:"id"`
	SchoolID int64  `db:"school_id"`
	Name     string `db:"name"`
}

type TeacherAssignment struct {
	ClassroomID int64 `db:"classroom_id"`
	TeacherID   int64 `db:"teacher_id"`
}

type Course struct {
	ID    int64  `db:"id"`
	Title string `db:"title"`
}

type Module struct {
	ID       int64  `db:"id"`
	CourseID int64  `db:"course_id"`
	Title    string `db:"title"`
}

type Lesson struct {
	ID       int64  `db:"id"`
	ModuleID int64  `db:"module_id"`
	Title    string `db:"title"`
}

// CourseAssignment links a classroom to a granted course.
type CourseAssignment struct {
	ClassroomID int64 `db:"classroom_id"`
	CourseID    int64 `db:"course_id"`
}

// CourseLesson is a flattened course→module→lesson link.
type CourseLesson struct {
	CourseID int64 `db:"course_id"`
	LessonID int64 `db:"lesson_id"`
}

// UserLesson marks a lesson a user has completed.
type UserLesson struct {
	UserID   int64 `db:"user_id"`
	LessonID int64 `db:"lesson_id"`
}

type LessonProgress struct {
	UserID      int64      `db:"user_id"`
	LessonID    int64      `db:"lesson_id"`
	CompletedAt *time.Time `db:"completed_at"`
}

// Activity is one append-only audit row. SchoolID is nil for global-scoped
// entries.
type Activity struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	SchoolID  *int64    `db:"school_id" json:"school_id,omitempty"`
	Action    string    `db:"action" json:"action"`
	Details   string    `db:"details" json:"details"`
	Role      Role      `db:"role" json:"role"`
	Scope     Scope     `db:"scope" json:"scope"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ActivityEvent is emitted by roster mutations for the activity-logging
// collaborator. The engine produces it, it does not persist it.
type ActivityEvent struct {
	ActorUserID int64
	ActorRole   Role
	SchoolID    int64
	Action      string
	Details     string
	Scope       Scope
}
