package models

import "time"

// Read models derived per request; never stored.

type ClassroomView struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	TeacherNames string  `json:"teacher_names"` // comma-joined, "Unassigned" if none
	TeacherIDs   []int64 `json:"teacher_ids"`
	StudentCount int     `json:"student_count"`
}

type EngagementRow struct {
	UserID           int64   `json:"user_id"`
	FullName         string  `json:"full_name"`
	ClassroomID      *int64  `json:"classroom_id"`
	TotalLessons     int     `json:"total_lessons"`
	LessonsCompleted int     `json:"lessons_completed"`
	ActivitiesLogged int     `json:"activities_logged"`
	EngagementRate   float64 `json:"engagement_rate"` // 0..100, one decimal
}

type PerformanceRow struct {
	TeacherID          int64   `json:"teacher_id"`
	FullName           string  `json:"full_name"`
	ClassroomsAssigned int     `json:"classrooms_assigned"`
	TotalStudents      int     `json:"total_students"`
	AvgEngagement      float64 `json:"avg_engagement"` // 0..100, one decimal
}

type Member struct {
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type PendingEnrollment struct {
	UserID   int64     `json:"user_id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// ClassroomRoster is a roster view enriched for the dashboard: who is in the
// classroom and which approved students of the school could still be added.
type ClassroomRoster struct {
	ClassroomView
	Students          []Member `json:"students"`
	AvailableStudents []Member `json:"available_students"`
}

// Snapshot is one composed dashboard read model for a single school.
type Snapshot struct {
	School             School              `json:"school"`
	PendingEnrollments []PendingEnrollment `json:"pending_enrollments"`
	Classrooms         []ClassroomRoster   `json:"classrooms"`
	Teachers           []Member            `json:"teachers"`
	Students           []Member            `json:"students"`
	RecentActivities   []Activity          `json:"recent_activities"`
	TeacherPerformance []PerformanceRow    `json:"teacher_performance"`
	StudentEngagement  []EngagementRow     `json:"student_engagement"`
}
