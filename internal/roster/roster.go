// Package roster enforces enrollment, approval and assignment invariants for
// a school. All mutations go through single conditional store operations, so
// a per-user approve racing an approve-all cannot lose updates.
package roster

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kmelentyev/rosterd/internal/ctxutil"
	"github.com/kmelentyev/rosterd/internal/metrics"
	"github.com/kmelentyev/rosterd/internal/models"
	"github.com/kmelentyev/rosterd/internal/store"
)

// Recorder receives an activity event after each successful mutation. The
// manager only emits; persistence and fan-out live with the collaborator.
type Recorder interface {
	Record(ctx context.Context, ev models.ActivityEvent)
}

// MultiRecorder fans one event out to several recorders.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, ev models.ActivityEvent) {
	for _, r := range m {
		r.Record(ctx, ev)
	}
}

type Manager struct {
	st  store.Store
	log *zap.Logger
	rec Recorder // optional
}

func New(st store.Store, log *zap.Logger, rec Recorder) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{st: st, log: log, rec: rec}
}

// Approve sets approved=true on the matching enrollment. Idempotent: an
// already-approved or missing enrollment is success, which keeps retries
// safe.
func (m *Manager) Approve(ctx context.Context, schoolID, userID int64) error {
	updated, err := m.st.ApproveEnrollment(ctx, schoolID, userID)
	if err != nil {
		return m.fail(ctx, "approve", err)
	}
	if updated {
		m.emit(ctx, schoolID, "enrollment_approved", fmt.Sprintf("user %d approved", userID))
	}
	metrics.RosterOps.WithLabelValues("approve").Inc()
	return nil
}

// ApproveAll approves every pending enrollment of the school in one store
// statement.
func (m *Manager) ApproveAll(ctx context.Context, schoolID int64) (int64, error) {
	n, err := m.st.ApproveAllEnrollments(ctx, schoolID)
	if err != nil {
		return 0, m.fail(ctx, "approve_all", err)
	}
	if n > 0 {
		m.emit(ctx, schoolID, "enrollments_approved", fmt.Sprintf("%d enrollments approved", n))
	}
	metrics.RosterOps.WithLabelValues("approve_all").Inc()
	return n, nil
}

// Reject deletes the enrollment row outright. No-op when none exists.
func (m *Manager) Reject(ctx context.Context, schoolID, userID int64) error {
	deleted, err := m.st.DeleteEnrollment(ctx, schoolID, userID)
	if err != nil {
		return m.fail(ctx, "reject", err)
	}
	if deleted {
		m.emit(ctx, schoolID, "enrollment_rejected", fmt.Sprintf("user %d removed", userID))
	}
	metrics.RosterOps.WithLabelValues("reject").Inc()
	return nil
}

func (m *Manager) CreateClassroom(ctx context.Context, schoolID int64, name string, teacherIDs []int64) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, &ValidationError{Field: "name", Reason: "classroom name is empty"}
	}
	id, err := m.st.CreateClassroom(ctx, schoolID, name, teacherIDs)
	if err != nil {
		return 0, m.fail(ctx, "create_classroom", err)
	}
	m.emit(ctx, schoolID, "classroom_created", fmt.Sprintf("classroom %q (%d)", name, id))
	metrics.RosterOps.WithLabelValues("create_classroom").Inc()
	return id, nil
}

// UpdateClassroom renames the classroom and replaces the entire teacher set.
// Callers pass the complete desired set, not a diff.
func (m *Manager) UpdateClassroom(ctx context.Context, classroomID int64, name string, teacherIDs []int64) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Reason: "classroom name is empty"}
	}
	c, err := m.st.GetClassroom(ctx, classroomID)
	if err != nil {
		return m.fail(ctx, "update_classroom", err)
	}
	if err := m.st.UpdateClassroom(ctx, classroomID, name, teacherIDs); err != nil {
		return m.fail(ctx, "update_classroom", err)
	}
	m.emit(ctx, c.SchoolID, "classroom_updated", fmt.Sprintf("classroom %q (%d), %d teachers", name, classroomID, len(teacherIDs)))
	metrics.RosterOps.WithLabelValues("update_classroom").Inc()
	return nil
}

func (m *Manager) DeleteClassroom(ctx context.Context, classroomID int64) error {
	c, err := m.st.GetClassroom(ctx, classroomID)
	if err != nil {
		return m.fail(ctx, "delete_classroom", err)
	}
	if err := m.st.DeleteClassroom(ctx, classroomID); err != nil {
		return m.fail(ctx, "delete_classroom", err)
	}
	m.emit(ctx, c.SchoolID, "classroom_deleted", fmt.Sprintf("classroom %q (%d)", c.Name, classroomID))
	metrics.RosterOps.WithLabelValues("delete_classroom").Inc()
	return nil
}

// AssignUserToClassroom routes by role: students get classroom_id on the
// enrollment, teachers get a duplicate-safe assignment row.
func (m *Manager) AssignUserToClassroom(ctx context.Context, schoolID, classroomID, userID int64) error {
	e, err := m.lookupEnrollment(ctx, schoolID, userID)
	if err != nil {
		return err
	}
	if err := m.checkClassroom(ctx, schoolID, classroomID); err != nil {
		return err
	}
	switch e.Role {
	case models.Student:
		if _, err := m.st.SetStudentClassroom(ctx, schoolID, userID, classroomID); err != nil {
			return m.fail(ctx, "assign_user", err)
		}
	case models.Teacher:
		if err := m.st.AddTeacherAssignment(ctx, classroomID, userID); err != nil {
			return m.fail(ctx, "assign_user", err)
		}
	default:
		return &ValidationError{Field: "role", Reason: "unknown role " + string(e.Role)}
	}
	m.emit(ctx, schoolID, "classroom_assigned", fmt.Sprintf("%s %d -> classroom %d", e.Role, userID, classroomID))
	metrics.RosterOps.WithLabelValues("assign_user").Inc()
	return nil
}

// AddStudentToClassroom is the stricter variant: the enrollment must already
// be approved.
func (m *Manager) AddStudentToClassroom(ctx context.Context, schoolID, classroomID, studentID int64) error {
	e, err := m.lookupEnrollment(ctx, schoolID, studentID)
	if err != nil {
		return err
	}
	if !e.Approved {
		name := ""
		if u, uerr := m.st.GetUser(ctx, studentID); uerr == nil {
			name = u.FullName
		}
		return &NotApprovedError{StudentID: studentID, FullName: name}
	}
	if err := m.checkClassroom(ctx, schoolID, classroomID); err != nil {
		return err
	}
	if _, err := m.st.SetStudentClassroom(ctx, schoolID, studentID, classroomID); err != nil {
		return m.fail(ctx, "add_student", err)
	}
	m.emit(ctx, schoolID, "student_added", fmt.Sprintf("student %d -> classroom %d", studentID, classroomID))
	metrics.RosterOps.WithLabelValues("add_student").Inc()
	return nil
}

// AssignCourseToClassroom requires a SchoolCourseGrant; the insert itself is
// duplicate-safe.
func (m *Manager) AssignCourseToClassroom(ctx context.Context, schoolID, classroomID, courseID int64) error {
	granted, err := m.st.HasCourseGrant(ctx, schoolID, courseID)
	if err != nil {
		return m.fail(ctx, "assign_course", err)
	}
	if !granted {
		return fmt.Errorf("course %d, school %d: %w", courseID, schoolID, ErrNotGranted)
	}
	if err := m.checkClassroom(ctx, schoolID, classroomID); err != nil {
		return err
	}
	if err := m.st.AddCourseAssignment(ctx, classroomID, courseID); err != nil {
		return m.fail(ctx, "assign_course", err)
	}
	m.emit(ctx, schoolID, "course_assigned", fmt.Sprintf("course %d -> classroom %d", courseID, classroomID))
	metrics.RosterOps.WithLabelValues("assign_course").Inc()
	return nil
}

func (m *Manager) lookupEnrollment(ctx context.Context, schoolID, userID int64) (*models.Enrollment, error) {
	e, err := m.st.GetEnrollment(ctx, schoolID, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("user %d, school %d: %w", userID, schoolID, ErrNotEnrolled)
		}
		return nil, m.fail(ctx, "lookup_enrollment", err)
	}
	return e, nil
}

// checkClassroom verifies the classroom exists and belongs to the school.
func (m *Manager) checkClassroom(ctx context.Context, schoolID, classroomID int64) error {
	c, err := m.st.GetClassroom(ctx, classroomID)
	if err != nil {
		return m.fail(ctx, "check_classroom", err)
	}
	if c.SchoolID != schoolID {
		return fmt.Errorf("classroom %d is not in school %d: %w", classroomID, schoolID, store.ErrNotFound)
	}
	return nil
}

func (m *Manager) emit(ctx context.Context, schoolID int64, action, details string) {
	if m.rec == nil {
		return
	}
	actor, _ := ctxutil.ActorID(ctx)
	role, _ := ctxutil.ActorRole(ctx)
	m.rec.Record(ctx, models.ActivityEvent{
		ActorUserID: actor,
		ActorRole:   role,
		SchoolID:    schoolID,
		Action:      action,
		Details:     details,
		Scope:       models.ScopeSchool,
	})
}

func (m *Manager) fail(ctx context.Context, op string, err error) error {
	metrics.RosterOpErrors.WithLabelValues(op).Inc()
	m.log.Warn("roster op failed", zap.String("op", op), zap.Error(err))
	return err
}
