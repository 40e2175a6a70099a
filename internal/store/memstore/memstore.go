// Package memstore is an in-memory store.Store used by unit tests and local
// runs. It mirrors the postgres semantics: conditional updates, conflict-
// ignore inserts and replace-set atomicity, all under one mutex.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kmelentyev/rosterd/internal/models"
	"github.com/kmelentyev/rosterd/internal/store"
)

type enrollKey struct{ userID, schoolID int64 }
type pairKey struct{ a, b int64 }

type Store struct {
	mu sync.RWMutex

	schools     map[int64]models.School
	users       map[int64]models.User
	classrooms  map[int64]models.Classroom
	enrollments map[enrollKey]models.Enrollment
	enrollOrder []enrollKey // insertion order, stands in for joined_at ordering
	teacherAsg  map[pairKey]struct{}
	asgOrder    []pairKey
	courses     map[int64]models.Course
	modules     map[int64]models.Module
	lessons     map[int64]models.Lesson
	grants      map[pairKey]struct{}
	courseAsg   map[pairKey]struct{}
	courseOrder []pairKey
	progress    map[pairKey]*time.Time // (userID, lessonID)
	activities  []models.Activity

	nextID int64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		schools:     map[int64]models.School{},
		users:       map[int64]models.User{},
		classrooms:  map[int64]models.Classroom{},
		enrollments: map[enrollKey]models.Enrollment{},
		teacherAsg:  map[pairKey]struct{}{},
		courses:     map[int64]models.Course{},
		modules:     map[int64]models.Module{},
		lessons:     map[int64]models.Lesson{},
		grants:      map[pairKey]struct{}{},
		courseAsg:   map[pairKey]struct{}{},
		progress:    map[pairKey]*time.Time{},
	}
}

func (s *Store) PingContext(context.Context) error { return nil }

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// --- reads ---

func (s *Store) GetSchool(_ context.Context, id int64) (*models.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.schools[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sc, nil
}

func (s *Store) ListSchools(context.Context) ([]models.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.School, 0, len(s.schools))
	for _, sc := range s.schools {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetClassroom(_ context.Context, id int64) (*models.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classrooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetEnrollment(_ context.Context, schoolID, userID int64) (*models.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.enrollments[enrollKey{userID, schoolID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s *Store) ListEnrollments(_ context.Context, schoolID int64) ([]models.EnrollmentUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.EnrollmentUser
	for _, k := range s.enrollOrder {
		e, ok := s.enrollments[k]
		if !ok || e.SchoolID != schoolID {
			continue
		}
		u := s.users[e.UserID]
		out = append(out, models.EnrollmentUser{Enrollment: e, FullName: u.FullName, Email: u.Email})
	}
	return out, nil
}

func (s *Store) ListClassrooms(_ context.Context, schoolID int64) ([]models.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Classroom
	for _, c := range s.classrooms {
		if c.SchoolID == schoolID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListTeacherAssignments(_ context.Context, schoolID int64) ([]models.TeacherAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TeacherAssignment
	for _, k := range s.asgOrder {
		if _, ok := s.teacherAsg[k]; !ok {
			continue
		}
		c, ok := s.classrooms[k.a]
		if !ok || c.SchoolID != schoolID {
			continue
		}
		out = append(out, models.TeacherAssignment{ClassroomID: k.a, TeacherID: k.b})
	}
	return out, nil
}

func (s *Store) ListCourseAssignments(_ context.Context, schoolID int64) ([]models.CourseAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.CourseAssignment
	for _, k := range s.courseOrder {
		if _, ok := s.courseAsg[k]; !ok {
			continue
		}
		c, ok := s.classrooms[k.a]
		if !ok || c.SchoolID != schoolID {
			continue
		}
		out = append(out, models.CourseAssignment{ClassroomID: k.a, CourseID: k.b})
	}
	return out, nil
}

func (s *Store) ListCourseLessons(_ context.Context, courseIDs []int64) ([]models.CourseLesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[int64]struct{}, len(courseIDs))
	for _, id := range courseIDs {
		want[id] = struct{}{}
	}
	var out []models.CourseLesson
	for _, l := range s.lessons {
		m, ok := s.modules[l.ModuleID]
		if !ok {
			continue
		}
		if _, ok := want[m.CourseID]; !ok {
			continue
		}
		out = append(out, models.CourseLesson{CourseID: m.CourseID, LessonID: l.ID})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CourseID != out[j].CourseID {
			return out[i].CourseID < out[j].CourseID
		}
		return out[i].LessonID < out[j].LessonID
	})
	return out, nil
}

func (s *Store) ListCompletedLessons(_ context.Context, userIDs []int64) ([]models.UserLesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		want[id] = struct{}{}
	}
	var out []models.UserLesson
	for k, done := range s.progress {
		if done == nil {
			continue
		}
		if _, ok := want[k.a]; !ok {
			continue
		}
		out = append(out, models.UserLesson{UserID: k.a, LessonID: k.b})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].LessonID < out[j].LessonID
	})
	return out, nil
}

func (s *Store) CountActivities(_ context.Context, userIDs []int64) (map[int64]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		want[id] = struct{}{}
	}
	out := make(map[int64]int, len(userIDs))
	for _, a := range s.activities {
		if _, ok := want[a.UserID]; ok {
			out[a.UserID]++
		}
	}
	return out, nil
}

func (s *Store) ListRecentActivities(_ context.Context, schoolID int64, limit int) ([]models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Activity
	for _, a := range s.activities {
		if a.Scope == models.ScopeGlobal || (a.Scope == models.ScopeSchool && a.SchoolID != nil && *a.SchoolID == schoolID) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) HasCourseGrant(_ context.Context, schoolID, courseID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[pairKey{schoolID, courseID}]
	return ok, nil
}

// --- conditional mutations ---

func (s *Store) ApproveEnrollment(_ context.Context, schoolID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := enrollKey{userID, schoolID}
	e, ok := s.enrollments[k]
	if !ok || e.Approved {
		return false, nil
	}
	e.Approved = true
	s.enrollments[k] = e
	return true, nil
}

func (s *Store) ApproveAllEnrollments(_ context.Context, schoolID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, e := range s.enrollments {
		if e.SchoolID == schoolID && !e.Approved {
			e.Approved = true
			s.enrollments[k] = e
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteEnrollment(_ context.Context, schoolID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := enrollKey{userID, schoolID}
	if _, ok := s.enrollments[k]; !ok {
		return false, nil
	}
	delete(s.enrollments, k)
	return true, nil
}

func (s *Store) SetStudentClassroom(_ context.Context, schoolID, userID, classroomID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := enrollKey{userID, schoolID}
	e, ok := s.enrollments[k]
	if !ok || e.Role != models.Student {
		return false, nil
	}
	e.ClassroomID = &classroomID
	s.enrollments[k] = e
	return true, nil
}

// --- classroom lifecycle ---

func (s *Store) CreateClassroom(_ context.Context, schoolID int64, name string, teacherIDs []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.classrooms[id] = models.Classroom{ID: id, SchoolID: schoolID, Name: name}
	s.addAssignmentsLocked(id, teacherIDs)
	return id, nil
}

func (s *Store) UpdateClassroom(_ context.Context, classroomID int64, name string, teacherIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.classrooms[classroomID]
	if !ok {
		return store.ErrNotFound
	}
	c.Name = name
	s.classrooms[classroomID] = c
	for k := range s.teacherAsg {
		if k.a == classroomID {
			delete(s.teacherAsg, k)
		}
	}
	s.addAssignmentsLocked(classroomID, teacherIDs)
	return nil
}

func (s *Store) DeleteClassroom(_ context.Context, classroomID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.classrooms, classroomID)
	for k := range s.teacherAsg {
		if k.a == classroomID {
			delete(s.teacherAsg, k)
		}
	}
	for k := range s.courseAsg {
		if k.a == classroomID {
			delete(s.courseAsg, k)
		}
	}
	for k, e := range s.enrollments {
		if e.ClassroomID != nil && *e.ClassroomID == classroomID {
			e.ClassroomID = nil
			s.enrollments[k] = e
		}
	}
	return nil
}

func (s *Store) AddTeacherAssignment(_ context.Context, classroomID, teacherID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classrooms[classroomID]; !ok {
		return store.ErrNotFound
	}
	s.addAssignmentsLocked(classroomID, []int64{teacherID})
	return nil
}

func (s *Store) addAssignmentsLocked(classroomID int64, teacherIDs []int64) {
	for _, tid := range teacherIDs {
		k := pairKey{classroomID, tid}
		if _, ok := s.teacherAsg[k]; ok {
			continue
		}
		s.teacherAsg[k] = struct{}{}
		s.asgOrder = append(s.asgOrder, k)
	}
}

func (s *Store) AddCourseAssignment(_ context.Context, classroomID, courseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classrooms[classroomID]; !ok {
		return store.ErrNotFound
	}
	k := pairKey{classroomID, courseID}
	if _, ok := s.courseAsg[k]; ok {
		return nil
	}
	s.courseAsg[k] = struct{}{}
	s.courseOrder = append(s.courseOrder, k)
	return nil
}

// --- entity creation ---

func (s *Store) CreateSchool(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.schools[id] = models.School{ID: id, Name: name}
	return id, nil
}

func (s *Store) CreateUser(_ context.Context, fullName, email string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.users[id] = models.User{ID: id, FullName: fullName, Email: email}
	return id, nil
}

func (s *Store) CreateEnrollment(_ context.Context, e models.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := enrollKey{e.UserID, e.SchoolID}
	if _, ok := s.enrollments[k]; ok {
		return store.ErrConflict
	}
	if e.JoinedAt.IsZero() {
		e.JoinedAt = time.Now()
	}
	s.enrollments[k] = e
	s.enrollOrder = append(s.enrollOrder, k)
	return nil
}

func (s *Store) CreateCourse(_ context.Context, title string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.courses[id] = models.Course{ID: id, Title: title}
	return id, nil
}

func (s *Store) CreateModule(_ context.Context, courseID int64, title string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.modules[id] = models.Module{ID: id, CourseID: courseID, Title: title}
	return id, nil
}

func (s *Store) CreateLesson(_ context.Context, moduleID int64, title string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.lessons[id] = models.Lesson{ID: id, ModuleID: moduleID, Title: title}
	return id, nil
}

func (s *Store) GrantCourse(_ context.Context, schoolID, courseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[pairKey{schoolID, courseID}] = struct{}{}
	return nil
}

func (s *Store) UpsertLessonProgress(_ context.Context, userID, lessonID int64, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[pairKey{userID, lessonID}] = completedAt
	return nil
}

func (s *Store) InsertActivity(_ context.Context, a models.Activity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.activities = append(s.activities, a)
	return a.ID, nil
}
