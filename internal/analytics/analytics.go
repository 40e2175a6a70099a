// Package analytics derives per-student engagement and per-teacher
// performance from current store state. Everything here is read-only and
// recomputed per request; nothing is cached.
//
// All join levels count distinct lessons: a lesson reachable through several
// course paths (classroom→course→module→lesson) counts once. Naive counting
// silently inflates totals, which is the main trap in these derivations.
package analytics

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/kmelentyev/rosterd/internal/models"
	"github.com/kmelentyev/rosterd/internal/store"
)

type Engine struct {
	st store.Store
}

func New(st store.Store) *Engine { return &Engine{st: st} }

// dataset holds the batched rows one derivation pass needs: fetched once,
// partitioned in memory, shared between the roster, engagement and
// performance views.
type dataset struct {
	classrooms  []models.Classroom
	enrollments []models.EnrollmentUser
	assignments []models.TeacherAssignment

	// intermediate sets, computed once and reused
	names            map[int64]string             // userID -> full name
	students         []models.EnrollmentUser      // approved students, input order
	teachers         []models.EnrollmentUser      // approved teachers, input order
	lessonsByRoom    map[int64]map[int64]struct{} // classroomID -> distinct lesson set
	completedByUser  map[int64]map[int64]struct{} // userID -> completed lesson set
	activitiesByUser map[int64]int                // userID -> activity count
	teachersByRoom   map[int64][]int64            // classroomID -> teacher ids (input order)
	roomsByTeacher   map[int64][]int64            // teacherID -> classroom ids (input order)
	studentsByRoom   map[int64][]int64            // classroomID -> approved student ids
}

func (e *Engine) load(ctx context.Context, schoolID int64) (*dataset, error) {
	d := &dataset{
		names:            map[int64]string{},
		lessonsByRoom:    map[int64]map[int64]struct{}{},
		completedByUser:  map[int64]map[int64]struct{}{},
		activitiesByUser: map[int64]int{},
		teachersByRoom:   map[int64][]int64{},
		roomsByTeacher:   map[int64][]int64{},
		studentsByRoom:   map[int64][]int64{},
	}

	var err error
	if d.classrooms, err = e.st.ListClassrooms(ctx, schoolID); err != nil {
		return nil, err
	}
	if d.enrollments, err = e.st.ListEnrollments(ctx, schoolID); err != nil {
		return nil, err
	}
	if d.assignments, err = e.st.ListTeacherAssignments(ctx, schoolID); err != nil {
		return nil, err
	}

	for _, en := range d.enrollments {
		d.names[en.UserID] = en.FullName
		if !en.Approved {
			continue
		}
		switch en.Role {
		case models.Student:
			d.students = append(d.students, en)
			if en.ClassroomID != nil {
				d.studentsByRoom[*en.ClassroomID] = append(d.studentsByRoom[*en.ClassroomID], en.UserID)
			}
		case models.Teacher:
			d.teachers = append(d.teachers, en)
		}
	}

	for _, a := range d.assignments {
		d.teachersByRoom[a.ClassroomID] = append(d.teachersByRoom[a.ClassroomID], a.TeacherID)
		d.roomsByTeacher[a.TeacherID] = append(d.roomsByTeacher[a.TeacherID], a.ClassroomID)
	}

	// classroom -> courses -> lessons, de-duplicated per classroom
	courseAsg, err := e.st.ListCourseAssignments(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	courseSet := map[int64]struct{}{}
	var courseIDs []int64
	for _, ca := range courseAsg {
		if _, ok := courseSet[ca.CourseID]; !ok {
			courseSet[ca.CourseID] = struct{}{}
			courseIDs = append(courseIDs, ca.CourseID)
		}
	}
	courseLessons, err := e.st.ListCourseLessons(ctx, courseIDs)
	if err != nil {
		return nil, err
	}
	lessonsByCourse := map[int64][]int64{}
	for _, cl := range courseLessons {
		lessonsByCourse[cl.CourseID] = append(lessonsByCourse[cl.CourseID], cl.LessonID)
	}
	for _, ca := range courseAsg {
		set := d.lessonsByRoom[ca.ClassroomID]
		if set == nil {
			set = map[int64]struct{}{}
			d.lessonsByRoom[ca.ClassroomID] = set
		}
		for _, lid := range lessonsByCourse[ca.CourseID] {
			set[lid] = struct{}{}
		}
	}

	// completions and activity counts for all approved students, one pass
	studentIDs := make([]int64, 0, len(d.students))
	for _, st := range d.students {
		studentIDs = append(studentIDs, st.UserID)
	}
	completed, err := e.st.ListCompletedLessons(ctx, studentIDs)
	if err != nil {
		return nil, err
	}
	for _, ul := range completed {
		set := d.completedByUser[ul.UserID]
		if set == nil {
			set = map[int64]struct{}{}
			d.completedByUser[ul.UserID] = set
		}
		set[ul.LessonID] = struct{}{}
	}
	if d.activitiesByUser, err = e.st.CountActivities(ctx, studentIDs); err != nil {
		return nil, err
	}
	return d, nil
}

// ClassroomRoster returns every classroom of the school exactly once,
// including classrooms with no teachers and no students.
func (e *Engine) ClassroomRoster(ctx context.Context, schoolID int64) ([]models.ClassroomView, error) {
	d, err := e.load(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	return d.classroomRoster(), nil
}

func (d *dataset) classroomRoster() []models.ClassroomView {
	out := make([]models.ClassroomView, 0, len(d.classrooms))
	for _, c := range d.classrooms {
		v := models.ClassroomView{ID: c.ID, Name: c.Name}
		var names []string
		for _, tid := range d.teachersByRoom[c.ID] {
			v.TeacherIDs = append(v.TeacherIDs, tid)
			names = append(names, d.names[tid])
		}
		if len(names) == 0 {
			v.TeacherNames = "Unassigned"
		} else {
			v.TeacherNames = strings.Join(names, ", ")
		}
		v.StudentCount = len(d.studentsByRoom[c.ID])
		out = append(out, v)
	}
	return out
}

// StudentEngagement returns one row per approved student, ordered by
// engagement rate descending; ties keep store iteration order.
func (e *Engine) StudentEngagement(ctx context.Context, schoolID int64) ([]models.EngagementRow, error) {
	d, err := e.load(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	return d.studentEngagement(), nil
}

func (d *dataset) studentEngagement() []models.EngagementRow {
	out := make([]models.EngagementRow, 0, len(d.students))
	for _, st := range d.students {
		row := models.EngagementRow{
			UserID:           st.UserID,
			FullName:         st.FullName,
			ClassroomID:      st.ClassroomID,
			ActivitiesLogged: d.activitiesByUser[st.UserID],
		}
		if st.ClassroomID != nil {
			reachable := d.lessonsByRoom[*st.ClassroomID]
			row.TotalLessons = len(reachable)
			done := d.completedByUser[st.UserID]
			for lid := range reachable {
				if _, ok := done[lid]; ok {
					row.LessonsCompleted++
				}
			}
		}
		// exactly 0 when nothing is reachable, never NaN
		if row.TotalLessons > 0 {
			row.EngagementRate = round1(float64(row.LessonsCompleted) / float64(row.TotalLessons) * 100)
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EngagementRate > out[j].EngagementRate })
	return out
}

// TeacherPerformance returns one row per approved teacher, ordered by total
// students descending. The average weighs each distinct student once,
// regardless of how many course paths reach their lessons.
func (e *Engine) TeacherPerformance(ctx context.Context, schoolID int64) ([]models.PerformanceRow, error) {
	d, err := e.load(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	return d.teacherPerformance(), nil
}

func (d *dataset) teacherPerformance() []models.PerformanceRow {
	out := make([]models.PerformanceRow, 0, len(d.teachers))
	for _, t := range d.teachers {
		row := models.PerformanceRow{TeacherID: t.UserID, FullName: t.FullName}

		roomSet := map[int64]struct{}{}
		for _, cid := range d.roomsByTeacher[t.UserID] {
			roomSet[cid] = struct{}{}
		}
		row.ClassroomsAssigned = len(roomSet)

		seen := map[int64]struct{}{}
		var ratioSum float64
		for cid := range roomSet {
			for _, sid := range d.studentsByRoom[cid] {
				if _, ok := seen[sid]; ok {
					continue
				}
				seen[sid] = struct{}{}
				// the student's own completion ratio over the lessons of
				// their classroom; 0 when nothing is reachable
				reachable := d.lessonsByRoom[cid]
				if len(reachable) > 0 {
					done := 0
					for lid := range reachable {
						if _, ok := d.completedByUser[sid][lid]; ok {
							done++
						}
					}
					ratioSum += float64(done) / float64(len(reachable))
				}
			}
		}
		row.TotalStudents = len(seen)
		if row.TotalStudents > 0 {
			row.AvgEngagement = round1(ratioSum / float64(row.TotalStudents) * 100)
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalStudents > out[j].TotalStudents })
	return out
}

// Views computes all three read models from one batched load, for callers
// composing a dashboard.
type Views struct {
	Roster      []models.ClassroomView
	Engagement  []models.EngagementRow
	Performance []models.PerformanceRow
}

func (e *Engine) Views(ctx context.Context, schoolID int64) (*Views, error) {
	d, err := e.load(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	return &Views{
		Roster:      d.classroomRoster(),
		Engagement:  d.studentEngagement(),
		Performance: d.teacherPerformance(),
	}, nil
}

// round1 rounds half away from zero to one decimal.
func round1(x float64) float64 { return math.Round(x*10) / 10 }
