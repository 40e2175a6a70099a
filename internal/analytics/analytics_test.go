package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/kmelentyev/rosterd/internal/analytics"
	"github.com/kmelentyev/rosterd/internal/models"
	"github.com/kmelentyev/rosterd/internal/store/memstore"
)

// fixture builds entities through the Store interface so the engine sees the
// exact shapes production queries return.
type fixture struct {
	t  *testing.T
	st *memstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, st: memstore.New()}
}

func (f *fixture) school(name string) int64 {
	id, err := f.st.CreateSchool(context.Background(), name)
	if err != nil {
		f.t.Fatal(err)
	}
	return id
}

func (f *fixture) user(name string, schoolID int64, role models.Role, approved bool) int64 {
	ctx := context.Background()
	id, err := f.st.CreateUser(ctx, name, name+"@example.org")
	if err != nil {
		f.t.Fatal(err)
	}
	if err := f.st.CreateEnrollment(ctx, models.Enrollment{
		UserID: id, SchoolID: schoolID, Role: role, Approved: approved,
	}); err != nil {
		f.t.Fatal(err)
	}
	return id
}

func (f *fixture) classroom(schoolID int64, name string, teacherIDs ...int64) int64 {
	id, err := f.st.CreateClassroom(context.Background(), schoolID, name, teacherIDs)
	if err != nil {
		f.t.Fatal(err)
	}
	return id
}

// course creates a course with one module holding n lessons, grants it to
// the school and assigns it to the classroom. Returns the lesson ids.
func (f *fixture) course(schoolID, classroomID int64, title string, n int) []int64 {
	ctx := context.Background()
	cid, err := f.st.CreateCourse(ctx, title)
	if err != nil {
		f.t.Fatal(err)
	}
	if err := f.st.GrantCourse(ctx, schoolID, cid); err != nil {
		f.t.Fatal(err)
	}
	mid, err := f.st.CreateModule(ctx, cid, title+" m1")
	if err != nil {
		f.t.Fatal(err)
	}
	var lessons []int64
	for i := 0; i < n; i++ {
		lid, err := f.st.CreateLesson(ctx, mid, "lesson")
		if err != nil {
			f.t.Fatal(err)
		}
		lessons = append(lessons, lid)
	}
	if err := f.st.AddCourseAssignment(ctx, classroomID, cid); err != nil {
		f.t.Fatal(err)
	}
	return lessons
}

func (f *fixture) place(schoolID, studentID, classroomID int64) {
	if _, err := f.st.SetStudentClassroom(context.Background(), schoolID, studentID, classroomID); err != nil {
		f.t.Fatal(err)
	}
}

func (f *fixture) complete(studentID int64, lessonIDs ...int64) {
	now := time.Now()
	for _, lid := range lessonIDs {
		if err := f.st.UpsertLessonProgress(context.Background(), studentID, lid, &now); err != nil {
			f.t.Fatal(err)
		}
	}
}

func TestClassroomRoster_EveryClassroomOnce(t *testing.T) {
	f := newFixture(t)
	schoolID := f.school("S")
	teacher := f.user("Mr T", schoolID, models.Teacher, true)

	full := f.classroom(schoolID, "7A", teacher)
	empty := f.classroom(schoolID, "7B") // no teachers, no students

	student := f.user("Ann", schoolID, models.Student, true)
	f.place(schoolID, student, full)
	// unapproved students must not count
	ghost := f.user("Ghost", schoolID, models.Student, false)
	f.place(schoolID, ghost, full)

	rows, err := analytics.New(f.st).ClassroomRoster(context.Background(), schoolID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("want 2 classrooms, got %d", len(rows))
	}
	byID := map[int64]models.ClassroomView{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	if v := byID[full]; v.TeacherNames != "Mr T" || v.StudentCount != 1 {
		t.Fatalf("7A: got %+v", v)
	}
	if v := byID[empty]; v.TeacherNames != "Unassigned" || v.StudentCount != 0 || len(v.TeacherIDs) != 0 {
		t.Fatalf("7B must be present and empty, got %+v", v)
	}
}

func TestStudentEngagement_HalfComplete(t *testing.T) {
	// scenario: 2 reachable lessons, 1 completed -> 50.0
	f := newFixture(t)
	schoolID := f.school("S")
	room := f.classroom(schoolID, "7A")
	lessons := f.course(schoolID, room, "Math", 2)

	ann := f.user("Ann", schoolID, models.Student, true)
	f.place(schoolID, ann, room)
	f.complete(ann, lessons[0])

	rows, err := analytics.New(f.st).StudentEngagement(context.Background(), schoolID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("want 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.TotalLessons != 2 || r.LessonsCompleted != 1 || r.EngagementRate != 50.0 {
		t.Fatalf("got %+v", r)
	}
}

func TestStudentEngagement_NoLessonsIsZero(t *testing.T) {
	f := newFixture(t)
	schoolID := f.school("S")
	room := f.classroom(schoolID, "empty room")

	solo := f.user("Solo", schoolID, models.Student, true)
	f.place(schoolID, solo, room)
	// second student with no classroom at all
	f.user("Drifter", schoolID, models.Student, true)

	rows, err := analytics.New(f.st).StudentEngagement(context.Background(), schoolID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("want 2 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.TotalLessons != 0 || r.EngagementRate != 0 {
			t.Fatalf("expected exact zero, got %+v", r)
		}
		if r.EngagementRate < 0 || r.EngagementRate > 100 {
			t.Fatalf("rate out of bounds: %+v", r)
		}
	}
}

func TestStudentEngagement_LessonCountedOnceAcrossPaths(t *testing.T) {
	// the same lesson reachable via two course assignments counts once
	f := newFixture(t)
	schoolID := f.school("S")
	room := f.classroom(schoolID, "7A")

	ctx := context.Background()
	c1, _ := f.st.CreateCourse(ctx, "Math")
	c2, _ := f.st.CreateCourse(ctx, "Math mirror")
	_ = f.st.GrantCourse(ctx, schoolID, c1)
	_ = f.st.GrantCourse(ctx, schoolID, c2)
	m1, _ := f.st.CreateModule(ctx, c1, "m")
	shared, _ := f.st.CreateLesson(ctx, m1, "shared")
	extra, _ := f.st.CreateLesson(ctx, m1, "extra")
	// second course whose module reuses nothing, then assign both courses;
	// c1 is assigned twice as well, which must still count each lesson once
	m2, _ := f.st.CreateModule(ctx, c2, "m")
	_, _ = f.st.CreateLesson(ctx, m2, "other")
	_ = f.st.AddCourseAssignment(ctx, room, c1)
	_ = f.st.AddCourseAssignment(ctx, room, c1)
	_ = f.st.AddCourseAssignment(ctx, room, c2)

	ann := f.user("Ann", schoolID, models.Student, true)
	f.place(schoolID, ann, room)
	f.complete(ann, shared)
	_ = extra

	rows, err := analytics.New(f.st).StudentEngagement(ctx, schoolID)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].TotalLessons != 3 {
		t.Fatalf("want 3 distinct lessons, got %d", rows[0].TotalLessons)
	}
	if rows[0].LessonsCompleted != 1 {
		t.Fatalf("want 1 completed, got %d", rows[0].LessonsCompleted)
	}
}

func TestStudentEngagement_OrderedByRateDesc(t *testing.T) {
	f := newFixture(t)
	schoolID := f.school("S")
	room := f.classroom(schoolID, "7A")
	lessons := f.course(schoolID, room, "Math", 4)

	low := f.user("Low", schoolID, models.Student, true)
	high := f.user("High", schoolID, models.Student, true)
	mid := f.user("Mid", schoolID, models.Student, true)
	for _, id := range []int64{low, high, mid} {
		f.place(schoolID, id, room)
	}
	f.complete(low, lessons[0])
	f.complete(high, lessons...)
	f.complete(mid, lessons[0], lessons[1])

	rows, err := analytics.New(f.st).StudentEngagement(context.Background(), schoolID)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{high, mid, low}
	for i, r := range rows {
		if r.UserID != want[i] {
			t.Fatalf("position %d: want user %d, got %d (%v)", i, want[i], r.UserID, rows)
		}
	}
	if rows[0].EngagementRate != 100.0 || rows[1].EngagementRate != 50.0 || rows[2].EngagementRate != 25.0 {
		t.Fatalf("rates wrong: %v", rows)
	}
}

func TestStudentEngagement_ActivitiesLogged(t *testing.T) {
	f := newFixture(t)
	schoolID := f.school("S")
	other := f.school("Other")
	ann := f.user("Ann", schoolID, models.Student, true)

	ctx := context.Background()
	// activity counts ignore school scope entirely
	for _, sid := range []int64{schoolID, other} {
		sid := sid
		if _, err := f.st.InsertActivity(ctx, models.Activity{
			UserID: ann, SchoolID: &sid, Action: "lesson_opened", Scope: models.ScopeSchool,
		}); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := analytics.New(f.st).StudentEngagement(ctx, schoolID)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].ActivitiesLogged != 2 {
		t.Fatalf("want 2 activities, got %d", rows[0].ActivitiesLogged)
	}
}

func TestTeacherPerformance_TwoClassrooms(t *testing.T) {
	// scenario: T has C1 (2 students at 100%) and C2 (1 student at 0%)
	// -> totalStudents=3, avgEngagement=round((1+1+0)/3*100, 1)=66.7
	f := newFixture(t)
	schoolID := f.school("S")
	teacher := f.user("Mr T", schoolID, models.Teacher, true)
	c1 := f.classroom(schoolID, "C1", teacher)
	c2 := f.classroom(schoolID, "C2", teacher)
	l1 := f.course(schoolID, c1, "Math", 2)
	f.course(schoolID, c2, "Biology", 3)

	s1 := f.user("S1", schoolID, models.Student, true)
	s2 := f.user("S2", schoolID, models.Student, true)
	s3 := f.user("S3", schoolID, models.Student, true)
	f.place(schoolID, s1, c1)
	f.place(schoolID, s2, c1)
	f.place(schoolID, s3, c2)
	f.complete(s1, l1...)
	f.complete(s2, l1...)

	rows, err := analytics.New(f.st).TeacherPerformance(context.Background(), schoolID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("want 1 teacher row, got %d", len(rows))
	}
	r := rows[0]
	if r.ClassroomsAssigned != 2 {
		t.Fatalf("want 2 classrooms, got %d", r.ClassroomsAssigned)
	}
	if r.TotalStudents != 3 {
		t.Fatalf("want 3 students, got %d", r.TotalStudents)
	}
	if r.AvgEngagement != 66.7 {
		t.Fatalf("want 66.7, got %v", r.AvgEngagement)
	}
}

func TestTeacherPerformance_NoStudents(t *testing.T) {
	f := newFixture(t)
	schoolID := f.school("S")
	teacher := f.user("Idle", schoolID, models.Teacher, true)
	f.classroom(schoolID, "empty", teacher)

	rows, err := analytics.New(f.st).TeacherPerformance(context.Background(), schoolID)
	if err != nil {
		t.Fatal(err)
	}
	r := rows[0]
	if r.TotalStudents != 0 || r.AvgEngagement != 0 {
		t.Fatalf("want zeroes, got %+v", r)
	}
}

func TestTeacherPerformance_OrderedByStudentsDesc(t *testing.T) {
	f := newFixture(t)
	schoolID := f.school("S")
	small := f.user("Small", schoolID, models.Teacher, true)
	big := f.user("Big", schoolID, models.Teacher, true)
	c1 := f.classroom(schoolID, "C1", small)
	c2 := f.classroom(schoolID, "C2", big)

	s1 := f.user("S1", schoolID, models.Student, true)
	s2 := f.user("S2", schoolID, models.Student, true)
	s3 := f.user("S3", schoolID, models.Student, true)
	f.place(schoolID, s1, c2)
	f.place(schoolID, s2, c2)
	f.place(schoolID, s3, c1)

	rows, err := analytics.New(f.st).TeacherPerformance(context.Background(), schoolID)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].TeacherID != big || rows[1].TeacherID != small {
		t.Fatalf("wrong order: %v", rows)
	}
}
