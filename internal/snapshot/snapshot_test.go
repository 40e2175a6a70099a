package snapshot_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kmelentyev/rosterd/internal/analytics"
	"github.com/kmelentyev/rosterd/internal/models"
	"github.com/kmelentyev/rosterd/internal/snapshot"
	"github.com/kmelentyev/rosterd/internal/store"
	"github.com/kmelentyev/rosterd/internal/store/memstore"
)

func seedSchool(t *testing.T, st *memstore.Store) (schoolID, roomID int64, in, out int64) {
	t.Helper()
	ctx := context.Background()
	schoolID, err := st.CreateSchool(ctx, "Snapshot High")
	if err != nil {
		t.Fatal(err)
	}
	roomID, err = st.CreateClassroom(ctx, schoolID, "7A", nil)
	if err != nil {
		t.Fatal(err)
	}

	enroll := func(name string, role models.Role, approved bool) int64 {
		id, err := st.CreateUser(ctx, name, name+"@example.org")
		if err != nil {
			t.Fatal(err)
		}
		if err := st.CreateEnrollment(ctx, models.Enrollment{
			UserID: id, SchoolID: schoolID, Role: role, Approved: approved,
		}); err != nil {
			t.Fatal(err)
		}
		return id
	}

	in = enroll("In Room", models.Student, true)
	out = enroll("Out Of Room", models.Student, true)
	enroll("Mrs Teach", models.Teacher, true)
	enroll("Waiting", models.Student, false)

	if _, err := st.SetStudentClassroom(ctx, schoolID, in, roomID); err != nil {
		t.Fatal(err)
	}
	return schoolID, roomID, in, out
}

func TestBuild_PartitionsMembers(t *testing.T) {
	st := memstore.New()
	schoolID, roomID, in, out := seedSchool(t, st)

	b := snapshot.New(st, analytics.New(st), nil)
	snap, err := b.Build(context.Background(), schoolID)
	if err != nil {
		t.Fatal(err)
	}

	if snap.School.Name != "Snapshot High" {
		t.Fatalf("school: %+v", snap.School)
	}
	if len(snap.Teachers) != 1 || len(snap.Students) != 2 {
		t.Fatalf("members: %d teachers, %d students", len(snap.Teachers), len(snap.Students))
	}
	if len(snap.PendingEnrollments) != 1 || snap.PendingEnrollments[0].FullName != "Waiting" {
		t.Fatalf("pending: %+v", snap.PendingEnrollments)
	}

	if len(snap.Classrooms) != 1 {
		t.Fatalf("classrooms: %+v", snap.Classrooms)
	}
	cr := snap.Classrooms[0]
	if cr.ID != roomID || len(cr.Students) != 1 || cr.Students[0].UserID != in {
		t.Fatalf("room students: %+v", cr.Students)
	}
	// available = approved students of the school not already in this room
	if len(cr.AvailableStudents) != 1 || cr.AvailableStudents[0].UserID != out {
		t.Fatalf("available students: %+v", cr.AvailableStudents)
	}
}

func TestBuild_RecentActivitiesCapped(t *testing.T) {
	st := memstore.New()
	schoolID, _, in, _ := seedSchool(t, st)

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 15; i++ {
		if _, err := st.InsertActivity(ctx, models.Activity{
			UserID:    in,
			SchoolID:  &schoolID,
			Action:    fmt.Sprintf("event_%02d", i),
			Scope:     models.ScopeSchool,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatal(err)
		}
	}
	// global activities show up in every school feed
	if _, err := st.InsertActivity(ctx, models.Activity{
		UserID: in, Action: "maintenance", Scope: models.ScopeGlobal,
		CreatedAt: base.Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	snap, err := snapshot.New(st, analytics.New(st), nil).Build(ctx, schoolID)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.RecentActivities) != 10 {
		t.Fatalf("want 10 recent, got %d", len(snap.RecentActivities))
	}
	if snap.RecentActivities[0].Action != "maintenance" {
		t.Fatalf("newest first expected, got %q", snap.RecentActivities[0].Action)
	}
	for i := 1; i < len(snap.RecentActivities); i++ {
		if snap.RecentActivities[i].CreatedAt.After(snap.RecentActivities[i-1].CreatedAt) {
			t.Fatalf("not sorted newest-first at %d", i)
		}
	}
}

func TestBuild_UnknownSchoolFailsWhole(t *testing.T) {
	st := memstore.New()
	_, err := snapshot.New(st, analytics.New(st), nil).Build(context.Background(), 404)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
