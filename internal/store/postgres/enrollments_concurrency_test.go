//go:build testutil
// +build testutil

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kmelentyev/rosterd/internal/models"
	"github.com/kmelentyev/rosterd/internal/testutil/testdb"
)

// Per-user approves racing an approve-all must flip every pending enrollment
// exactly once: the sum of affected rows across all racers equals the number
// of enrollments that started out pending.
func TestApproveEnrollment_RacesApproveAll(t *testing.T) {
	h, err := testdb.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	ctx := context.Background()
	st := h.Store

	schoolID, err := st.CreateSchool(ctx, "Race School")
	if err != nil {
		t.Fatal(err)
	}

	const pending = 20
	userIDs := make([]int64, pending)
	for i := range userIDs {
		id, err := st.CreateUser(ctx, fmt.Sprintf("Student %d", i), fmt.Sprintf("s%d@example.org", i))
		if err != nil {
			t.Fatal(err)
		}
		if err := st.CreateEnrollment(ctx, models.Enrollment{
			UserID: id, SchoolID: schoolID, Role: models.Student,
		}); err != nil {
			t.Fatal(err)
		}
		userIDs[i] = id
	}

	var flipped int64
	var wg sync.WaitGroup
	for _, uid := range userIDs {
		uid := uid
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := st.ApproveEnrollment(ctx, schoolID, uid)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				atomic.AddInt64(&flipped, 1)
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := st.ApproveAllEnrollments(ctx, schoolID)
			if err != nil {
				t.Error(err)
				return
			}
			atomic.AddInt64(&flipped, n)
		}()
	}
	wg.Wait()

	if flipped != pending {
		t.Fatalf("want %d flips total, got %d", pending, flipped)
	}
	enrollments, err := st.ListEnrollments(ctx, schoolID)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range enrollments {
		if !e.Approved {
			t.Fatalf("user %d still pending after the race", e.UserID)
		}
	}
}

// Two racers adding the same teacher assignment leave exactly one row.
func TestAddTeacherAssignment_DuplicateRace(t *testing.T) {
	h, err := testdb.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	ctx := context.Background()
	st := h.Store

	schoolID, err := st.CreateSchool(ctx, "Race School")
	if err != nil {
		t.Fatal(err)
	}
	teacherID, err := st.CreateUser(ctx, "Mr T", "t@example.org")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.CreateEnrollment(ctx, models.Enrollment{
		UserID: teacherID, SchoolID: schoolID, Role: models.Teacher, Approved: true,
	}); err != nil {
		t.Fatal(err)
	}
	roomID, err := st.CreateClassroom(ctx, schoolID, "7A", nil)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := st.AddTeacherAssignment(ctx, roomID, teacherID); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	asg, err := st.ListTeacherAssignments(ctx, schoolID)
	if err != nil {
		t.Fatal(err)
	}
	if len(asg) != 1 {
		t.Fatalf("want one assignment row, got %d", len(asg))
	}
}
