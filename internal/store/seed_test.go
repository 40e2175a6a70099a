package store_test

import (
	"context"
	"testing"

	"github.com/kmelentyev/rosterd/internal/analytics"
	"github.com/kmelentyev/rosterd/internal/store"
	"github.com/kmelentyev/rosterd/internal/store/memstore"
)

func TestSeedDemo(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	if err := store.SeedDemo(ctx, st); err != nil {
		t.Fatal(err)
	}

	schools, err := st.ListSchools(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(schools) != 1 || schools[0].Name != "Demo School" {
		t.Fatalf("schools: %+v", schools)
	}
	schoolID := schools[0].ID

	rows, err := analytics.New(st).StudentEngagement(ctx, schoolID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("want 3 approved students, got %d", len(rows))
	}
	// seeded completion levels: full, half, none over 6 lessons
	if rows[0].EngagementRate != 100.0 || rows[1].EngagementRate != 50.0 || rows[2].EngagementRate != 0.0 {
		t.Fatalf("rates off: %+v", rows)
	}

	enrollments, err := st.ListEnrollments(ctx, schoolID)
	if err != nil {
		t.Fatal(err)
	}
	pending := 0
	for _, e := range enrollments {
		if !e.Approved {
			pending++
		}
	}
	if pending != 1 {
		t.Fatalf("want 1 pending enrollment, got %d", pending)
	}
}
