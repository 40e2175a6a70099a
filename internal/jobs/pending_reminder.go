package jobs

import (
	"context"
	"fmt"

	"github.com/kmelentyev/rosterd/internal/models"
	"github.com/kmelentyev/rosterd/internal/roster"
	"github.com/kmelentyev/rosterd/internal/store"
)

// PendingReminder walks every school and reports how many enrollments are
// still waiting for approval. Wired into the runner, delivered through the
// same recorder chain the roster manager uses.
func PendingReminder(st store.Store, rec roster.Recorder) Job {
	return func(ctx context.Context) error {
		schools, err := st.ListSchools(ctx)
		if err != nil {
			return err
		}
		for _, sc := range schools {
			enrollments, err := st.ListEnrollments(ctx, sc.ID)
			if err != nil {
				return err
			}
			pending := 0
			for _, e := range enrollments {
				if !e.Approved {
					pending++
				}
			}
			if pending == 0 {
				continue
			}
			rec.Record(ctx, models.ActivityEvent{
				SchoolID: sc.ID,
				Action:   "enrollment_pending_reminder",
				Details:  fmt.Sprintf("%d enrollments", pending),
				Scope:    models.ScopeSchool,
			})
		}
		return nil
	}
}
