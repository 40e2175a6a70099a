// Package snapshot composes the dashboard read model for one school. It
// fetches each relation once and partitions in memory instead of re-querying
// per classroom.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kmelentyev/rosterd/internal/analytics"
	"github.com/kmelentyev/rosterd/internal/metrics"
	"github.com/kmelentyev/rosterd/internal/models"
	"github.com/kmelentyev/rosterd/internal/store"
)

const recentActivityLimit = 10

type Builder struct {
	st     store.Store
	engine *analytics.Engine
	log    *zap.Logger
}

func New(st store.Store, engine *analytics.Engine, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{st: st, engine: engine, log: log}
}

// Build returns the full snapshot or fails as a whole: no partial or
// degraded snapshot is ever returned.
func (b *Builder) Build(ctx context.Context, schoolID int64) (*models.Snapshot, error) {
	start := time.Now()

	school, err := b.st.GetSchool(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("snapshot school %d: %w", schoolID, err)
	}
	enrollments, err := b.st.ListEnrollments(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("snapshot enrollments: %w", err)
	}
	views, err := b.engine.Views(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("snapshot analytics: %w", err)
	}
	recent, err := b.st.ListRecentActivities(ctx, schoolID, recentActivityLimit)
	if err != nil {
		return nil, fmt.Errorf("snapshot activities: %w", err)
	}

	snap := &models.Snapshot{
		School:             *school,
		RecentActivities:   recent,
		TeacherPerformance: views.Performance,
		StudentEngagement:  views.Engagement,
	}

	// one pass over enrollments: pending list, member lists and the
	// per-classroom student partition
	byRoom := map[int64][]models.Member{}
	var allStudents []models.Member
	roomOf := map[int64]int64{} // studentID -> classroomID
	for _, e := range enrollments {
		if !e.Approved {
			snap.PendingEnrollments = append(snap.PendingEnrollments, models.PendingEnrollment{
				UserID:   e.UserID,
				FullName: e.FullName,
				Email:    e.Email,
				Role:     e.Role,
				JoinedAt: e.JoinedAt,
			})
			continue
		}
		m := models.Member{UserID: e.UserID, FullName: e.FullName, Email: e.Email}
		switch e.Role {
		case models.Teacher:
			snap.Teachers = append(snap.Teachers, m)
		case models.Student:
			snap.Students = append(snap.Students, m)
			allStudents = append(allStudents, m)
			if e.ClassroomID != nil {
				byRoom[*e.ClassroomID] = append(byRoom[*e.ClassroomID], m)
				roomOf[e.UserID] = *e.ClassroomID
			}
		}
	}

	snap.Classrooms = make([]models.ClassroomRoster, 0, len(views.Roster))
	for _, v := range views.Roster {
		cr := models.ClassroomRoster{ClassroomView: v, Students: byRoom[v.ID]}
		// approved students of the school minus those already in the room
		for _, m := range allStudents {
			if roomOf[m.UserID] != v.ID {
				cr.AvailableStudents = append(cr.AvailableStudents, m)
			}
		}
		snap.Classrooms = append(snap.Classrooms, cr)
	}

	metrics.ObserveSnapshot(time.Since(start))
	b.log.Debug("snapshot built",
		zap.Int64("school_id", schoolID),
		zap.Int("classrooms", len(snap.Classrooms)),
		zap.Int("pending", len(snap.PendingEnrollments)),
		zap.Duration("took", time.Since(start)),
	)
	return snap, nil
}
