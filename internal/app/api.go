package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kmelentyev/rosterd/internal/ctxutil"
	"github.com/kmelentyev/rosterd/internal/export"
	"github.com/kmelentyev/rosterd/internal/models"
	"github.com/kmelentyev/rosterd/internal/observability"
	"github.com/kmelentyev/rosterd/internal/roster"
	"github.com/kmelentyev/rosterd/internal/snapshot"
	"github.com/kmelentyev/rosterd/internal/store"
)

// API is the thin JSON surface over the roster manager and snapshot
// builder. Session authentication sits in front of it, outside this service.
type API struct {
	Manager  *roster.Manager
	Snapshot *snapshot.Builder
	Log      *zap.Logger
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/schools/{school}/approve", a.approve)
	mux.HandleFunc("POST /api/schools/{school}/approve-all", a.approveAll)
	mux.HandleFunc("POST /api/schools/{school}/reject", a.reject)
	mux.HandleFunc("POST /api/schools/{school}/classrooms", a.createClassroom)
	mux.HandleFunc("PUT /api/classrooms/{classroom}", a.updateClassroom)
	mux.HandleFunc("DELETE /api/classrooms/{classroom}", a.deleteClassroom)
	mux.HandleFunc("POST /api/schools/{school}/classrooms/{classroom}/assign", a.assignUser)
	mux.HandleFunc("POST /api/schools/{school}/classrooms/{classroom}/students", a.addStudent)
	mux.HandleFunc("POST /api/schools/{school}/classrooms/{classroom}/courses", a.assignCourse)
	mux.HandleFunc("GET /api/schools/{school}/snapshot", a.snapshot)
	mux.HandleFunc("GET /api/schools/{school}/report.xlsx", a.report)
}

type userReq struct {
	UserID int64 `json:"user_id"`
}

type classroomReq struct {
	Name       string  `json:"name"`
	TeacherIDs []int64 `json:"teacher_ids"`
}

type courseReq struct {
	CourseID int64 `json:"course_id"`
}

func (a *API) approve(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := pathID(w, r, "school")
	if !ok {
		return
	}
	var req userReq
	if !decode(w, r, &req) {
		return
	}
	a.finish(w, r, a.Manager.Approve(actorCtx(r), schoolID, req.UserID), nil)
}

func (a *API) approveAll(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := pathID(w, r, "school")
	if !ok {
		return
	}
	n, err := a.Manager.ApproveAll(actorCtx(r), schoolID)
	a.finish(w, r, err, map[string]any{"approved": n})
}

func (a *API) reject(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := pathID(w, r, "school")
	if !ok {
		return
	}
	var req userReq
	if !decode(w, r, &req) {
		return
	}
	a.finish(w, r, a.Manager.Reject(actorCtx(r), schoolID, req.UserID), nil)
}

func (a *API) createClassroom(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := pathID(w, r, "school")
	if !ok {
		return
	}
	var req classroomReq
	if !decode(w, r, &req) {
		return
	}
	id, err := a.Manager.CreateClassroom(actorCtx(r), schoolID, req.Name, req.TeacherIDs)
	a.finish(w, r, err, map[string]any{"id": id})
}

func (a *API) updateClassroom(w http.ResponseWriter, r *http.Request) {
	classroomID, ok := pathID(w, r, "classroom")
	if !ok {
		return
	}
	var req classroomReq
	if !decode(w, r, &req) {
		return
	}
	a.finish(w, r, a.Manager.UpdateClassroom(actorCtx(r), classroomID, req.Name, req.TeacherIDs), nil)
}

func (a *API) deleteClassroom(w http.ResponseWriter, r *http.Request) {
	classroomID, ok := pathID(w, r, "classroom")
	if !ok {
		return
	}
	a.finish(w, r, a.Manager.DeleteClassroom(actorCtx(r), classroomID), nil)
}

func (a *API) assignUser(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := pathID(w, r, "school")
	if !ok {
		return
	}
	classroomID, ok := pathID(w, r, "classroom")
	if !ok {
		return
	}
	var req userReq
	if !decode(w, r, &req) {
		return
	}
	a.finish(w, r, a.Manager.AssignUserToClassroom(actorCtx(r), schoolID, classroomID, req.UserID), nil)
}

func (a *API) addStudent(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := pathID(w, r, "school")
	if !ok {
		return
	}
	classroomID, ok := pathID(w, r, "classroom")
	if !ok {
		return
	}
	var req userReq
	if !decode(w, r, &req) {
		return
	}
	a.finish(w, r, a.Manager.AddStudentToClassroom(actorCtx(r), schoolID, classroomID, req.UserID), nil)
}

func (a *API) assignCourse(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := pathID(w, r, "school")
	if !ok {
		return
	}
	classroomID, ok := pathID(w, r, "classroom")
	if !ok {
		return
	}
	var req courseReq
	if !decode(w, r, &req) {
		return
	}
	a.finish(w, r, a.Manager.AssignCourseToClassroom(actorCtx(r), schoolID, classroomID, req.CourseID), nil)
}

func (a *API) snapshot(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := pathID(w, r, "school")
	if !ok {
		return
	}
	snap, err := a.Snapshot.Build(r.Context(), schoolID)
	a.finish(w, r, err, snap)
}

func (a *API) report(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := pathID(w, r, "school")
	if !ok {
		return
	}
	snap, err := a.Snapshot.Build(r.Context(), schoolID)
	if err != nil {
		a.finish(w, r, err, nil)
		return
	}
	wb, err := export.NewReportWorkbook(export.SnapshotSheets(snap))
	if err != nil {
		a.finish(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="engagement.xlsx"`)
	if err := wb.File.Write(w); err != nil {
		a.Log.Warn("report write failed", zap.Error(err))
	}
}

// finish maps domain errors to machine-readable 4xx responses and everything
// else to a generic 5xx; all mutations stay safe to retry after a 5xx.
func (a *API) finish(w http.ResponseWriter, r *http.Request, err error, payload any) {
	if err == nil {
		if payload == nil {
			payload = map[string]any{"ok": true}
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	var vErr *roster.ValidationError
	var naErr *roster.NotApprovedError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"reason": "validation", "error": vErr.Error()})
	case errors.As(err, &naErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"reason": "not_approved", "error": naErr.Error(),
			"student_id": naErr.StudentID, "student_name": naErr.FullName,
		})
	case errors.Is(err, roster.ErrNotEnrolled):
		writeJSON(w, http.StatusNotFound, map[string]any{"reason": "not_enrolled", "error": err.Error()})
	case errors.Is(err, roster.ErrNotGranted):
		writeJSON(w, http.StatusForbidden, map[string]any{"reason": "not_granted", "error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"reason": "not_found", "error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]any{"reason": "conflict", "error": err.Error()})
	default:
		a.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		observability.CaptureErr(err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"reason": "internal", "error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"reason": "validation", "error": "bad request body"})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"reason": "validation", "error": "bad " + name + " id"})
		return 0, false
	}
	return id, true
}

// actorCtx lifts the already-authenticated actor identity, forwarded by the
// session layer, into the context the roster manager reads events from.
func actorCtx(r *http.Request) context.Context {
	ctx := r.Context()
	if v := r.Header.Get("X-Actor-Id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			role := models.Role(r.Header.Get("X-Actor-Role"))
			ctx = ctxutil.WithActor(ctx, id, role)
		}
	}
	return ctx
}
