package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jonwraymond/toolops-ontology/auth"
	"github.com/jonwraymond/toolops-ontology/dlq"
	"github.com/jonwraymond/toolops-ontology/hook"
	"github.com/jonwraymond/toolops-ontology/lock"
	"github.com/jonwraymond/toolops-ontology/observe"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Code: code, Message: message})
}

// commitRequest is the wire shape of POST /v1/commits, decoded into a
// hook.CommitMeta plus the raw diff the pipeline validates and fans out.
type commitRequest struct {
	Database  string         `json:"database"`
	Branch    string         `json:"branch"`
	CommitID  string         `json:"commit_id"`
	Author    string         `json:"author"`
	CommitMsg string         `json:"commit_message"`
	TraceID   string         `json:"trace_id"`
	Diff      map[string]any `json:"diff"`
}

func (app *application) handleCommit(w http.ResponseWriter, r *http.Request) {
	if !app.authorizeWrite(w, r, "commit") {
		return
	}
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	meta := hook.CommitMeta{
		Database:  req.Database,
		Branch:    req.Branch,
		CommitID:  req.CommitID,
		Author:    req.Author,
		CommitMsg: req.CommitMsg,
		TraceID:   req.TraceID,
		Timestamp: time.Now().UTC(),
	}
	var summary hook.RunSummary
	err := app.instrument.Instrument(r.Context(), observe.OpMeta{Component: "hook", Op: "run", Branch: meta.Branch}, func(ctx context.Context) error {
		var runErr error
		summary, runErr = app.pipeline.Run(ctx, meta, req.Diff)
		return runErr
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "COMMIT_REJECTED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// acquireLockRequest is the wire shape of POST /v1/locks.
type acquireLockRequest struct {
	Branch             string         `json:"branch"`
	Type               lock.LockType  `json:"type"`
	By                 string         `json:"by"`
	Scope              lock.LockScope `json:"scope"`
	ResourceType       string         `json:"resource_type,omitempty"`
	ResourceID         string         `json:"resource_id,omitempty"`
	Reason             string         `json:"reason"`
	TimeoutSeconds     int            `json:"timeout_seconds,omitempty"`
	EnableHeartbeat    bool           `json:"enable_heartbeat"`
	HeartbeatIntervalS int            `json:"heartbeat_interval_s,omitempty"`
}

func (app *application) handleAcquireLock(w http.ResponseWriter, r *http.Request) {
	if !app.authorizeWrite(w, r, "lock") {
		return
	}
	var req acquireLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	by := req.By
	if by == "" {
		by = auth.PrincipalFromContext(r.Context())
	}
	ar := lock.AcquireRequest{
		Branch:             req.Branch,
		Type:               req.Type,
		By:                 by,
		Scope:              req.Scope,
		ResourceType:       req.ResourceType,
		ResourceID:         req.ResourceID,
		Reason:             req.Reason,
		Timeout:            time.Duration(req.TimeoutSeconds) * time.Second,
		EnableHeartbeat:    req.EnableHeartbeat,
		HeartbeatIntervalS: req.HeartbeatIntervalS,
	}
	id, err := app.lockFacade.Acquire(r.Context(), ar)
	if err != nil {
		var conflict *lock.ConflictError
		if errors.As(err, &conflict) {
			writeError(w, http.StatusConflict, "LOCK_CONFLICT", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "LOCK_ACQUIRE_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"lock_id": id})
}

func (app *application) handleReleaseLock(w http.ResponseWriter, r *http.Request) {
	if !app.authorizeWrite(w, r, "lock") {
		return
	}
	id := chi.URLParam(r, "id")
	by := auth.PrincipalFromContext(r.Context())
	ok, err := app.lockFacade.Release(r.Context(), id, by)
	if err != nil {
		writeError(w, http.StatusNotFound, "LOCK_RELEASE_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"released": ok})
}

func (app *application) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if !app.authorizeWrite(w, r, "lock") {
		return
	}
	id := chi.URLParam(r, "id")
	var body struct {
		Service  string   `json:"service"`
		Progress *float64 `json:"progress,omitempty"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	ok := app.lockFacade.SendHeartbeat(r.Context(), id, body.Service, body.Progress)
	writeJSON(w, http.StatusOK, map[string]bool{"recorded": ok})
}

func (app *application) handleExtendLock(w http.ResponseWriter, r *http.Request) {
	if !app.authorizeWrite(w, r, "lock") {
		return
	}
	id := chi.URLParam(r, "id")
	var body struct {
		ExtendBySeconds int    `json:"extend_by_seconds"`
		Reason          string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	by := auth.PrincipalFromContext(r.Context())
	err := app.lockFacade.ExtendTTL(r.Context(), id, time.Duration(body.ExtendBySeconds)*time.Second, by, body.Reason)
	if err != nil {
		writeError(w, http.StatusBadRequest, "LOCK_EXTEND_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"extended": true})
}

func (app *application) handleListLocks(w http.ResponseWriter, r *http.Request) {
	branch := r.URL.Query().Get("branch")
	locks := app.lockFacade.ListActiveLocks(branch)
	writeJSON(w, http.StatusOK, locks)
}

func (app *application) handleDLQReplay(w http.ResponseWriter, r *http.Request) {
	if !app.authorizeWrite(w, r, "dlq") {
		return
	}
	queue := chi.URLParam(r, "queue")
	status := dlq.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = dlq.StatusPoison
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	n, err := app.dlqHandler.Replay(r.Context(), queue, status, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "DLQ_REPLAY_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"replayed": n})
}

func (app *application) handleDLQPurge(w http.ResponseWriter, r *http.Request) {
	if !app.authorizeWrite(w, r, "dlq") {
		return
	}
	queue := chi.URLParam(r, "queue")
	status := dlq.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = dlq.StatusPoison
	}
	var olderThan *time.Time
	if v := r.URL.Query().Get("older_than"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			olderThan = &t
		}
	}
	n, err := app.dlqHandler.Purge(r.Context(), queue, status, olderThan)
	if err != nil {
		writeError(w, http.StatusBadRequest, "DLQ_PURGE_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"purged": n})
}
