// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/presenceapi"
	"github.com/bureau-foundation/presence/lib/supervisortoken"
	"github.com/bureau-foundation/presence/lib/version"
)

// maxBodySize caps request bodies. Agent requests are a few hundred
// bytes.
const maxBodySize = 64 * 1024

// requestTimeout bounds every handler.
const requestTimeout = 30 * time.Second

// defaultReportWindow is the report range when the caller gives no
// "from".
const defaultReportWindow = 24 * time.Hour

// routes builds the HTTP API.
func (s *presenceService) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get(presenceapi.PathHealth, s.handleHealth)

	// Agent routes authenticate with the activation key in the body.
	r.Group(func(r chi.Router) {
		r.Use(limitBody)
		r.Post(presenceapi.PathActivate, s.handleActivate)
		r.Post(presenceapi.PathHeartbeat, s.handleHeartbeat)
		r.Post(presenceapi.PathCheckIn, s.handleCheckIn)
		r.Post(presenceapi.PathVerify, s.handleVerify)
		r.Post(presenceapi.PathAgentStatus, s.handleAgentStatus)
	})

	// Dashboard routes take a supervisor bearer token.
	r.Group(func(r chi.Router) {
		r.Use(s.requireSupervisor)
		r.Get(presenceapi.PathStatuses, s.handleStatuses)
		r.Get(presenceapi.PathSummary, s.handleSummary)
		r.Get(presenceapi.PathEmployeeStatus, s.handleEmployeeStatus)
		r.Get(presenceapi.PathEmployeeReport, s.handleEmployeeReport)
		r.Get(presenceapi.PathEmployeeEvents, s.handleEmployeeEvents)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Render(w, r, &errorResponse{
			ErrorResponse: presenceapi.ErrorResponse{Error: "no such route", Code: presence.CodeNotFound},
			status:        http.StatusNotFound,
		})
	})
	return r
}

// errorResponse renders an ErrorResponse with its HTTP status.
type errorResponse struct {
	presenceapi.ErrorResponse
	status int
}

func (e *errorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.status)
	return nil
}

// renderError maps err to its wire code and status. Internal errors
// are logged and their text withheld.
func (s *presenceService) renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := presence.Code(err)
	message := err.Error()
	if code == presence.CodeInternal || code == presence.CodeUnavailable {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		if code == presence.CodeInternal {
			message = "internal error"
		}
	}
	render.Render(w, r, &errorResponse{
		ErrorResponse: presenceapi.ErrorResponse{Error: message, Code: code},
		status:        presenceapi.HTTPStatus(code),
	})
}

// renderAuthError answers a dashboard request whose token failed.
func (s *presenceService) renderAuthError(w http.ResponseWriter, r *http.Request, err error) {
	code := presenceapi.CodeUnauthorized
	if errors.Is(err, supervisortoken.ErrWrongCompany) {
		code = presence.CodeTenantViolation
	}
	s.logger.Warn("dashboard request rejected",
		"path", r.URL.Path,
		"remote", r.RemoteAddr,
		"error", err,
	)
	render.Render(w, r, &errorResponse{
		ErrorResponse: presenceapi.ErrorResponse{Error: err.Error(), Code: code},
		status:        presenceapi.HTTPStatus(code),
	})
}

// decodeBody reads a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", presence.ErrInvalidRequest, err)
	}
	return nil
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each request at debug level, and failures at
// info.
func (s *presenceService) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := s.clock.Now()
		next.ServeHTTP(wrapped, r)

		level := slog.LevelDebug
		if wrapped.Status() >= http.StatusBadRequest {
			level = slog.LevelInfo
		}
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.Status(),
			"bytes", wrapped.BytesWritten(),
			"duration", s.clock.Now().Sub(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *presenceService) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, presenceapi.HealthResponse{Status: "ok", Version: version.Short()})
}

func (s *presenceService) handleActivate(w http.ResponseWriter, r *http.Request) {
	var request presenceapi.ActivateRequest
	if err := decodeBody(r, &request); err != nil {
		s.renderError(w, r, err)
		return
	}
	employee, err := s.tracker.Activate(r.Context(), request.ActivationKey, request.HardwareID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, presenceapi.ActivateResponse{
		EmployeeID:   employee.ID,
		EmployeeName: employee.Name,
		CompanyID:    employee.CompanyID,
		State:        employee.State(),
	})
}

func (s *presenceService) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var request presenceapi.HeartbeatRequest
	if err := decodeBody(r, &request); err != nil {
		s.renderError(w, r, err)
		return
	}
	// An unparsable status goes through as-is; the tracker checks the
	// key first and then rejects it.
	status, err := presence.ParseReportedStatus(request.Status)
	if err != nil {
		status = presence.ReportedStatus(request.Status)
	}
	ack, err := s.tracker.RecordHeartbeat(r.Context(), request.ActivationKey, status, request.ClientTime)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, ack)
}

func (s *presenceService) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var request presenceapi.CheckInRequest
	if err := decodeBody(r, &request); err != nil {
		s.renderError(w, r, err)
		return
	}
	ack, err := s.tracker.RecordCheckIn(r.Context(), request.ActivationKey, request.ClientTime)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, ack)
}

func (s *presenceService) handleVerify(w http.ResponseWriter, r *http.Request) {
	var request presenceapi.KeyRequest
	if err := decodeBody(r, &request); err != nil {
		s.renderError(w, r, err)
		return
	}
	checkIn, err := s.tracker.VerifyCheckIn(r.Context(), request.ActivationKey)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, checkIn)
}

func (s *presenceService) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	var request presenceapi.KeyRequest
	if err := decodeBody(r, &request); err != nil {
		s.renderError(w, r, err)
		return
	}
	status, err := s.tracker.StatusByKey(r.Context(), request.ActivationKey)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, status)
}

type supervisorKey struct{}

// requireSupervisor verifies the bearer token and stores it in the
// request context.
func (s *presenceService) requireSupervisor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := s.authenticate(r)
		if err != nil {
			s.renderAuthError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), supervisorKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *presenceService) authenticate(r *http.Request) (*supervisortoken.Token, error) {
	header := r.Header.Get("Authorization")
	encoded, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(encoded) == "" {
		return nil, fmt.Errorf("%w: missing bearer token", supervisortoken.ErrMalformed)
	}
	raw, err := supervisortoken.Decode(strings.TrimSpace(encoded))
	if err != nil {
		return nil, err
	}
	token, err := supervisortoken.VerifyAt(s.publicKey, raw, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if s.revocations.IsRevoked(token.ID) {
		return nil, supervisortoken.ErrRevoked
	}
	return token, nil
}

// company resolves the tenant a dashboard request reads: the
// "company" query parameter if given, else the token's own.
func (s *presenceService) company(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := r.Context().Value(supervisorKey{}).(*supervisortoken.Token)
	companyID, err := token.Authorize(r.URL.Query().Get("company"))
	if err != nil {
		s.renderAuthError(w, r, err)
		return "", false
	}
	return companyID, true
}

func (s *presenceService) handleStatuses(w http.ResponseWriter, r *http.Request) {
	companyID, ok := s.company(w, r)
	if !ok {
		return
	}
	statuses, err := s.tracker.ListStatuses(r.Context(), companyID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, presenceapi.StatusesResponse{
		CompanyID: companyID,
		AsOf:      s.clock.Now(),
		Statuses:  statuses,
	})
}

func (s *presenceService) handleSummary(w http.ResponseWriter, r *http.Request) {
	companyID, ok := s.company(w, r)
	if !ok {
		return
	}
	summary, err := s.tracker.Summary(r.Context(), companyID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

func (s *presenceService) handleEmployeeStatus(w http.ResponseWriter, r *http.Request) {
	companyID, ok := s.company(w, r)
	if !ok {
		return
	}
	status, err := s.tracker.Status(r.Context(), companyID, chi.URLParam(r, "id"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, status)
}

func (s *presenceService) handleEmployeeReport(w http.ResponseWriter, r *http.Request) {
	companyID, ok := s.company(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	to, err := parseTimeParam(query.Get("to"), s.clock.Now())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	from, err := parseTimeParam(query.Get("from"), to.Add(-defaultReportWindow))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	report, err := s.tracker.Report(r.Context(), companyID, chi.URLParam(r, "id"), from, to)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

func (s *presenceService) handleEmployeeEvents(w http.ResponseWriter, r *http.Request) {
	companyID, ok := s.company(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	since, err := parseTimeParam(query.Get("since"), time.Time{})
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	until, err := parseTimeParam(query.Get("until"), time.Time{})
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.renderError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", presence.ErrInvalidRequest))
			return
		}
	}
	events, err := s.tracker.Events(r.Context(), companyID, presence.EventQuery{
		EmployeeID: chi.URLParam(r, "id"),
		Since:      since,
		Until:      until,
		Limit:      limit,
	})
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if events == nil {
		events = []presence.Event{}
	}
	render.JSON(w, r, presenceapi.EventsResponse{Events: events})
}

// parseTimeParam parses an RFC 3339 query value, returning fallback
// when it is empty.
func parseTimeParam(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not an RFC 3339 time", presence.ErrInvalidRequest, raw)
	}
	return parsed, nil
}
