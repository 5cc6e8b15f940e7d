// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/service"
	"github.com/bureau-foundation/presence/lib/supervisortoken"
	"github.com/bureau-foundation/presence/lib/version"
)

// registerActions registers the admin socket API. The socket is
// created 0600 and every caller is an operator, so no action checks a
// token. Company ids are still required wherever the tracker scopes
// by tenant.
func (s *presenceService) registerActions(server *service.SocketServer) {
	server.Handle("status", s.handleStatus)
	server.Handle("companies", s.handleCompanies)

	server.Handle("create-employee", s.handleCreateEmployee)
	server.Handle("deactivate-employee", s.handleDeactivateEmployee)

	server.Handle("list-statuses", s.handleListStatuses)
	server.Handle("get-status", s.handleGetStatus)
	server.Handle("summary", s.handleSummaryAction)
	server.Handle("report", s.handleReport)
	server.Handle("events", s.handleEvents)

	server.Handle("mint-token", s.handleMintToken)
	server.Handle("revoke-token", s.handleRevokeToken)
}

// statusResponse is the response to the "status" action.
type statusResponse struct {
	UptimeSeconds float64 `cbor:"uptime_seconds"`
	Version       string  `cbor:"version"`

	AwayTimeout    string `cbor:"away_timeout"`
	OfflineTimeout string `cbor:"offline_timeout"`

	// Published and Dropped count status changes through the
	// broadcaster since start.
	Published uint64 `cbor:"published"`
	Dropped   uint64 `cbor:"dropped"`

	RevokedTokens int `cbor:"revoked_tokens"`
}

func (s *presenceService) handleStatus(ctx context.Context, raw []byte) (any, error) {
	policy := s.tracker.Policy()
	response := statusResponse{
		UptimeSeconds:  s.clock.Now().Sub(s.startedAt).Seconds(),
		Version:        version.Info(),
		AwayTimeout:    policy.AwayTimeout.String(),
		OfflineTimeout: policy.OfflineTimeout.String(),
		RevokedTokens:  s.revocations.Len(),
	}
	if s.broadcaster != nil {
		response.Published, response.Dropped = s.broadcaster.Stats()
	}
	return response, nil
}

func (s *presenceService) handleCompanies(ctx context.Context, raw []byte) (any, error) {
	companies, err := s.tracker.Companies(ctx)
	if err != nil {
		return nil, err
	}
	if companies == nil {
		companies = []string{}
	}
	return companies, nil
}

type createEmployeeRequest struct {
	Company    string `cbor:"company"`
	Name       string `cbor:"name"`
	Department string `cbor:"department,omitempty"`
}

func (s *presenceService) handleCreateEmployee(ctx context.Context, raw []byte) (any, error) {
	request, err := service.DecodeRequest[createEmployeeRequest](raw)
	if err != nil {
		return nil, err
	}
	return s.tracker.CreateEmployee(ctx, request.Company, request.Name, request.Department)
}

// employeeRequest names one employee within a company.
type employeeRequest struct {
	Company  string `cbor:"company"`
	Employee string `cbor:"employee"`
}

func (s *presenceService) handleDeactivateEmployee(ctx context.Context, raw []byte) (any, error) {
	request, err := service.DecodeRequest[employeeRequest](raw)
	if err != nil {
		return nil, err
	}
	return s.tracker.Deactivate(ctx, request.Company, request.Employee)
}

func (s *presenceService) handleGetStatus(ctx context.Context, raw []byte) (any, error) {
	request, err := service.DecodeRequest[employeeRequest](raw)
	if err != nil {
		return nil, err
	}
	return s.tracker.Status(ctx, request.Company, request.Employee)
}

type companyRequest struct {
	Company string `cbor:"company"`
}

func (s *presenceService) handleListStatuses(ctx context.Context, raw []byte) (any, error) {
	request, err := service.DecodeRequest[companyRequest](raw)
	if err != nil {
		return nil, err
	}
	statuses, err := s.tracker.ListStatuses(ctx, request.Company)
	if err != nil {
		return nil, err
	}
	return statuses, nil
}

func (s *presenceService) handleSummaryAction(ctx context.Context, raw []byte) (any, error) {
	request, err := service.DecodeRequest[companyRequest](raw)
	if err != nil {
		return nil, err
	}
	return s.tracker.Summary(ctx, request.Company)
}

type reportRequest struct {
	Company  string    `cbor:"company"`
	Employee string    `cbor:"employee"`
	From     time.Time `cbor:"from"`
	To       time.Time `cbor:"to,omitempty"`
}

func (s *presenceService) handleReport(ctx context.Context, raw []byte) (any, error) {
	request, err := service.DecodeRequest[reportRequest](raw)
	if err != nil {
		return nil, err
	}
	to := request.To
	if to.IsZero() {
		to = s.clock.Now()
	}
	from := request.From
	if from.IsZero() {
		from = to.Add(-defaultReportWindow)
	}
	return s.tracker.Report(ctx, request.Company, request.Employee, from, to)
}

type eventsRequest struct {
	Company  string    `cbor:"company"`
	Employee string    `cbor:"employee,omitempty"`
	Since    time.Time `cbor:"since,omitempty"`
	Until    time.Time `cbor:"until,omitempty"`
	Limit    int       `cbor:"limit,omitempty"`
}

func (s *presenceService) handleEvents(ctx context.Context, raw []byte) (any, error) {
	request, err := service.DecodeRequest[eventsRequest](raw)
	if err != nil {
		return nil, err
	}
	events, err := s.tracker.Events(ctx, request.Company, presence.EventQuery{
		EmployeeID: request.Employee,
		Since:      request.Since,
		Until:      request.Until,
		Limit:      request.Limit,
	})
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []presence.Event{}
	}
	return events, nil
}

type mintTokenRequest struct {
	Subject    string `cbor:"subject"`
	Company    string `cbor:"company,omitempty"`
	SuperAdmin bool   `cbor:"super_admin,omitempty"`

	// TTL overrides tokens.ttl, as a Go duration string.
	TTL string `cbor:"ttl,omitempty"`
}

// mintTokenResponse carries a freshly signed bearer token.
type mintTokenResponse struct {
	Token     string    `cbor:"token"`
	ID        string    `cbor:"id"`
	ExpiresAt time.Time `cbor:"expires_at"`
}

func (s *presenceService) handleMintToken(ctx context.Context, raw []byte) (any, error) {
	request, err := service.DecodeRequest[mintTokenRequest](raw)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(request.Subject) == "" {
		return nil, fmt.Errorf("%w: subject is required", presence.ErrInvalidRequest)
	}
	if strings.TrimSpace(request.Company) == "" && !request.SuperAdmin {
		return nil, fmt.Errorf("%w: company is required unless super_admin is set", presence.ErrInvalidRequest)
	}
	ttl := s.tokenTTL
	if request.TTL != "" {
		ttl, err = time.ParseDuration(request.TTL)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("%w: ttl %q is not a positive duration", presence.ErrInvalidRequest, request.TTL)
		}
	}

	token := supervisortoken.New(request.Subject, request.Company, request.SuperAdmin, s.clock.Now(), ttl)
	encoded, err := supervisortoken.MintString(s.privateKey, token)
	if err != nil {
		return nil, err
	}
	s.logger.Info("supervisor token minted",
		"subject", token.Subject,
		"company_id", token.CompanyID,
		"super_admin", token.SuperAdmin,
		"token_id", token.ID,
		"expires_at", token.ExpiresTime(),
	)
	return mintTokenResponse{Token: encoded, ID: token.ID, ExpiresAt: token.ExpiresTime()}, nil
}

type revokeTokenRequest struct {
	// Token is the encoded bearer token. Its signature is checked so
	// that only tokens this service issued fill the revocation list.
	Token string `cbor:"token"`
}

type revokeTokenResponse struct {
	ID string `cbor:"id"`
}

func (s *presenceService) handleRevokeToken(ctx context.Context, raw []byte) (any, error) {
	request, err := service.DecodeRequest[revokeTokenRequest](raw)
	if err != nil {
		return nil, err
	}
	decoded, err := supervisortoken.Decode(strings.TrimSpace(request.Token))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", presence.ErrInvalidRequest, err)
	}
	now := s.clock.Now()
	token, err := supervisortoken.VerifyAt(s.publicKey, decoded, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", presence.ErrInvalidRequest, err)
	}
	s.revocations.Revoke(token.ID, token.ExpiresTime())
	s.revocations.Cleanup(now)
	s.logger.Info("supervisor token revoked", "token_id", token.ID, "subject", token.Subject)
	return revokeTokenResponse{ID: token.ID}, nil
}
