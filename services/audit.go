package services

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labdesk/v2/internal/types"
)

const auditPath = "/audit/"

// AuditService reads the server's audit log, newest first.
type AuditService struct {
	api *APIClient
}

func NewAuditService(api *APIClient) *AuditService {
	return &AuditService{api: api}
}

// List returns up to limit entries after skipping skip. A non-positive limit
// uses the server default.
func (s *AuditService) List(ctx context.Context, skip, limit int) ([]types.AuditEntry, error) {
	query := url.Values{}
	if skip > 0 {
		query.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	result, err := s.api.Call(ctx, Request{Method: http.MethodGet, Path: auditPath, Query: query})
	if err != nil {
		return nil, err
	}
	entries := []types.AuditEntry{}
	if err := result.Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}
