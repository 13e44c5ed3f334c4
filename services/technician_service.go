package services

import (
	"context"
	"strings"
)

// TechnicianService is the client for the privileged user-management
// endpoint. Calls carry the current session token as a bearer credential;
// the endpoint independently re-verifies the caller's admin role from
// server-held data before acting.
type TechnicianService interface {
	Create(ctx context.Context, name, email, password string) error
	Delete(ctx context.Context, userID string) error
}

// HTTPTechnicianService implements TechnicianService against the
// /manage-users endpoint
type HTTPTechnicianService struct {
	api *apiClient
}

// NewHTTPTechnicianService creates a technician service against the
// given API base URL
func NewHTTPTechnicianService(baseURL string, token TokenSource) *HTTPTechnicianService {
	return &HTTPTechnicianService{api: newAPIClient(baseURL, token)}
}

// Create provisions a technician account (admin callers only). Basic
// form constraints are checked client-side for fast feedback; the
// endpoint re-validates everything.
func (s *HTTPTechnicianService) Create(ctx context.Context, name, email, password string) error {
	cleanEmail := strings.TrimSpace(email)
	cleanName := strings.TrimSpace(name)
	cleanPassword := strings.TrimSpace(password)

	if cleanEmail == "" || !strings.Contains(cleanEmail, "@") {
		return &BackendError{Code: "INVALID_EMAIL", Message: "Invalid email address"}
	}
	if len(cleanPassword) < 6 {
		return &BackendError{Code: "WEAK_PASSWORD", Message: "Password must be at least 6 characters"}
	}

	body := map[string]string{
		"email":     cleanEmail,
		"password":  cleanPassword,
		"full_name": cleanName,
	}
	return s.api.doJSON(ctx, "POST", "/api/v1/manage-users", body, nil)
}

// Delete removes a technician account. The endpoint unassigns the
// technician's orders before deleting, and rejects self-deletion.
func (s *HTTPTechnicianService) Delete(ctx context.Context, userID string) error {
	body := map[string]string{"user_id": userID}
	return s.api.doJSON(ctx, "DELETE", "/api/v1/manage-users", body, nil)
}
