package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BackendError is a failure reported by the backend, carrying the
// upstream message so views can show it inline.
type BackendError struct {
	Code    string
	Message string
	Status  int
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// TokenSource supplies the current bearer credential for authenticated
// requests. It returns "" when no session exists.
type TokenSource func() string

// apiClient is the shared HTTP plumbing for the gateway services.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
}

func newAPIClient(baseURL string, token TokenSource) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		token: token,
	}
}

// envelope is the standard response wrapper used by the API.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// doJSON issues one request and decodes the enveloped response into out.
// out may be nil when the caller only cares about success.
func (a *apiClient) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != nil {
		if token := a.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}

	if resp.StatusCode >= 400 || (!env.Success && env.Error != nil) {
		backendErr := &BackendError{Status: resp.StatusCode}
		if env.Error != nil {
			backendErr.Code = env.Error.Code
			backendErr.Message = env.Error.Message
		} else {
			// Bare {"error": "..."} body from the privileged endpoint
			var bare struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(raw, &bare) == nil && bare.Error != "" {
				backendErr.Message = bare.Error
			} else {
				backendErr.Message = http.StatusText(resp.StatusCode)
			}
		}
		return backendErr
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data from %s: %w", path, err)
		}
	}
	return nil
}
