package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/fieldops/field-service-api/types"
)

// DataService is the backend gateway for users and service orders. It
// issues exactly one request per operation and translates wire rows into
// the in-memory entity shape.
type DataService interface {
	FetchUsers(ctx context.Context) ([]types.User, error)
	FetchServiceOrders(ctx context.Context) ([]types.ServiceOrder, error)
	FetchProfile(ctx context.Context, userID string) (types.User, error)
	CreateServiceOrder(ctx context.Context, draft types.NewServiceOrder) (types.ServiceOrder, error)
	UpdateStatus(ctx context.Context, id string, status types.ServiceOrderStatus) (types.ServiceOrder, error)
	AssignTechnician(ctx context.Context, orderID string, technicianID *string) (types.ServiceOrder, error)
	DeleteServiceOrder(ctx context.Context, id string) error
}

// userRow is the wire shape of a user record
type userRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url"`
}

func (r userRow) toUser() types.User {
	return types.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Role:      types.UserRole(r.Role),
		AvatarURL: r.AvatarURL,
	}
}

// orderRow is the wire shape of a service order record
type orderRow struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Location    struct {
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
		Address string  `json:"address"`
	} `json:"location"`
	Status               string    `json:"status"`
	AssignedTechnicianID *string   `json:"assigned_technician_id"`
	CreatedAt            time.Time `json:"created_at"`
}

func (r orderRow) toServiceOrder() types.ServiceOrder {
	return types.ServiceOrder{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Date:        r.Date,
		Location: types.Location{
			Lat:     r.Location.Lat,
			Lng:     r.Location.Lng,
			Address: r.Location.Address,
		},
		Status:               types.ServiceOrderStatus(r.Status),
		AssignedTechnicianID: r.AssignedTechnicianID,
		CreatedAt:            r.CreatedAt,
	}
}

// HTTPDataService implements DataService against the REST API
type HTTPDataService struct {
	api *apiClient
}

// NewHTTPDataService creates a data service against the given API base
// URL, attaching credentials from the token source
func NewHTTPDataService(baseURL string, token TokenSource) *HTTPDataService {
	return &HTTPDataService{api: newAPIClient(baseURL, token)}
}

// FetchUsers retrieves the full user list ordered by name
func (s *HTTPDataService) FetchUsers(ctx context.Context) ([]types.User, error) {
	var rows []userRow
	if err := s.api.doJSON(ctx, "GET", "/api/v1/users", nil, &rows); err != nil {
		return nil, err
	}
	users := make([]types.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

// FetchServiceOrders retrieves the full order list, newest scheduled first
func (s *HTTPDataService) FetchServiceOrders(ctx context.Context) ([]types.ServiceOrder, error) {
	var rows []orderRow
	if err := s.api.doJSON(ctx, "GET", "/api/v1/orders", nil, &rows); err != nil {
		return nil, err
	}
	orders := make([]types.ServiceOrder, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, r.toServiceOrder())
	}
	return orders, nil
}

// FetchProfile retrieves a single profile record by user id
func (s *HTTPDataService) FetchProfile(ctx context.Context, userID string) (types.User, error) {
	var row userRow
	if err := s.api.doJSON(ctx, "GET", "/api/v1/users/"+url.PathEscape(userID), nil, &row); err != nil {
		return types.User{}, err
	}
	return row.toUser(), nil
}

// CreateServiceOrder submits a draft. The backend forces status to
// pending and assigns id and creation time.
func (s *HTTPDataService) CreateServiceOrder(ctx context.Context, draft types.NewServiceOrder) (types.ServiceOrder, error) {
	body := map[string]interface{}{
		"title":       draft.Title,
		"description": draft.Description,
		"date":        draft.Date,
		"location": map[string]interface{}{
			"lat":     draft.Location.Lat,
			"lng":     draft.Location.Lng,
			"address": draft.Location.Address,
		},
		"assigned_technician_id": draft.AssignedTechnicianID,
	}
	var row orderRow
	if err := s.api.doJSON(ctx, "POST", "/api/v1/orders", body, &row); err != nil {
		return types.ServiceOrder{}, err
	}
	return row.toServiceOrder(), nil
}

// UpdateStatus changes an order's workflow state
func (s *HTTPDataService) UpdateStatus(ctx context.Context, id string, status types.ServiceOrderStatus) (types.ServiceOrder, error) {
	body := map[string]string{"status": string(status)}
	var row orderRow
	path := fmt.Sprintf("/api/v1/orders/%s/status", url.PathEscape(id))
	if err := s.api.doJSON(ctx, "PATCH", path, body, &row); err != nil {
		return types.ServiceOrder{}, err
	}
	return row.toServiceOrder(), nil
}

// AssignTechnician sets or clears an order's assignee
func (s *HTTPDataService) AssignTechnician(ctx context.Context, orderID string, technicianID *string) (types.ServiceOrder, error) {
	body := map[string]interface{}{"technician_id": technicianID}
	var row orderRow
	path := fmt.Sprintf("/api/v1/orders/%s/assign", url.PathEscape(orderID))
	if err := s.api.doJSON(ctx, "PATCH", path, body, &row); err != nil {
		return types.ServiceOrder{}, err
	}
	return row.toServiceOrder(), nil
}

// DeleteServiceOrder removes an order
func (s *HTTPDataService) DeleteServiceOrder(ctx context.Context, id string) error {
	return s.api.doJSON(ctx, "DELETE", "/api/v1/orders/"+url.PathEscape(id), nil, nil)
}
