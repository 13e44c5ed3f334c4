package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fieldops/field-service-api/types"
)

// MockBackend is a deterministic in-memory stand-in for the hosted
// backend, used when no API base URL is configured and in tests. It
// implements DataService and TechnicianService with the same role rules
// as the real endpoints so the same suites run against either.
type MockBackend struct {
	mu        sync.Mutex
	users     []types.User
	orders    []types.ServiceOrder
	passwords map[string]string // email -> password
	caller    *types.User       // set by MockAuthService on sign-in
	nextID    int
	clock     time.Time

	// FailNextMutation makes the next mutating call fail with a
	// BackendError, for exercising rollback paths in tests.
	FailNextMutation bool
}

// NewMockBackend creates a mock backend seeded with a default admin and
// technician, mirroring local-development seed data.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		users: []types.User{
			{ID: "admin-user-id", Name: "Administrator", Email: "admin@admin.com", Role: types.RoleAdmin},
			{ID: "tech-user-id", Name: "Sample Technician", Email: "tech@example.com", Role: types.RoleTechnician},
		},
		passwords: map[string]string{
			"admin@admin.com":  "admin123",
			"tech@example.com": "tech123",
		},
		clock: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *MockBackend) failIfRequested() error {
	if m.FailNextMutation {
		m.FailNextMutation = false
		return &BackendError{Code: "MOCK_FAILURE", Message: "simulated backend failure", Status: http.StatusInternalServerError}
	}
	return nil
}

// tick returns a strictly increasing deterministic timestamp
func (m *MockBackend) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *MockBackend) newID(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

// SetCaller sets the identity privileged operations are checked against
func (m *MockBackend) SetCaller(user *types.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caller = user
}

// FetchUsers returns all users
func (m *MockBackend) FetchUsers(ctx context.Context) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.User, len(m.users))
	copy(out, m.users)
	return out, nil
}

// FetchServiceOrders returns all orders
func (m *MockBackend) FetchServiceOrders(ctx context.Context) ([]types.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ServiceOrder, len(m.orders))
	copy(out, m.orders)
	return out, nil
}

// FetchProfile returns one user by id
func (m *MockBackend) FetchProfile(ctx context.Context, userID string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return types.User{}, &BackendError{Code: "USER_NOT_FOUND", Message: "User not found", Status: http.StatusNotFound}
}

// CreateServiceOrder stores a new order with status forced to pending
func (m *MockBackend) CreateServiceOrder(ctx context.Context, draft types.NewServiceOrder) (types.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failIfRequested(); err != nil {
		return types.ServiceOrder{}, err
	}

	order := types.ServiceOrder{
		ID:                   m.newID("order"),
		Title:                draft.Title,
		Description:          draft.Description,
		Date:                 draft.Date,
		Location:             draft.Location,
		Status:               types.StatusPending,
		AssignedTechnicianID: draft.AssignedTechnicianID,
		CreatedAt:            m.tick(),
	}
	m.orders = append(m.orders, order)
	return order, nil
}

// UpdateStatus changes an order's workflow state
func (m *MockBackend) UpdateStatus(ctx context.Context, id string, status types.ServiceOrderStatus) (types.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failIfRequested(); err != nil {
		return types.ServiceOrder{}, err
	}
	if !types.ValidStatus(status) {
		return types.ServiceOrder{}, &BackendError{Code: "INVALID_STATUS", Message: "Unknown service order status", Status: http.StatusBadRequest}
	}

	for i := range m.orders {
		if m.orders[i].ID == id {
			m.orders[i].Status = status
			return m.orders[i], nil
		}
	}
	return types.ServiceOrder{}, &BackendError{Code: "ORDER_NOT_FOUND", Message: "Service order not found", Status: http.StatusNotFound}
}

// AssignTechnician sets or clears an order's assignee
func (m *MockBackend) AssignTechnician(ctx context.Context, orderID string, technicianID *string) (types.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failIfRequested(); err != nil {
		return types.ServiceOrder{}, err
	}

	for i := range m.orders {
		if m.orders[i].ID == orderID {
			m.orders[i].AssignedTechnicianID = technicianID
			return m.orders[i], nil
		}
	}
	return types.ServiceOrder{}, &BackendError{Code: "ORDER_NOT_FOUND", Message: "Service order not found", Status: http.StatusNotFound}
}

// DeleteServiceOrder removes an order
func (m *MockBackend) DeleteServiceOrder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failIfRequested(); err != nil {
		return err
	}

	for i := range m.orders {
		if m.orders[i].ID == id {
			m.orders = append(m.orders[:i], m.orders[i+1:]...)
			return nil
		}
	}
	return &BackendError{Code: "ORDER_NOT_FOUND", Message: "Service order not found", Status: http.StatusNotFound}
}

// Create provisions a technician, re-checking the caller's admin role
// the way the privileged endpoint does
func (m *MockBackend) Create(ctx context.Context, name, email, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireAdminCallerLocked(); err != nil {
		return err
	}
	if err := m.failIfRequested(); err != nil {
		return err
	}

	for _, u := range m.users {
		if u.Email == email {
			return &BackendError{Message: "A user with this email already exists", Status: http.StatusBadRequest}
		}
	}

	m.users = append(m.users, types.User{
		ID:    m.newID("user"),
		Name:  name,
		Email: email,
		Role:  types.RoleTechnician,
	})
	m.passwords[email] = password
	return nil
}

// Delete removes a technician after unassigning their orders
func (m *MockBackend) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireAdminCallerLocked(); err != nil {
		return err
	}
	if m.caller != nil && m.caller.ID == userID {
		return &BackendError{Message: "Cannot delete yourself", Status: http.StatusForbidden}
	}
	if err := m.failIfRequested(); err != nil {
		return err
	}

	for i := range m.orders {
		if m.orders[i].AssignedTechnicianID != nil && *m.orders[i].AssignedTechnicianID == userID {
			m.orders[i].AssignedTechnicianID = nil
		}
	}

	for i, u := range m.users {
		if u.ID == userID {
			delete(m.passwords, u.Email)
			m.users = append(m.users[:i], m.users[i+1:]...)
			return nil
		}
	}
	return &BackendError{Message: "User not found", Status: http.StatusBadRequest}
}

// requireAdminCallerLocked must be called with m.mu held
func (m *MockBackend) requireAdminCallerLocked() error {
	if m.caller == nil {
		return &BackendError{Message: "Missing authorization", Status: http.StatusUnauthorized}
	}
	if m.caller.Role != types.RoleAdmin {
		return &BackendError{Message: "Only administrators can manage technicians", Status: http.StatusForbidden}
	}
	return nil
}

// OrderByID returns a stored order (for testing assertions)
func (m *MockBackend) OrderByID(id string) (types.ServiceOrder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return o, true
		}
	}
	return types.ServiceOrder{}, false
}

// UserByEmail returns a stored user (for testing assertions)
func (m *MockBackend) UserByEmail(email string) (types.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, true
		}
	}
	return types.User{}, false
}

// SeedOrder inserts an order directly (for testing setups)
func (m *MockBackend) SeedOrder(order types.ServiceOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.ID == "" {
		order.ID = m.newID("order")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = m.tick()
	}
	m.orders = append(m.orders, order)
}

// SeedUser inserts a user directly (for testing setups)
func (m *MockBackend) SeedUser(user types.User, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		user.ID = m.newID("user")
	}
	m.users = append(m.users, user)
	m.passwords[user.Email] = password
}
