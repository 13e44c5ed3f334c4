// Package store holds the process-wide application state: current user,
// user roster, service orders and UI theme. It is the only component
// that talks to the backend gateway; views read projections of its
// state and dispatch intents through its methods.
package store

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fieldops/field-service-api/services"
	"github.com/fieldops/field-service-api/types"
)

// Theme is the UI color preference
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ErrNotSignedIn is returned by mutations that need a current user
var ErrNotSignedIn = errors.New("no user is signed in")

// Store is the shared mutable state container. All backend access goes
// through the injected gateway services; no other component calls them.
type Store struct {
	auth        services.AuthService
	data        services.DataService
	technicians services.TechnicianService
	geocode     *services.GeocodeService

	mu            sync.RWMutex
	currentUser   *types.User
	users         []types.User
	serviceOrders []types.ServiceOrder
	theme         Theme
	loading       bool

	// epoch invalidates in-flight fetches: Logout bumps it so results
	// that arrive after sign-out cannot resurrect the session's data
	epoch uint64
}

// New creates a store over the given backend gateway
func New(backend services.Backend) *Store {
	return &Store{
		auth:        backend.Auth,
		data:        backend.Data,
		technicians: backend.Technicians,
		geocode:     backend.Geocode,
		theme:       ThemeDark,
	}
}

// SetUser replaces the current-user slot. Pure assignment, no side effects.
func (s *Store) SetUser(user *types.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		s.currentUser = nil
		return
	}
	copied := *user
	s.currentUser = &copied
}

// CurrentUser returns the signed-in user, or nil
func (s *Store) CurrentUser() *types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentUser == nil {
		return nil
	}
	copied := *s.currentUser
	return &copied
}

// Users returns the user roster
func (s *Store) Users() []types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.User, len(s.users))
	copy(out, s.users)
	return out
}

// ServiceOrders returns all orders
func (s *Store) ServiceOrders() []types.ServiceOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ServiceOrder, len(s.serviceOrders))
	copy(out, s.serviceOrders)
	return out
}

// Loading reports whether a bulk fetch is in progress
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// FetchData loads the full user and order lists concurrently. The two
// requests are independent: one failing does not block the other, and a
// failed request leaves that collection empty. Errors are logged, never
// returned.
func (s *Store) FetchData(ctx context.Context) {
	s.mu.Lock()
	s.loading = true
	epoch := s.epoch
	s.mu.Unlock()

	var (
		wg     sync.WaitGroup
		users  []types.User
		orders []types.ServiceOrder
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		fetched, err := s.data.FetchUsers(ctx)
		if err != nil {
			log.Printf("Error fetching users: %v", err)
			return
		}
		users = fetched
	}()
	go func() {
		defer wg.Done()
		fetched, err := s.data.FetchServiceOrders(ctx)
		if err != nil {
			log.Printf("Error fetching service orders: %v", err)
			return
		}
		orders = fetched
	}()
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if s.epoch != epoch {
		// A logout happened while the requests were in flight; the
		// results belong to a session that no longer exists.
		return
	}
	if users == nil {
		users = []types.User{}
	}
	if orders == nil {
		orders = []types.ServiceOrder{}
	}
	s.users = users
	s.serviceOrders = orders
}

// Logout clears all in-memory state first so the UI reacts instantly,
// then signs out of the backend. Sign-out failure is swallowed.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.currentUser = nil
	s.users = nil
	s.serviceOrders = nil
	s.epoch++
	s.mu.Unlock()

	if err := s.auth.SignOut(ctx); err != nil {
		// Ignore errors during signout (e.g. invalid session)
		log.Printf("Error signing out: %v", err)
	}
}

// AddServiceOrder creates an order, then refetches the full order list.
// A round trip is cheaper than getting list splicing wrong. The error is
// returned so the form can keep its draft and show the message.
func (s *Store) AddServiceOrder(ctx context.Context, draft types.NewServiceOrder) error {
	if s.CurrentUser() == nil {
		return ErrNotSignedIn
	}

	// Resolve the address when the form did not pick coordinates.
	// Geocoding is fail-soft, so this can only fill, never fail.
	if s.geocode != nil && !draft.Location.HasCoordinates() && strings.TrimSpace(draft.Location.Address) != "" {
		coords := s.geocode.GeocodeAddress(ctx, draft.Location.Address)
		draft.Location.Lat = coords.Lat
		draft.Location.Lng = coords.Lng
	}

	if _, err := s.data.CreateServiceOrder(ctx, draft); err != nil {
		log.Printf("Error adding order: %v", err)
		return err
	}

	s.FetchData(ctx)
	return nil
}

// UpdateServiceOrderStatus optimistically patches the local order, then
// sends the update. On failure the patch is rolled back and the error
// returned.
func (s *Store) UpdateServiceOrderStatus(ctx context.Context, id string, status types.ServiceOrderStatus) error {
	previous, found := s.patchOrder(id, func(o *types.ServiceOrder) {
		o.Status = status
	})
	if !found {
		return &services.BackendError{Code: "ORDER_NOT_FOUND", Message: "Service order not found"}
	}

	if _, err := s.data.UpdateStatus(ctx, id, status); err != nil {
		log.Printf("Error updating status: %v", err)
		s.restoreOrder(previous)
		return err
	}
	return nil
}

// AssignServiceOrder optimistically patches the assignment, then sends
// the update. On failure the patch is rolled back and the error returned.
func (s *Store) AssignServiceOrder(ctx context.Context, orderID string, technicianID *string) error {
	previous, found := s.patchOrder(orderID, func(o *types.ServiceOrder) {
		o.AssignedTechnicianID = technicianID
	})
	if !found {
		return &services.BackendError{Code: "ORDER_NOT_FOUND", Message: "Service order not found"}
	}

	if _, err := s.data.AssignTechnician(ctx, orderID, technicianID); err != nil {
		log.Printf("Error assigning technician: %v", err)
		s.restoreOrder(previous)
		return err
	}
	return nil
}

// DeleteServiceOrder deletes the order, then removes it locally. No
// local mutation happens on failure.
func (s *Store) DeleteServiceOrder(ctx context.Context, id string) error {
	if err := s.data.DeleteServiceOrder(ctx, id); err != nil {
		log.Printf("Error deleting order: %v", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.serviceOrders {
		if s.serviceOrders[i].ID == id {
			s.serviceOrders = append(s.serviceOrders[:i], s.serviceOrders[i+1:]...)
			break
		}
	}
	return nil
}

// CreateTechnician provisions a technician through the privileged
// endpoint, then refetches so the roster includes the new account
func (s *Store) CreateTechnician(ctx context.Context, name, email, password string) error {
	if err := s.technicians.Create(ctx, name, email, password); err != nil {
		return err
	}
	s.FetchData(ctx)
	return nil
}

// DeleteTechnician removes a technician through the privileged endpoint.
// The endpoint unassigns the technician's orders server-side; the same
// cleanup is applied locally so views settle without a refetch.
func (s *Store) DeleteTechnician(ctx context.Context, userID string) error {
	if err := s.technicians.Delete(ctx, userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == userID {
			s.users = append(s.users[:i], s.users[i+1:]...)
			break
		}
	}
	for i := range s.serviceOrders {
		if s.serviceOrders[i].AssignedTechnicianID != nil && *s.serviceOrders[i].AssignedTechnicianID == userID {
			s.serviceOrders[i].AssignedTechnicianID = nil
		}
	}
	return nil
}

// SearchCities proxies the place search for the order form's address
// picker. Returns an empty list when no geocoder is wired.
func (s *Store) SearchCities(ctx context.Context, query string) []services.CityResult {
	if s.geocode == nil {
		return []services.CityResult{}
	}
	return s.geocode.SearchCities(ctx, query)
}

// Theme returns the current UI theme
func (s *Store) Theme() Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// ToggleTheme flips the UI theme. Pure local preference.
func (s *Store) ToggleTheme() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.theme == ThemeLight {
		s.theme = ThemeDark
	} else {
		s.theme = ThemeLight
	}
}

// patchOrder applies mutate to the order with the given id, returning
// the pre-patch copy for rollback
func (s *Store) patchOrder(id string, mutate func(*types.ServiceOrder)) (types.ServiceOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.serviceOrders {
		if s.serviceOrders[i].ID == id {
			previous := s.serviceOrders[i]
			mutate(&s.serviceOrders[i])
			return previous, true
		}
	}
	return types.ServiceOrder{}, false
}

// restoreOrder puts a pre-patch copy back, if the order is still present
func (s *Store) restoreOrder(previous types.ServiceOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.serviceOrders {
		if s.serviceOrders[i].ID == previous.ID {
			s.serviceOrders[i] = previous
			return
		}
	}
}

// MyTasks returns only the orders assigned to the current user. For
// technicians this is the whole of what they may see and act on.
func (s *Store) MyTasks() []types.ServiceOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentUser == nil {
		return []types.ServiceOrder{}
	}
	out := []types.ServiceOrder{}
	for _, o := range s.serviceOrders {
		if o.AssignedTo(s.currentUser.ID) {
			out = append(out, o)
		}
	}
	return out
}

// DashboardStats summarizes the order book for the dashboard view
type DashboardStats struct {
	Total       int
	Pending     int
	InProgress  int
	Completed   int
	Cancelled   int
	Technicians int
}

// Stats computes dashboard counters from current state
func (s *Store) Stats() DashboardStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := DashboardStats{Total: len(s.serviceOrders)}
	for _, o := range s.serviceOrders {
		switch o.Status {
		case types.StatusPending:
			stats.Pending++
		case types.StatusInProgress:
			stats.InProgress++
		case types.StatusCompleted:
			stats.Completed++
		case types.StatusCancelled:
			stats.Cancelled++
		}
	}
	for _, u := range s.users {
		if u.Role == types.RoleTechnician {
			stats.Technicians++
		}
	}
	return stats
}

// OrdersForDay returns orders scheduled on the given calendar day
func (s *Store) OrdersForDay(day time.Time) []types.ServiceOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	y, m, d := day.Date()
	out := []types.ServiceOrder{}
	for _, o := range s.serviceOrders {
		oy, om, od := o.Date.Date()
		if oy == y && om == m && od == d {
			out = append(out, o)
		}
	}
	return out
}

// MappableOrders returns only orders whose location can be placed on a
// map view
func (s *Store) MappableOrders() []types.ServiceOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []types.ServiceOrder{}
	for _, o := range s.serviceOrders {
		if o.Location.HasCoordinates() {
			out = append(out, o)
		}
	}
	return out
}
