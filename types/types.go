// Package types holds the client-side entity shapes shared by the backend
// gateway services and the application state store.
package types

import "time"

// UserRole identifies what a user is allowed to see and mutate.
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleTechnician UserRole = "technician"
)

// User is a client-side view of an account: identity plus role.
type User struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Role      UserRole `json:"role"`
	AvatarURL string   `json:"avatarUrl,omitempty"`
}

// IsAdmin reports whether the user may perform admin-only mutations.
// This is a UX convenience only; the server re-checks roles on every
// privileged operation.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Location is where a service order takes place. Lat/Lng are decimal
// degrees; both must be set for the order to be usable on map views.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// HasCoordinates reports whether the location can be placed on a map.
func (l Location) HasCoordinates() bool {
	return l.Lat != 0 || l.Lng != 0
}

// ServiceOrderStatus is the workflow state of an order. The workflow is
// normally monotonic but no transition is forbidden client-side.
type ServiceOrderStatus string

const (
	StatusPending    ServiceOrderStatus = "pending"
	StatusInProgress ServiceOrderStatus = "in-progress"
	StatusCompleted  ServiceOrderStatus = "completed"
	StatusCancelled  ServiceOrderStatus = "cancelled"
)

// ValidStatus reports whether s is one of the known workflow states.
func ValidStatus(s ServiceOrderStatus) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ServiceOrder is a unit of field work.
type ServiceOrder struct {
	ID                   string             `json:"id"`
	Title                string             `json:"title"`
	Description          string             `json:"description"`
	Date                 time.Time          `json:"date"`
	Location             Location           `json:"location"`
	Status               ServiceOrderStatus `json:"status"`
	AssignedTechnicianID *string            `json:"assignedTechnicianId"`
	CreatedAt            time.Time          `json:"createdAt"`
}

// AssignedTo reports whether the order is assigned to the given user.
func (o ServiceOrder) AssignedTo(userID string) bool {
	return o.AssignedTechnicianID != nil && *o.AssignedTechnicianID == userID
}

// NewServiceOrder is the draft an admin submits when creating an order.
// ID, status and creation time are assigned by the backend.
type NewServiceOrder struct {
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Date                 time.Time `json:"date"`
	Location             Location  `json:"location"`
	AssignedTechnicianID *string   `json:"assignedTechnicianId"`
}
