package model

import (
	"math"
	"time"
)

type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleUser          Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdministrator || r == RoleUser
}

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	return s == UserActive || s == UserInactive
}

// User is an account. PasswordHash never leaves the process.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	LastLogin    *time.Time `json:"lastLogin"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsAdmin reports whether u has the administrator role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdministrator
}

// Scope returns the owner filter for queries made on behalf of u:
// nil for administrators, the user's own id otherwise.
func (u *User) Scope() *string {
	if u.IsAdmin() {
		return nil
	}
	id := u.ID
	return &id
}

// UserSummary is the owner information attached to scans for administrators.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UserUpdate carries a partial update; nil fields are left unchanged.
type UserUpdate struct {
	Email  *string
	Role   *Role
	Status *UserStatus
}

// UserFilter selects users for the admin listing.
type UserFilter struct {
	Search string
	Page   Page
}

// UserStats aggregates accounts for the admin statistics endpoint.
type UserStats struct {
	TotalUsers          int `json:"totalUsers"`
	ActiveUsers         int `json:"activeUsers"`
	InactiveUsers       int `json:"inactiveUsers"`
	AdminUsers          int `json:"adminUsers"`
	RegularUsers        int `json:"regularUsers"`
	RecentRegistrations int `json:"recentRegistrations"`
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	// MaxPageNumber keeps Offset well inside int range.
	MaxPageNumber = math.MaxInt32
)

// Normalize applies defaults and bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Number > MaxPageNumber {
		p.Number = MaxPageNumber
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset is the number of rows to skip.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Limit
}

// Pagination is the metadata returned alongside a page of results.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	Total       int  `json:"total"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

// NewPagination describes page p of a result set with total rows.
func NewPagination(p Page, total int) Pagination {
	p = p.Normalize()
	return Pagination{
		CurrentPage: p.Number,
		TotalPages:  int(math.Ceil(float64(total) / float64(p.Limit))),
		Total:       total,
		HasNext:     p.Offset()+p.Limit < total,
		HasPrev:     p.Number > 1,
	}
}
