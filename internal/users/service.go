// Package users handles accounts: self-service registration and login,
// profile changes, and administration of other users.
package users

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/yourorg/scan-gateway/internal/auth"
	"github.com/yourorg/scan-gateway/internal/errors"
	"github.com/yourorg/scan-gateway/internal/logging"
	"github.com/yourorg/scan-gateway/internal/model"
)

const (
	MinPasswordLength = 8
	// MaxPasswordLength is bcrypt's input limit in bytes.
	MaxPasswordLength = 72
	recentScanCount   = 5
	recentWindow      = 30 * 24 * time.Hour
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{3,50}$`)

// Store persists users and answers the scan questions account management needs.
type Store interface {
	CountUsers(ctx context.Context) (int, error)
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
	SetPassword(ctx context.Context, id, hash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, f model.UserFilter) ([]model.User, int, error)
	UserStats(ctx context.Context, since time.Time) (model.UserStats, error)
	CountScansByUser(ctx context.Context, userID string) (int, error)
	RecentScans(ctx context.Context, userID string, n int) ([]model.Scan, error)
}

// Tokens issues and verifies bearer tokens.
type Tokens interface {
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
}

type Service struct {
	store  Store
	tokens Tokens
	now    func() time.Time
}

func NewService(store Store, tokens Tokens) *Service {
	return &Service{store: store, tokens: tokens, now: time.Now}
}

// Session is returned by Register and Login.
type Session struct {
	Token string
	User  *model.User
}

// Register creates an account. The very first account becomes an administrator.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Session, error) {
	username, email = strings.TrimSpace(username), normalizeEmail(email)
	if err := validateAccount(username, email, password); err != nil {
		return nil, err
	}

	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	role := model.RoleUser
	if count == 0 {
		role = model.RoleAdministrator
	}

	u, err := s.create(ctx, username, email, password, role)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().Str("username", username).Str("role", string(role)).Msg("New user registered")
	return &Session{Token: token, User: u}, nil
}

func (s *Service) create(ctx context.Context, username, email, password string, role model.Role) (*model.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       model.UserActive,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.IsAlreadyExists(err) {
			return nil, errors.NewAlreadyExistsError("User", "User with that email or username already exists")
		}
		return nil, err
	}
	return u, nil
}

// Login checks credentials and records the login time.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.NewValidationError("username", username, "Please provide username and password")
	}
	u, err := s.store.GetUserByUsername(ctx, username)
	if errors.IsNotFound(err) {
		return nil, errors.NewUnauthorizedError("Invalid credentials", nil)
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		logging.FromContext(ctx).Warn().Str("username", username).Msg("Failed login attempt")
		return nil, errors.NewUnauthorizedError("Invalid credentials", nil)
	}
	if u.Status != model.UserActive {
		return nil, errors.NewUnauthorizedError("Your account is inactive", nil)
	}

	now := s.now().UTC()
	if err := s.store.TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	u.LastLogin = &now

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().Str("user_id", u.ID).Msg("User logged in")
	return &Session{Token: token, User: u}, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, id)
	if errors.IsNotFound(err) {
		return nil, errors.NewUnauthorizedError("The user belonging to this token no longer exists", err)
	}
	if err != nil {
		return nil, err
	}
	if u.Status != model.UserActive {
		return nil, errors.NewUnauthorizedError("User account is inactive", nil)
	}
	return u, nil
}

// Me returns the current profile of user.
func (s *Service) Me(ctx context.Context, user *model.User) (*model.User, error) {
	return s.store.GetUser(ctx, user.ID)
}

// UpdateProfile changes the caller's email.
func (s *Service) UpdateProfile(ctx context.Context, user *model.User, email string) (*model.User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	u.Email = email
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, user *model.User, current, next string) error {
	if current == "" {
		return errors.NewValidationError("currentPassword", nil, "Current password is required")
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	u, err := s.store.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, current) {
		return errors.NewValidationError("currentPassword", nil, "Current password is incorrect")
	}
	return s.setPassword(ctx, u.ID, next)
}

func (s *Service) setPassword(ctx context.Context, id, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return s.store.SetPassword(ctx, id, hash)
}

// UserPage is one page of the admin user listing.
type UserPage struct {
	Users      []model.User
	Pagination model.Pagination
}

func (s *Service) List(ctx context.Context, search string, page model.Page) (*UserPage, error) {
	page = page.Normalize()
	items, total, err := s.store.ListUsers(ctx, model.UserFilter{Search: strings.TrimSpace(search), Page: page})
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: items, Pagination: model.NewPagination(page, total)}, nil
}

// UserDetail is a user with their most recent scans.
type UserDetail struct {
	User        *model.User
	RecentScans []model.Scan
}

func (s *Service) Get(ctx context.Context, id string) (*UserDetail, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentScans(ctx, u.ID, recentScanCount)
	if err != nil {
		return nil, err
	}
	return &UserDetail{User: u, RecentScans: recent}, nil
}

// Create adds an account on behalf of an administrator. role defaults to user.
func (s *Service) Create(ctx context.Context, username, email, password string, role model.Role) (*model.User, error) {
	username, email = strings.TrimSpace(username), normalizeEmail(email)
	if err := validateAccount(username, email, password); err != nil {
		return nil, err
	}
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return nil, errors.NewValidationError("role", role, "Role must be administrator or user")
	}
	u, err := s.create(ctx, username, email, password, role)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().Str("user_id", u.ID).Str("role", string(role)).Msg("User created")
	return u, nil
}

// Update applies a partial update to user id. Administrators cannot change
// their own role.
func (s *Service) Update(ctx context.Context, actor *model.User, id string, upd model.UserUpdate) (*model.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return nil, errors.NewValidationError("role", *upd.Role, "Role must be administrator or user")
		}
		if u.ID == actor.ID && *upd.Role != u.Role {
			return nil, errors.NewValidationError("role", *upd.Role, "Cannot change your own role")
		}
		u.Role = *upd.Role
	}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return nil, errors.NewValidationError("status", *upd.Status, "Status must be active or inactive")
		}
		u.Status = *upd.Status
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		u.Email = email
	}
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().Str("user_id", u.ID).Str("by", actor.ID).Msg("User updated")
	return u, nil
}

// Delete removes a user who owns no scans.
func (s *Service) Delete(ctx context.Context, actor *model.User, id string) error {
	if id == actor.ID {
		return errors.NewValidationError("userId", id, "Cannot delete your own account")
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	n, err := s.store.CountScansByUser(ctx, u.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return errors.NewValidationError("userId", id, "Cannot delete user with existing scans. Please delete scans first.")
	}
	if err := s.store.DeleteUser(ctx, u.ID); err != nil {
		return err
	}
	logging.FromContext(ctx).Info().Str("user_id", u.ID).Str("by", actor.ID).Msg("User deleted")
	return nil
}

// ResetPassword sets a new password for user id.
func (s *Service) ResetPassword(ctx context.Context, id, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, u.ID, password)
}

func (s *Service) Stats(ctx context.Context) (model.UserStats, error) {
	return s.store.UserStats(ctx, s.now().Add(-recentWindow))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateAccount(username, email, password string) error {
	if username == "" || email == "" || password == "" {
		return errors.NewValidationError("", nil, "Please provide username, email and password")
	}
	if !usernamePattern.MatchString(username) {
		return errors.NewValidationError("username", username,
			"Username must be 3-50 characters of letters, digits, dots, underscores or dashes")
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	return validatePassword(password)
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return errors.NewValidationError("email", email, "Please provide a valid email")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.NewValidationError("password", nil,
			fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		return errors.NewValidationError("password", nil,
			fmt.Sprintf("Password must be at most %d bytes", MaxPasswordLength))
	}
	return nil
}
