package users

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/scan-gateway/internal/auth"
	"github.com/yourorg/scan-gateway/internal/errors"
	"github.com/yourorg/scan-gateway/internal/model"
)

type memStore struct {
	mu         sync.Mutex
	users      map[string]*model.User
	scanCounts map[string]int
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*model.User{}, scanCounts: map[string]int{}}
}

func (m *memStore) CountUsers(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *memStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.users {
		if other.Username == u.Username {
			return errors.NewAlreadyExistsError("User", "Username already exists")
		}
		if other.Email == u.Email {
			return errors.NewAlreadyExistsError("User", "Email already exists")
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errors.NewNotFoundError("User", id)
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.NewNotFoundError("User", "")
}

func (m *memStore) UpdateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, other := range m.users {
		if id != u.ID && other.Email == u.Email {
			return errors.NewAlreadyExistsError("User", "Email already exists")
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) SetPassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id].PasswordHash = hash
	return nil
}

func (m *memStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id].LastLogin = &at
	return nil
}

func (m *memStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *memStore) ListUsers(_ context.Context, f model.UserFilter) ([]model.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	needle := strings.ToLower(f.Search)
	for _, u := range m.users {
		if needle == "" || strings.Contains(strings.ToLower(u.Username), needle) || strings.Contains(u.Email, needle) {
			out = append(out, *u)
		}
	}
	return out, len(out), nil
}

func (m *memStore) UserStats(_ context.Context, since time.Time) (model.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st model.UserStats
	for _, u := range m.users {
		st.TotalUsers++
		if u.Status == model.UserActive {
			st.ActiveUsers++
		} else {
			st.InactiveUsers++
		}
		if u.Role == model.RoleAdministrator {
			st.AdminUsers++
		} else {
			st.RegularUsers++
		}
		if !u.CreatedAt.Before(since) {
			st.RecentRegistrations++
		}
	}
	return st, nil
}

func (m *memStore) CountScansByUser(_ context.Context, userID string) (int, error) {
	return m.scanCounts[userID], nil
}

func (m *memStore) RecentScans(_ context.Context, userID string, n int) ([]model.Scan, error) {
	out := []model.Scan{}
	for i := 0; i < m.scanCounts[userID] && i < n; i++ {
		out = append(out, model.Scan{ID: uuid.NewString(), UserID: userID})
	}
	return out, nil
}

func newService() (*Service, *memStore, *auth.Tokens) {
	store := newMemStore()
	tokens := auth.NewTokens("test-secret", time.Hour)
	return NewService(store, tokens), store, tokens
}

func TestRegisterFirstUserIsAdmin(t *testing.T) {
	svc, _, tokens := newService()
	ctx := context.Background()

	first, err := svc.Register(ctx, "root", "Root@Example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdministrator, first.User.Role)
	assert.Equal(t, "root@example.com", first.User.Email)
	assert.Equal(t, model.UserActive, first.User.Status)

	id, err := tokens.Verify(first.Token)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, id)

	second, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, second.User.Role)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	tests := []struct {
		name, username, email, password string
	}{
		{"missing fields", "", "a@example.com", "password123"},
		{"bad email", "alice", "not-an-email", "password123"},
		{"email without domain dot", "alice", "alice@localhost", "password123"},
		{"short password", "alice", "alice@example.com", "short"},
		{"password over bcrypt limit", "alice", "alice@example.com", strings.Repeat("a", 80)},
		{"bad username", "a!", "alice@example.com", "password123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.email, tt.password)
			assert.True(t, errors.IsValidationError(err), "got %v", err)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "other@example.com", "password123")
	require.True(t, errors.IsAlreadyExists(err))
	assert.Equal(t, "User with that email or username already exists", err.Error())

	_, err = svc.Register(ctx, "bob", "alice@example.com", "password123")
	assert.True(t, errors.IsAlreadyExists(err))
}

func TestLogin(t *testing.T) {
	svc, store, _ := newService()
	ctx := context.Background()
	reg, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Login(ctx, "alice", "")
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody", "password123")
		assert.True(t, errors.Is(err, errors.ErrUnauthorized))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "alice", "wrong-password")
		assert.True(t, errors.Is(err, errors.ErrUnauthorized))
		assert.Equal(t, "Invalid credentials", err.Error())
	})

	t.Run("success", func(t *testing.T) {
		sess, err := svc.Login(ctx, "alice", "password123")
		require.NoError(t, err)
		assert.NotEmpty(t, sess.Token)
		assert.NotNil(t, sess.User.LastLogin)
		assert.NotNil(t, store.users[reg.User.ID].LastLogin)
	})

	t.Run("inactive", func(t *testing.T) {
		store.users[reg.User.ID].Status = model.UserInactive
		defer func() { store.users[reg.User.ID].Status = model.UserActive }()
		_, err := svc.Login(ctx, "alice", "password123")
		assert.True(t, errors.Is(err, errors.ErrUnauthorized))
		assert.Equal(t, "Your account is inactive", err.Error())
	})
}

func TestAuthenticate(t *testing.T) {
	svc, store, tokens := newService()
	ctx := context.Background()
	reg, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, u.ID)

	_, err = svc.Authenticate(ctx, "garbage")
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	store.users[reg.User.ID].Status = model.UserInactive
	_, err = svc.Authenticate(ctx, reg.Token)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	ghost, err := tokens.Issue(uuid.NewString())
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, ghost)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestProfileAndPassword(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	alice, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "bob", "bob@example.com", "password123")
	require.NoError(t, err)

	u, err := svc.UpdateProfile(ctx, alice.User, "alice@new.example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@new.example.com", u.Email)

	_, err = svc.UpdateProfile(ctx, alice.User, "bob@example.com")
	assert.True(t, errors.IsAlreadyExists(err))

	_, err = svc.UpdateProfile(ctx, alice.User, "nope")
	assert.True(t, errors.IsValidationError(err))

	err = svc.ChangePassword(ctx, alice.User, "wrong-password", "newpassword1")
	require.True(t, errors.IsValidationError(err))
	assert.Equal(t, "Current password is incorrect", err.Error())

	assert.True(t, errors.IsValidationError(svc.ChangePassword(ctx, alice.User, "password123", "short")))
	assert.True(t, errors.IsValidationError(svc.ChangePassword(ctx, alice.User, "password123", strings.Repeat("x", 73))))
	require.NoError(t, svc.ChangePassword(ctx, alice.User, "password123", strings.Repeat("x", 72)))
	require.NoError(t, svc.ChangePassword(ctx, alice.User, strings.Repeat("x", 72), "password123"))

	require.NoError(t, svc.ChangePassword(ctx, alice.User, "password123", "newpassword1"))
	_, err = svc.Login(ctx, "alice", "newpassword1")
	assert.NoError(t, err)

	me, err := svc.Me(ctx, alice.User)
	require.NoError(t, err)
	assert.Equal(t, "alice@new.example.com", me.Email)
}

func TestAdminOperations(t *testing.T) {
	svc, store, _ := newService()
	ctx := context.Background()
	root, err := svc.Register(ctx, "root", "root@example.com", "password123")
	require.NoError(t, err)
	admin := root.User

	created, err := svc.Create(ctx, "carol", "carol@example.com", "password123", "")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, created.Role)

	_, err = svc.Create(ctx, "dave", "dave@example.com", "password123", "superuser")
	assert.True(t, errors.IsValidationError(err))

	t.Run("update", func(t *testing.T) {
		role := model.RoleAdministrator
		status := model.UserInactive
		u, err := svc.Update(ctx, admin, created.ID, model.UserUpdate{Role: &role, Status: &status})
		require.NoError(t, err)
		assert.Equal(t, model.RoleAdministrator, u.Role)
		assert.Equal(t, model.UserInactive, u.Status)

		demote := model.RoleUser
		_, err = svc.Update(ctx, admin, admin.ID, model.UserUpdate{Role: &demote})
		require.True(t, errors.IsValidationError(err))
		assert.Equal(t, "Cannot change your own role", err.Error())

		bad := model.UserStatus("banned")
		_, err = svc.Update(ctx, admin, created.ID, model.UserUpdate{Status: &bad})
		assert.True(t, errors.IsValidationError(err))

		_, err = svc.Update(ctx, admin, uuid.NewString(), model.UserUpdate{})
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("get with recent scans", func(t *testing.T) {
		store.scanCounts[created.ID] = 7
		detail, err := svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, detail.User.ID)
		assert.Len(t, detail.RecentScans, 5)
	})

	t.Run("delete", func(t *testing.T) {
		err := svc.Delete(ctx, admin, admin.ID)
		require.True(t, errors.IsValidationError(err))
		assert.Equal(t, "Cannot delete your own account", err.Error())

		assert.True(t, errors.IsNotFound(svc.Delete(ctx, admin, uuid.NewString())))

		assert.True(t, errors.IsValidationError(svc.Delete(ctx, admin, created.ID)))

		store.scanCounts[created.ID] = 0
		require.NoError(t, svc.Delete(ctx, admin, created.ID))
		_, err = svc.Get(ctx, created.ID)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("reset password", func(t *testing.T) {
		u, err := svc.Create(ctx, "erin", "erin@example.com", "password123", model.RoleUser)
		require.NoError(t, err)

		assert.True(t, errors.IsValidationError(svc.ResetPassword(ctx, u.ID, "short")))
		assert.True(t, errors.IsValidationError(svc.ResetPassword(ctx, u.ID, strings.Repeat("p", 100))))
		assert.True(t, errors.IsNotFound(svc.ResetPassword(ctx, uuid.NewString(), "longenough")))

		require.NoError(t, svc.ResetPassword(ctx, u.ID, "brand-new-pass"))
		_, err = svc.Login(ctx, "erin", "brand-new-pass")
		assert.NoError(t, err)
	})

	t.Run("list and stats", func(t *testing.T) {
		page, err := svc.List(ctx, "ERI", model.Page{})
		require.NoError(t, err)
		require.Len(t, page.Users, 1)
		assert.Equal(t, "erin", page.Users[0].Username)
		assert.Equal(t, 1, page.Pagination.Total)

		st, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, st.TotalUsers)
		assert.Equal(t, 1, st.AdminUsers)
		assert.Equal(t, 1, st.RegularUsers)
		assert.Equal(t, 2, st.RecentRegistrations)
	})
}
