package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	userserrors "cuworking/internal/users/errors"
	"cuworking/internal/users/validator"
	"cuworking/pkg/auth"
	"cuworking/pkg/config"
	mongotx "cuworking/pkg/db/mongo"
	apperrors "cuworking/pkg/errors"
	"cuworking/pkg/logger"
	"cuworking/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]model.User

	createErr error
	findErr   error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]model.User)}
}

func (m *mockUserRepository) Create(_ context.Context, user *model.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = primitive.NewObjectID().Hex()
	user.CreatedAt = time.Now().UTC()
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserRepository) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, userserrors.ErrNotFound
	}
	return &u, nil
}

func (m *mockUserRepository) FindByUsername(_ context.Context, username string) (*model.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, userserrors.ErrNotFound
}

func (m *mockUserRepository) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepository) FindAll(_ context.Context, limit int, offset int64) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]*model.User, 0, len(m.users))
	for _, u := range m.users {
		u := u
		users = append(users, &u)
	}
	return users, nil
}

func (m *mockUserRepository) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *mockUserRepository) Delete(_ context.Context, id string) error {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return userserrors.ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return userserrors.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockCleaner struct {
	userIDs []string
}

func (m *mockCleaner) DeleteByUser(_ context.Context, userID string) (int64, error) {
	m.userIDs = append(m.userIDs, userID)
	return 2, nil
}

func newService(repo *mockUserRepository, cleaner *mockCleaner) UserService {
	log := logger.Discard()
	cfg := &config.Config{
		Log:          log,
		BcryptCost:   bcrypt.MinCost,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return NewUserService(repo, cleaner, validator.NewUserValidator(log), cfg)
}

func register(t *testing.T, svc UserService, username, email string) *model.User {
	t.Helper()
	user, err := svc.Register(context.Background(), &model.RegisterRequest{
		Username: username,
		Email:    email,
		Password: "secret1",
	})
	require.NoError(t, err)
	return user
}

func TestRegister_HashesPasswordAndNormalizes(t *testing.T) {
	repo := newMockUserRepository()
	svc := newService(repo, &mockCleaner{})

	user := register(t, svc, " alice ", " Alice@Example.COM ")

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.IsAdmin)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	ok, err := auth.VerifyPassword(repo.users[user.ID].PasswordHash, "secret1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegister_Duplicates(t *testing.T) {
	repo := newMockUserRepository()
	svc := newService(repo, &mockCleaner{})
	register(t, svc, "alice", "alice@example.com")

	for _, req := range []model.RegisterRequest{
		{Username: "alice", Email: "other@example.com", Password: "secret1"},
		{Username: "bob", Email: "ALICE@example.com", Password: "secret1"},
	} {
		_, err := svc.Register(context.Background(), &req)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict), "%+v: %v", req, err)
	}
}

func TestRegister_RaceCaughtByUniqueIndex(t *testing.T) {
	repo := newMockUserRepository()
	repo.createErr = userserrors.ErrDuplicate
	svc := newService(repo, &mockCleaner{})

	_, err := svc.Register(context.Background(), &model.RegisterRequest{Username: "carol", Email: "c@example.com", Password: "secret1"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestRegister_Validation(t *testing.T) {
	svc := newService(newMockUserRepository(), &mockCleaner{})

	_, err := svc.Register(context.Background(), &model.RegisterRequest{Username: "al", Email: "x", Password: ""})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestAuthenticate(t *testing.T) {
	repo := newMockUserRepository()
	svc := newService(repo, &mockCleaner{})
	alice := register(t, svc, "alice", "alice@example.com")

	user, err := svc.Authenticate(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	_, err = svc.Authenticate(context.Background(), "alice", "wrong")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = svc.Authenticate(context.Background(), "nobody", "secret1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	repo.findErr = errors.New("socket closed")
	_, err = svc.Authenticate(context.Background(), "alice", "secret1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
}

func TestDelete_CascadesReservations(t *testing.T) {
	repo := newMockUserRepository()
	cleaner := &mockCleaner{}
	svc := newService(repo, cleaner)
	admin := register(t, svc, "admin", "admin@example.com")
	bob := register(t, svc, "bob", "bob@example.com")

	require.NoError(t, svc.Delete(context.Background(), admin.ID, bob.ID))

	assert.NotContains(t, repo.users, bob.ID)
	assert.Equal(t, []string{bob.ID}, cleaner.userIDs)
}

func TestDelete_Errors(t *testing.T) {
	repo := newMockUserRepository()
	svc := newService(repo, &mockCleaner{})
	admin := register(t, svc, "admin", "admin@example.com")

	err := svc.Delete(context.Background(), admin.ID, admin.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
	assert.Contains(t, repo.users, admin.ID)

	err = svc.Delete(context.Background(), admin.ID, "65f1a2b3c4d5e6f708192bff")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	err = svc.Delete(context.Background(), admin.ID, "bob")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestGetAll(t *testing.T) {
	svc := newService(newMockUserRepository(), &mockCleaner{})
	register(t, svc, "alice", "alice@example.com")
	register(t, svc, "bob", "bob@example.com")

	users, total, err := svc.GetAll(context.Background(), 0, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, users, 2)
}
