package service

import (
	"context"
	"errors"
	"sync"

	userserrors "cuworking/internal/users/errors"
	"cuworking/internal/users/repository"
	"cuworking/internal/users/validator"
	"cuworking/pkg/auth"
	"cuworking/pkg/config"
	apperrors "cuworking/pkg/errors"
	"cuworking/pkg/model"
	"cuworking/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// ReservationCleaner removes every reservation held by a user.
type ReservationCleaner interface {
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type UserService interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.User, int64, error)
	Delete(ctx context.Context, actorID, id string) error
}

type userService struct {
	repo         repository.UserRepository
	reservations ReservationCleaner
	validator    *validator.UserValidator
	cfg          *config.Config

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(
	repo repository.UserRepository,
	reservations ReservationCleaner,
	validator *validator.UserValidator,
	cfg *config.Config,
) UserService {
	return &userService{
		repo:         repo,
		reservations: reservations,
		validator:    validator,
		cfg:          cfg,
	}
}

func (s *userService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	req.Username = sanitizer.NormalizeUsername(req.Username)
	req.Email = sanitizer.NormalizeEmail(req.Email)

	if err := s.validator.ValidateRegistration(req); err != nil {
		s.cfg.Log.Warn("User validation failed",
			"username", req.Username,
			"error", err,
		)
		return nil, apperrors.Validation("User validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		s.cfg.Log.Error("Failed to check user uniqueness", "username", req.Username, "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}
	if exists {
		return nil, apperrors.Conflict("Username or email already exists")
	}

	hash, err := auth.HashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to register user", err)
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		// The unique indexes catch a registration racing the check above.
		if errors.Is(err, userserrors.ErrDuplicate) {
			return nil, apperrors.Conflict("Username or email already exists")
		}
		s.cfg.Log.Error("Failed to create user", "username", req.Username, "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	s.cfg.Log.Info("User registered successfully",
		"id", user.ID,
		"username", user.Username,
	)
	return user, nil
}

// Authenticate resolves basic-auth credentials. Unknown usernames still cost
// one bcrypt comparison.
func (s *userService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.repo.FindByUsername(ctx, sanitizer.NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			_, _ = auth.VerifyPassword(s.dummy(), password)
			return nil, apperrors.Unauthorized("Invalid username or password")
		}
		return nil, apperrors.Internal("Failed to authenticate", err)
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, apperrors.Internal("Failed to authenticate", err)
	}
	if !ok {
		return nil, apperrors.Unauthorized("Invalid username or password")
	}
	return user, nil
}

func (s *userService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = auth.HashPassword("cuworking-dummy-password", s.cfg.BcryptCost)
	})
	return s.dummyHash
}

func (s *userService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.User, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var users []*model.User
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count users", "error", errCount)
			errCount = apperrors.Internal("Failed to count users", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		users, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list users", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve users", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return users, count, nil
}

// Delete removes a user and every reservation they hold in one transaction.
func (s *userService) Delete(ctx context.Context, actorID, id string) error {
	id = sanitizer.NormalizeID(id)
	if id == actorID {
		return apperrors.InvalidInput("Admins cannot delete themselves")
	}

	var removed int64
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Delete(sessCtx, id); err != nil {
			return err
		}
		n, err := s.reservations.DeleteByUser(sessCtx, id)
		removed = n
		return err
	})
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) || errors.Is(err, userserrors.ErrInvalidID) {
			return apperrors.NotFoundWithID("User", id)
		}
		s.cfg.Log.Error("Failed to delete user", "id", id, "error", err)
		return apperrors.Internal("Failed to delete user", err)
	}

	s.cfg.Log.Info("User deleted successfully",
		"id", id,
		"deleted_by", actorID,
		"reservations_removed", removed,
	)
	return nil
}
