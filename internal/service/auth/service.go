package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/odontocare-api/internal/model"
	"github.com/jwalitptl/odontocare-api/internal/repository"
	"github.com/jwalitptl/odontocare-api/pkg/auth"
	apperrors "github.com/jwalitptl/odontocare-api/pkg/errors"
	"github.com/jwalitptl/odontocare-api/pkg/metrics"
	"github.com/jwalitptl/odontocare-api/pkg/security"
)

var (
	ErrInvalidCredentials = apperrors.Unauthorized("invalid credentials")
	ErrInvalidToken       = apperrors.Unauthorized("invalid or expired token")
)

type Service struct {
	tx      repository.TxManager
	users   repository.UserRepository
	hasher  security.PasswordHasher
	jwtSvc  auth.JWTService
	metrics *metrics.Metrics
}

func NewService(tx repository.TxManager, users repository.UserRepository, hasher security.PasswordHasher,
	jwtSvc auth.JWTService, m *metrics.Metrics) *Service {
	return &Service{
		tx:      tx,
		users:   users,
		hasher:  hasher,
		jwtSvc:  jwtSvc,
		metrics: m,
	}
}

// Register creates a user. On an empty store the call may be anonymous but
// must create an admin; afterwards caller must be an admin. Usernames are
// unique, so a taken name is reported before any role check.
func (s *Service) Register(ctx context.Context, req model.RegisterRequest, caller *model.Caller) (*model.User, error) {
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return nil, apperrors.InvalidInput("unknown role")
	}
	if req.Username == "" || req.Password == "" {
		return nil, apperrors.InvalidInput("username and password are required")
	}

	user := &model.User{Username: req.Username, Role: role}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.users.LockRegistration(ctx); err != nil {
			return err
		}

		if _, err := s.users.GetByUsername(ctx, req.Username); err == nil {
			return apperrors.Conflict("username already exists")
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		count, err := s.users.Count(ctx)
		if err != nil {
			return err
		}

		if count == 0 {
			if role != model.RoleAdmin {
				return apperrors.InvalidInput("the first user must have role admin")
			}
		} else if !caller.Is(model.RoleAdmin) {
			return apperrors.Forbidden("only an admin may register users")
		}

		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			return apperrors.Internal(err)
		}
		user.PasswordHash = hash

		return s.users.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Int64("user_id", user.ID).
		Str("role", string(user.Role)).
		Msg("User registered")
	return user, nil
}

func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.metrics.LoginAttempts.WithLabelValues("failure").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		s.metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtSvc.GenerateToken(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.metrics.LoginAttempts.WithLabelValues("success").Inc()
	return &model.TokenResponse{Token: token, Role: user.Role}, nil
}

// ResolveIdentity validates token and loads the user it names. The role is
// taken from storage, not from the token.
func (s *Service) ResolveIdentity(ctx context.Context, token string) (*model.Caller, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	return &model.Caller{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}
