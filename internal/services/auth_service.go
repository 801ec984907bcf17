package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/taskhall/engine/internal/models"
	"github.com/taskhall/engine/internal/repository"
	appErr "github.com/taskhall/engine/pkg/errors"
	"github.com/taskhall/engine/pkg/logger"
	"github.com/taskhall/engine/pkg/validation"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Session is an issued bearer token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Nickname string `json:"nickname" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// AuthService issues and checks session tokens. Every authenticated operation
// takes the caller's identity from Resolve, never from a request body.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*Session, *models.User, error)
	Authenticate(ctx context.Context, email, password string) (*Session, *models.User, error)
	Resolve(ctx context.Context, token string) (uuid.UUID, error)
	Revoke(ctx context.Context, token string) error
}

type AuthOptions struct {
	Secret      []byte
	TokenTTL    time.Duration
	SignupBonus int64
}

type authService struct {
	db       *gorm.DB
	userRepo repository.UserRepository
	ledger   LedgerService
	denylist TokenDenylist
	opts     AuthOptions
	now      Clock
}

func NewAuthService(db *gorm.DB, userRepo repository.UserRepository, ledger LedgerService, denylist TokenDenylist, opts AuthOptions) AuthService {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	return &authService{
		db:       db,
		userRepo: userRepo,
		ledger:   ledger,
		denylist: denylist,
		opts:     opts,
		now:      time.Now,
	}
}

var _ AuthService = (*authService)(nil)

// Register creates the user and credits the signup bonus through the ledger
// in the same transaction.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*Session, *models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Nickname = strings.TrimSpace(in.Nickname)
	if err := validation.Struct(in); err != nil {
		return nil, nil, err
	}

	ph, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, appErr.Wrap(err, appErr.CodeInternal, "hash password failed")
	}

	user := &models.User{
		Email:        in.Email,
		Nickname:     in.Nickname,
		PasswordHash: string(ph),
		CreditScore:  models.DefaultCreditScore,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.WithTx(tx).Create(ctx, user); err != nil {
			if appErr.IsCode(err, appErr.CodeAlreadyExists) {
				return appErr.New(appErr.CodeAlreadyExists, "email already registered")
			}
			return err
		}
		if s.opts.SignupBonus <= 0 {
			return nil
		}
		row, err := s.ledger.ApplyTx(ctx, tx, Entry{
			UserID:      user.ID,
			Delta:       s.opts.SignupBonus,
			Reason:      models.ReasonSignupBonus,
			RelatedType: models.RelatedUser,
			RelatedID:   user.ID.String(),
		})
		if err != nil {
			return err
		}
		user.Points = row.BalanceAfter
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	session, err := s.issue(user.ID)
	if err != nil {
		return nil, nil, err
	}
	logger.L().Info("user registered", zap.String("user_id", user.ID.String()))
	return session, user, nil
}

func (s *authService) Authenticate(ctx context.Context, email, password string) (*Session, *models.User, error) {
	invalid := appErr.New(appErr.CodeInvalidCredential, "invalid email or password")

	var user models.User
	if err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)), &user); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, nil, invalid
		}
		return nil, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, invalid
	}

	session, err := s.issue(user.ID)
	if err != nil {
		return nil, nil, err
	}
	logger.L().Info("user logged in", zap.String("user_id", user.ID.String()))
	return session, &user, nil
}

func (s *authService) issue(userID uuid.UUID) (*Session, error) {
	now := s.now()
	exp := now.Add(s.opts.TokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString(s.opts.Secret)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "sign token failed")
	}
	return &Session{Token: signed, ExpiresAt: exp}, nil
}

func (s *authService) parse(token string) (*jwt.RegisteredClaims, error) {
	if token == "" {
		return nil, appErr.New(appErr.CodeUnauthenticated, "missing token")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.opts.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErr.New(appErr.CodeUnauthenticated, "token expired")
		}
		return nil, appErr.New(appErr.CodeUnauthenticated, "invalid token")
	}
	if claims.ID == "" {
		return nil, appErr.New(appErr.CodeUnauthenticated, "invalid token")
	}
	return claims, nil
}

func (s *authService) Resolve(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := s.parse(token)
	if err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, appErr.New(appErr.CodeUnauthenticated, "invalid token subject")
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return uuid.Nil, appErr.Wrap(err, appErr.CodeUnavailable, "session store unavailable")
	}
	if revoked {
		return uuid.Nil, appErr.New(appErr.CodeUnauthenticated, "token revoked")
	}
	return userID, nil
}

func (s *authService) Revoke(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "session store unavailable")
	}
	logger.L().Info("session revoked", zap.String("user_id", claims.Subject))
	return nil
}
