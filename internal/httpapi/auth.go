package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"martpos/backend/internal/domain"
)

var validate = validator.New()

// UserStore is the slice of the repository the auth layer needs.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, passwordHash string) error
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error
}

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	users    UserStore
}

type posCustomClaims struct {
	jwtlib.RegisteredClaims
	UserID int64  `json:"uid"`
	Role   string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, users UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
	}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || strings.TrimSpace(req.Password) == "" {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	user, err := a.users.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !user.Active {
		return domain.LoginResponse{}, errors.New("account is inactive")
	}
	if !a.verifyAndUpgrade(ctx, user, req.Password) {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(user, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	if err := a.users.TouchLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		log.Printf("[auth] WARN: failed to record last login for %s: %v", username, err)
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// verifyAndUpgrade checks the supplied password and, when the stored value is
// a legacy plain-text password, rewrites it as a bcrypt hash on first use.
func (a *AuthManager) verifyAndUpgrade(ctx context.Context, user *domain.UserAccount, password string) bool {
	if isPasswordHash(user.Password) {
		return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
	}
	if user.Password == "" || user.Password != password {
		return false
	}
	if hashed, err := hashPassword(password); err == nil {
		if err := a.users.UpdateUserPassword(ctx, user.Username, hashed); err != nil {
			log.Printf("[auth] WARN: failed to upgrade password hash for %s: %v", user.Username, err)
		}
	}
	return true
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{UserID: claims.UserID, Username: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(user *domain.UserAccount, expiresAt time.Time) (string, error) {
	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "martpos",
			ID:        strconv.FormatInt(user.ID, 10),
		},
		UserID: user.ID,
		Role:   user.Role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserView, error) {
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if err := validate.Struct(req); err != nil {
		return domain.UserView{}, fmt.Errorf("invalid user request: %v", err)
	}
	if strings.ContainsAny(req.Username, " \t\r\n") {
		return domain.UserView{}, errors.New("username must not contain spaces")
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.UserView{}, errors.New("failed to hash password")
	}

	created, err := a.users.CreateUser(ctx, domain.UserAccount{
		Username:  req.Username,
		Password:  passwordHash,
		Role:      req.Role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.UserView{}, err
	}
	return userView(*created), nil
}

func (a *AuthManager) ListUsers(ctx context.Context) ([]domain.UserView, error) {
	accounts, err := a.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]domain.UserView, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, userView(account))
	}
	return views, nil
}

func userView(account domain.UserAccount) domain.UserView {
	return domain.UserView{
		ID:        account.ID,
		Username:  account.Username,
		Role:      account.Role,
		Active:    account.Active,
		LastLogin: account.LastLogin,
		CreatedAt: account.CreatedAt,
	}
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
