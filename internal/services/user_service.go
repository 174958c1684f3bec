package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"moments/internal/db"
	"moments/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
)

const (
	maxUsernameLength = 150
	minPasswordLength = 8
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// reservedUsernames collide with top level routes
var reservedUsernames = map[string]bool{
	"albums": true, "rest": true, "ws": true, "media": true, "health": true,
	"login": true, "logout": true, "sign-up": true,
}

type UserService struct {
	store    db.Store
	secret   []byte
	ttl      time.Duration
	HashCost int
}

func NewUserService(store db.Store, secret string, ttl time.Duration) *UserService {
	return &UserService{
		store:    store,
		secret:   []byte(secret),
		ttl:      ttl,
		HashCost: bcrypt.DefaultCost,
	}
}

// Register validates the sign-up form and creates the user. Field errors are
// returned as a value, a non-nil error means the store failed.
func (s *UserService) Register(ctx context.Context, username, password, confirm string) (*models.User, models.FieldErrors, error) {
	errs := models.FieldErrors{}
	username = strings.TrimSpace(username)

	switch {
	case username == "":
		errs.Add("username", "This field is required.")
	case utf8.RuneCountInString(username) > maxUsernameLength:
		errs.Add("username", "Ensure this value has at most 150 characters.")
	case !usernamePattern.MatchString(username):
		errs.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	case reservedUsernames[strings.ToLower(username)]:
		errs.Add("username", "This username is reserved.")
	}

	if password == "" {
		errs.Add("password1", "This field is required.")
	} else if utf8.RuneCountInString(password) < minPasswordLength {
		errs.Add("password1", "This password is too short. It must contain at least 8 characters.")
	}
	if password != confirm {
		errs.Add("password2", "The two password fields didn't match.")
	}
	if errs.Any() {
		return nil, errs, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.HashCost)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.store.CreateUser(ctx, username, string(hash))
	if err != nil {
		if errors.Is(err, db.ErrUserExists) {
			errs.Add("username", "A user with that username already exists.")
			return nil, errs, nil
		}
		return nil, nil, err
	}
	return user, nil, nil
}

func (s *UserService) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// SessionTTL is how long an issued session stays valid
func (s *UserService) SessionTTL() time.Duration {
	return s.ttl
}

// IssueSession signs a session token for the user
func (s *UserService) IssueSession(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"jti":      uuid.New().String(),
		"exp":      time.Now().Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseSession validates a session token and returns the requester it names
func (s *UserService) ParseSession(tokenString string) (*models.Requester, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}

	// claims["user_id"] comes as float64 from JSON
	uid, ok := claims["user_id"].(float64)
	if !ok {
		return nil, ErrInvalidSession
	}
	username, ok := claims["username"].(string)
	if !ok || username == "" {
		return nil, ErrInvalidSession
	}

	return &models.Requester{ID: int64(uid), Username: username}, nil
}

// SafeRedirect keeps a next= target only when it is a local path.
func SafeRedirect(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
