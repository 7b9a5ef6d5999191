package backendtest

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	errUserExists         = errors.New("user already exists")
	errInvalidCredentials = errors.New("invalid credentials")
)

type account struct {
	username     string
	passwordHash []byte
	role         string
}

// accounts is the fake Auth service's user table and token issuer.
type accounts struct {
	mu       sync.RWMutex
	users    map[string]account
	secret   []byte
	tokenTTL time.Duration
	cost     int
	now      func() time.Time
}

func newAccounts(secret string, tokenTTL time.Duration) *accounts {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &accounts{
		users:    make(map[string]account),
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		cost:     bcrypt.MinCost,
		now:      time.Now,
	}
}

func (a *accounts) register(username, password, role string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.users[username]; ok {
		return errUserExists
	}
	a.users[username] = account{username: username, passwordHash: hash, role: role}
	return nil
}

func (a *accounts) login(username, password string) (string, error) {
	a.mu.RLock()
	acc, ok := a.users[username]
	a.mu.RUnlock()
	if !ok {
		return "", errInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)) != nil {
		return "", errInvalidCredentials
	}
	return a.issue(acc)
}

func (a *accounts) issue(acc account) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"username": acc.username,
		"role":     acc.role,
		"iat":      now.Unix(),
		"exp":      now.Add(a.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
