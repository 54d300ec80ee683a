package auth

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AdminSubject is the subject of every admin token; the back office has a
// single shared account.
const AdminSubject = "admin"

var ErrInvalidCredentials = errors.New("invalid credentials")

type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	passwordHash []byte
	issuer       *TokenIssuer
}

func NewService(passwordHash string, issuer *TokenIssuer) *Service {
	return &Service{passwordHash: []byte(passwordHash), issuer: issuer}
}

// Login checks password against the configured bcrypt hash.
func (s *Service) Login(password string) (Token, error) {
	if len(s.passwordHash) == 0 || password == "" {
		return Token{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return Token{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.issuer.Issue(AdminSubject, RoleAdmin)
	if err != nil {
		return Token{}, err
	}
	return Token{Token: token, ExpiresAt: expiresAt}, nil
}
