package session

import (
	"errors"
	"fmt"
	"sync"

	"field-review/backend/internal/models"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 6

	// bcrypt only hashes the first 72 bytes and rejects longer input.
	MaxPasswordLength = 72
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrIncorrectPassword  = errors.New("current password is incorrect")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong    = fmt.Errorf("password must be at most %d bytes", MaxPasswordLength)
)

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

type credentialEntry struct {
	profile models.Credential
	hash    []byte
}

// CredentialStore is an owned, mutable copy of the credential source.
// Passwords are kept only as bcrypt hashes; the load-time records are never
// referenced after construction.
type CredentialStore struct {
	mu      sync.RWMutex
	entries map[string]*credentialEntry
	cost    int
}

func NewCredentialStore(creds []models.Credential, cost int) (*CredentialStore, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	s := &CredentialStore{
		entries: make(map[string]*credentialEntry, len(creds)),
		cost:    cost,
	}
	for _, cred := range creds {
		if err := s.put(cred); err != nil {
			return nil, fmt.Errorf("credential %s: %w", cred.Email, err)
		}
	}
	return s, nil
}

// Authenticate matches the email case-insensitively and the password exactly.
func (s *CredentialStore) Authenticate(email, password string) (models.Credential, error) {
	s.mu.RLock()
	entry, ok := s.entries[models.NormalizeEmail(email)]
	s.mu.RUnlock()

	if !ok || bcrypt.CompareHashAndPassword(entry.hash, []byte(password)) != nil {
		return models.Credential{}, ErrInvalidCredentials
	}
	return entry.profile, nil
}

// Lookup returns the stored profile for email without checking a password.
func (s *CredentialStore) Lookup(email string) (models.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[models.NormalizeEmail(email)]
	if !ok {
		return models.Credential{}, false
	}
	return entry.profile, true
}

func (s *CredentialStore) ChangePassword(email, current, next string) error {
	if err := checkPassword(next); err != nil {
		return err
	}

	key := models.NormalizeEmail(email)

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(entry.hash, []byte(current)) != nil {
		return ErrIncorrectPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &credentialEntry{profile: entry.profile, hash: hash}
	return nil
}

// Register adds a new credential.
func (s *CredentialStore) Register(cred models.Credential) error {
	if err := checkPassword(cred.Password); err != nil {
		return err
	}
	if _, exists := s.Lookup(cred.Email); exists {
		return ErrEmailTaken
	}
	return s.put(cred)
}

func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *CredentialStore) put(cred models.Credential) error {
	if len(cred.Password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cred.Password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	profile := cred
	profile.Password = ""

	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.NormalizeEmail(cred.Email)
	if _, exists := s.entries[key]; exists {
		return ErrEmailTaken
	}
	s.entries[key] = &credentialEntry{profile: profile, hash: hash}
	return nil
}
