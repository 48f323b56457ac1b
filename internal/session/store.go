// Package session owns the authenticated identity and its verification state.
//
// Verification is a property of the session itself: it starts false on every
// login, can only be set while a session exists, and disappears with it.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"field-review/backend/internal/models"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"
)

var ErrNoSession = errors.New("no active session")

type Session struct {
	ID         uuid.UUID       `json:"id"`
	Identity   models.Identity `json:"identity"`
	StartedAt  time.Time       `json:"started_at"`
	Verified   bool            `json:"verified"`
	VerifiedAt *time.Time      `json:"verified_at,omitempty"`
}

type Store struct {
	mu sync.RWMutex
	// writeMu orders session replacement together with its slot write, so
	// the slot always matches the last login or logout.
	writeMu sync.Mutex
	creds   *CredentialStore
	slot    Slot
	logger  *log.Logger
	now     func() time.Time
	current *Session
}

func NewStore(creds *CredentialStore, slot Slot, logger *log.Logger) *Store {
	if slot == nil {
		slot = NewMemorySlot()
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{
		creds:  creds,
		slot:   slot,
		logger: logger,
		now:    time.Now,
	}
}

// Restore reads the persisted slot once at startup. A stored identity that no
// longer matches a credential is cleared. Restored sessions are unverified.
func (s *Store) Restore(ctx context.Context) error {
	identity, err := s.slot.Load(ctx)
	if err != nil {
		return err
	}
	if identity == nil {
		return nil
	}

	cred, ok := s.creds.Lookup(identity.Email)
	if !ok {
		s.logger.WithField("email", identity.Email).Warn("persisted session has no matching credential, clearing")
		return s.slot.Clear(ctx)
	}

	s.mu.Lock()
	s.current = s.newSession(cred.Identity())
	s.mu.Unlock()

	s.logger.WithField("email", cred.Email).Info("restored persisted session")
	return nil
}

// Login replaces the current session. The new session is never verified.
func (s *Store) Login(ctx context.Context, email, password string) (Session, error) {
	cred, err := s.creds.Authenticate(email, password)
	if err != nil {
		return Session{}, err
	}

	sess := s.newSession(cred.Identity())

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.persist(ctx, sess.Identity)
	return *sess, nil
}

// Logout ends the session with the given id. A session that has already
// been replaced is left alone and ErrNoSession is returned.
func (s *Store) Logout(ctx context.Context, id uuid.UUID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.current == nil || s.current.ID != id {
		s.mu.Unlock()
		return ErrNoSession
	}
	s.current = nil
	s.mu.Unlock()

	if err := s.slot.Clear(ctx); err != nil {
		s.logger.WithError(err).Warn("failed to clear persisted session")
	}
	return nil
}

// MarkVerified records a successful verification on the session with the
// given id. It fails with ErrNoSession once that session has been replaced.
func (s *Store) MarkVerified(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.ID != id {
		return ErrNoSession
	}
	at := s.now()
	s.current.Verified = true
	s.current.VerifiedAt = &at
	return nil
}

func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Lookup returns the current session only if it has the given id, so tokens
// issued for an ended session stop working.
func (s *Store) Lookup(id uuid.UUID) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil || s.current.ID != id {
		return Session{}, ErrNoSession
	}
	return *s.current, nil
}

func (s *Store) IsVerified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && s.current.Verified
}

// ChangePassword updates the owned credential copy for the user of the
// session with the given id.
func (s *Store) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	sess, err := s.Lookup(id)
	if err != nil {
		return err
	}
	if err := s.creds.ChangePassword(sess.Identity.Email, current, next); err != nil {
		return err
	}
	s.persist(ctx, sess.Identity)
	return nil
}

// Register adds a credential. It does not log the new user in.
func (s *Store) Register(cred models.Credential) (models.Identity, error) {
	if err := s.creds.Register(cred); err != nil {
		return models.Identity{}, err
	}
	return cred.Identity(), nil
}

// Known reports whether email belongs to a registered credential.
func (s *Store) Known(email string) bool {
	_, ok := s.creds.Lookup(email)
	return ok
}

func (s *Store) newSession(identity models.Identity) *Session {
	return &Session{
		ID:        uuid.Must(uuid.NewV4()),
		Identity:  identity,
		StartedAt: s.now(),
	}
}

// persist writes the slot. Slot failures are logged, not returned: the slot
// only matters for the next process start.
func (s *Store) persist(ctx context.Context, identity models.Identity) {
	if err := s.slot.Save(ctx, identity); err != nil {
		s.logger.WithError(err).WithField("email", identity.Email).Warn("failed to persist session")
	}
}
