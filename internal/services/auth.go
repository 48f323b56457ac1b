package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"field-review/backend/internal/models"
	"field-review/backend/internal/session"
	"field-review/backend/internal/verification"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidEmail = errors.New("invalid email address")

type LoginResult struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Session     session.Session `json:"session"`
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, sess session.Session) (*LoginResult, error)
	Verify(ctx context.Context, sess session.Session) (verification.Result, error)
	Logout(ctx context.Context, sess session.Session) (verification.Result, error)
	ChangePassword(ctx context.Context, sess session.Session, current, next string) error
	Register(ctx context.Context, req RegistrationRequest) (models.Identity, error)
	RequestPasswordReset(ctx context.Context, email string) error
	Authenticate(token string) (session.Session, error)
}

type AuthServiceImpl struct {
	sessions *session.Store
	tokens   TokenService
	gate     *verification.Gate
	archiver Archiver
	validate *validator.Validate
	logger   *log.Logger
}

func NewAuthService(sessions *session.Store, tokens TokenService, gate *verification.Gate, archiver Archiver, logger *log.Logger) *AuthServiceImpl {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &AuthServiceImpl{
		sessions: sessions,
		tokens:   tokens,
		gate:     gate,
		archiver: archiver,
		validate: validator.New(),
		logger:   logger,
	}
}

// Login starts a fresh unverified session and issues a token bound to it.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	sess, err := s.sessions.Login(ctx, email, password)
	if err != nil {
		s.logger.WithField("email", models.NormalizeEmail(email)).Info("login rejected")
		return nil, err
	}

	s.logger.WithField("email", sess.Identity.Email).Info("user logged in")
	return s.issue(sess)
}

func (s *AuthServiceImpl) Refresh(ctx context.Context, sess session.Session) (*LoginResult, error) {
	current, err := s.sessions.Lookup(sess.ID)
	if err != nil {
		return nil, err
	}
	return s.issue(current)
}

// Verify runs the identity check for sess. Only sess can become verified; a
// login that replaces it mid-scan gets its own unverified session.
func (s *AuthServiceImpl) Verify(ctx context.Context, sess session.Session) (verification.Result, error) {
	if _, err := s.sessions.Lookup(sess.ID); err != nil {
		return verification.Result{}, err
	}
	return s.gate.Verify(ctx, sess.ID)
}

// Logout requires a passing verification first. A failed or cancelled check
// leaves the session in place, and a session replaced during the check is
// not the one that gets ended.
func (s *AuthServiceImpl) Logout(ctx context.Context, sess session.Session) (verification.Result, error) {
	if _, err := s.sessions.Lookup(sess.ID); err != nil {
		return verification.Result{}, err
	}

	res, err := s.gate.Check(ctx)
	if err != nil {
		return res, err
	}

	if err := s.sessions.Logout(ctx, sess.ID); err != nil {
		return res, err
	}
	s.logger.WithField("email", sess.Identity.Email).Info("user logged out")
	return res, nil
}

func (s *AuthServiceImpl) ChangePassword(ctx context.Context, sess session.Session, current, next string) error {
	return s.sessions.ChangePassword(ctx, sess.ID, current, next)
}

type RegistrationRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6,max=72"`
	Name       string `json:"name" binding:"required,max=100"`
	EmployeeID string `json:"employee_id,omitempty" binding:"max=50"`
	Zone       string `json:"zone,omitempty" binding:"max=100"`
}

func (s *AuthServiceImpl) Register(ctx context.Context, req RegistrationRequest) (models.Identity, error) {
	identity, err := s.sessions.Register(models.Credential{
		Email:      strings.TrimSpace(req.Email),
		Password:   req.Password,
		Name:       strings.TrimSpace(req.Name),
		EmployeeID: strings.TrimSpace(req.EmployeeID),
		Zone:       strings.TrimSpace(req.Zone),
	})
	if err != nil {
		return models.Identity{}, err
	}

	s.logger.WithField("email", identity.Email).Info("user registered")
	return identity, nil
}

// RequestPasswordReset queues a notice for known addresses. Unknown addresses
// are accepted silently.
func (s *AuthServiceImpl) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return ErrInvalidEmail
	}

	if !s.sessions.Known(email) {
		s.logger.WithField("email", models.NormalizeEmail(email)).Debug("password reset for unknown address")
		return nil
	}

	s.archiver.RequestPasswordReset(ctx, models.NormalizeEmail(email))
	return nil
}

// Authenticate resolves a bearer token to the live session it was issued for.
func (s *AuthServiceImpl) Authenticate(token string) (session.Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return session.Session{}, err
	}

	id, err := claims.SessionUUID()
	if err != nil {
		return session.Session{}, err
	}
	return s.sessions.Lookup(id)
}

func (s *AuthServiceImpl) issue(sess session.Session) (*LoginResult, error) {
	token, expiresAt, err := s.tokens.Issue(sess)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Session:     sess,
	}, nil
}
