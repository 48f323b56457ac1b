package verification

import (
	"context"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"
)

// Verifier is the part of the session store the gate updates. MarkVerified
// must refuse a session that is no longer current.
type Verifier interface {
	MarkVerified(sessionID uuid.UUID) error
}

// Gate runs the oracle and, on success, marks the requesting session
// verified. A failed or cancelled check leaves the session untouched.
type Gate struct {
	oracle   Oracle
	sessions Verifier
	logger   *log.Logger
}

func NewGate(oracle Oracle, sessions Verifier, logger *log.Logger) *Gate {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Gate{oracle: oracle, sessions: sessions, logger: logger}
}

// Check runs the oracle without touching the session. Used by the logout
// gate, where the session is about to end anyway.
func (g *Gate) Check(ctx context.Context) (Result, error) {
	res, err := g.oracle.Verify(ctx)
	if err != nil {
		g.logger.WithError(err).WithField("duration", res.Duration).Info("verification did not pass")
		return res, err
	}
	return res, nil
}

// Verify runs the oracle and records success on the session that asked for
// the check. If that session ended during the scan the result is discarded.
func (g *Gate) Verify(ctx context.Context, sessionID uuid.UUID) (Result, error) {
	res, err := g.Check(ctx)
	if err != nil {
		return res, err
	}
	if err := g.sessions.MarkVerified(sessionID); err != nil {
		g.logger.WithError(err).WithField("session_id", sessionID).Info("verification outlived its session")
		return res, err
	}
	g.logger.WithFields(log.Fields{"duration": res.Duration, "session_id": sessionID}).Info("session verified")
	return res, nil
}
