package verification

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type stubOracle struct {
	err error
}

func (s stubOracle) Verify(ctx context.Context) (Result, error) {
	if s.err != nil {
		return Result{}, s.err
	}
	return Result{Success: true}, nil
}

type flagVerifier struct {
	verified uuid.UUID
	err      error
}

func (f *flagVerifier) MarkVerified(sessionID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.verified = sessionID
	return nil
}

func quietLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestGate_SuccessMarksVerified(t *testing.T) {
	v := &flagVerifier{}
	gate := NewGate(stubOracle{}, v, quietLogger())
	id := uuid.Must(uuid.NewV4())

	res, err := gate.Verify(context.Background(), id)
	assert.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, id, v.verified)
}

func TestGate_FailureLeavesFlag(t *testing.T) {
	v := &flagVerifier{}
	gate := NewGate(stubOracle{err: ErrVerificationFailed}, v, quietLogger())

	_, err := gate.Verify(context.Background(), uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Equal(t, uuid.Nil, v.verified)
}

func TestGate_PropagatesSessionError(t *testing.T) {
	noSession := errors.New("no active session")
	gate := NewGate(stubOracle{}, &flagVerifier{err: noSession}, quietLogger())

	_, err := gate.Verify(context.Background(), uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, noSession)
}

func TestGate_CheckDoesNotMark(t *testing.T) {
	v := &flagVerifier{}
	gate := NewGate(stubOracle{}, v, quietLogger())

	_, err := gate.Check(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, uuid.Nil, v.verified)
}
