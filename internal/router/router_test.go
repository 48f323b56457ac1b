package router

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"field-review/backend/internal/attendance"
	"field-review/backend/internal/catalog"
	"field-review/backend/internal/ledger"
	"field-review/backend/internal/middleware"
	"field-review/backend/internal/models"
	"field-review/backend/internal/monitoring"
	"field-review/backend/internal/repositories"
	"field-review/backend/internal/services"
	"field-review/backend/internal/session"
	"field-review/backend/internal/verification"
	"field-review/backend/internal/worker"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type switchOracle struct {
	mu   sync.Mutex
	fail bool
}

func (o *switchOracle) Verify(ctx context.Context) (verification.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return verification.Result{FinishedAt: time.Now()}, verification.ErrVerificationFailed
	}
	return verification.Result{Success: true, FinishedAt: time.Now()}, nil
}

func (o *switchOracle) set(fail bool) {
	o.mu.Lock()
	o.fail = fail
	o.mu.Unlock()
}

type RouterTestSuite struct {
	suite.Suite
	db     *gorm.DB
	oracle *switchOracle
	engine *gin.Engine
}

func (s *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	quiet := log.New()
	quiet.SetOutput(io.Discard)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(repositories.Migrate(db))
	s.db = db

	tasks, err := catalog.LoadTasks("")
	s.Require().NoError(err)
	users, err := catalog.LoadCredentials("")
	s.Require().NoError(err)
	creds, err := session.NewCredentialStore(users, bcrypt.MinCost)
	s.Require().NoError(err)

	store := session.NewStore(creds, session.NewMemorySlot(), quiet)
	s.oracle = &switchOracle{}
	gate := verification.NewGate(s.oracle, store, quiet)

	reviews := repositories.NewReviewRepository(db)
	records := repositories.NewAttendanceRepository(db)
	archiver := services.NewQueueArchiver(nil, &worker.ArchiveHandlers{
		Reviews:    reviews,
		Attendance: records,
		Notifier:   worker.LogNotifier{Logger: quiet},
	}, quiet)

	monitor := monitoring.NewMonitor()
	monitor.RegisterHealthCheck("database", func(ctx context.Context) error { return sqlDB.PingContext(ctx) })

	s.engine = New(Dependencies{
		Auth:       services.NewAuthService(store, services.NewTokenService("router-test", "field-review", time.Hour), gate, archiver, quiet),
		Tasks:      services.NewTaskService(ledger.New(tasks), reviews, archiver, quiet),
		Attendance: services.NewAttendanceService(attendance.NewRegister(attendance.WithLocation(time.UTC)), records, archiver, quiet),
		Monitor:    monitor,
		Limiter:    middleware.NewRateLimiter(600, 50, time.Minute),
		Logger:     quiet,
	})
}

func (s *RouterTestSuite) TearDownTest() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reader io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		_ = sonic.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (s *RouterTestSuite) login(email, password string) string {
	w, body := s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": password})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	token, _ := body["access_token"].(string)
	s.Require().NotEmpty(token)
	return token
}

func (s *RouterTestSuite) verifiedToken() string {
	token := s.login("supervisor@sswmb.example.org", "field123")
	w, _ := s.do(http.MethodPost, "/api/v1/verification", token, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	return token
}

func (s *RouterTestSuite) TestLogin_WrongPassword() {
	w, body := s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "supervisor@sswmb.example.org", "password": "FIELD123"})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("invalid_credentials", body["error"])
}

func (s *RouterTestSuite) TestLogin_MalformedBody() {
	w, body := s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "supervisor@sswmb.example.org"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("invalid_request", body["error"])
}

func (s *RouterTestSuite) TestTasksRequireVerification() {
	token := s.login("supervisor@sswmb.example.org", "field123")

	w, body := s.do(http.MethodGet, "/api/v1/tasks/pending", token, nil)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("verification_required", body["error"])

	w, body = s.do(http.MethodGet, "/api/v1/me", token, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(false, body["verified"])

	s.oracle.set(true)
	w, body = s.do(http.MethodPost, "/api/v1/verification", token, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("verification_failed", body["error"])

	s.oracle.set(false)
	w, _ = s.do(http.MethodPost, "/api/v1/verification", token, nil)
	s.Equal(http.StatusOK, w.Code)

	w, body = s.do(http.MethodGet, "/api/v1/tasks/pending", token, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(float64(10), body["count"])
}

func (s *RouterTestSuite) TestMissingToken() {
	w, body := s.do(http.MethodGet, "/api/v1/dashboard", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("missing_token", body["error"])
}

func (s *RouterTestSuite) TestSecondLoginEndsFirstSession() {
	first := s.verifiedToken()
	s.login("inspector@sswmb.example.org", "inspect456")

	w, body := s.do(http.MethodGet, "/api/v1/dashboard", first, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("session_ended", body["error"])
}

func (s *RouterTestSuite) TestReviewFlow() {
	token := s.verifiedToken()

	w, body := s.do(http.MethodPost, "/api/v1/tasks/1/review", token, gin.H{"action": "agree"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("rating", body["field"])

	w, body = s.do(http.MethodPost, "/api/v1/tasks/1/review", token, gin.H{"action": "agree", "rating": 80, "comment": " clean "})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("Agreed - 80% rating - clean", body["comment"])
	s.Equal(true, body["complete"])

	w, body = s.do(http.MethodPost, "/api/v1/tasks/1/review", token, gin.H{"action": "agree", "rating": 80})
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("task_not_found", body["error"])

	w, body = s.do(http.MethodPost, "/api/v1/tasks/3/review", token, gin.H{"action": "disagree", "comment": "bins overflowing"})
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("Disagreed - bins overflowing", body["comment"])

	w, body = s.do(http.MethodGet, "/api/v1/tasks/reviewed?category=Door%20To%20Door", token, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(float64(1), body["count"])

	w, body = s.do(http.MethodGet, "/api/v1/dashboard", token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	overall := body["overall"].(map[string]interface{})
	s.Equal(float64(10), overall["total"])
	s.Equal(float64(2), overall["reviewed"])

	w, body = s.do(http.MethodGet, "/api/v1/reviews/history", token, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(float64(2), body["count"])

	w, body = s.do(http.MethodGet, "/api/v1/tasks/999", token, nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("task_not_found", body["error"])
}

func (s *RouterTestSuite) TestAttendance() {
	token := s.verifiedToken()

	w, body := s.do(http.MethodGet, "/api/v1/attendance/today", token, nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("attendance_not_marked", body["error"])

	w, body = s.do(http.MethodPost, "/api/v1/attendance", token, gin.H{"status": "absent"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("invalid_status", body["error"])

	w, body = s.do(http.MethodPost, "/api/v1/attendance", token, gin.H{"status": "present"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal(string(models.AttendancePresent), body["status"])

	w, body = s.do(http.MethodPost, "/api/v1/attendance", token, gin.H{"status": "leave"})
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("attendance_already_marked", body["error"])

	w, body = s.do(http.MethodGet, "/api/v1/attendance/history", token, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(float64(1), body["count"])
}

func (s *RouterTestSuite) TestLogoutRequiresVerification() {
	token := s.verifiedToken()

	s.oracle.set(true)
	w, _ := s.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/me", token, nil)
	s.Equal(http.StatusOK, w.Code)

	s.oracle.set(false)
	w, _ = s.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	s.Equal(http.StatusOK, w.Code)

	w, body := s.do(http.MethodGet, "/api/v1/me", token, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("session_ended", body["error"])
}

func (s *RouterTestSuite) TestRegisterAndForgotPassword() {
	w, body := s.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "new@sswmb.example.org", "password": "secret1", "name": "New Worker",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.NotNil(body["user"])

	w, body = s.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "NEW@sswmb.example.org", "password": "secret2", "name": "Duplicate",
	})
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("email_taken", body["error"])

	s.login("new@sswmb.example.org", "secret1")

	w, _ = s.do(http.MethodPost, "/api/v1/auth/password/forgot", "", gin.H{"email": "nobody@sswmb.example.org"})
	s.Equal(http.StatusAccepted, w.Code)

	w, body = s.do(http.MethodPost, "/api/v1/auth/password/forgot", "", gin.H{"email": "not-an-email"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("invalid_email", body["error"])
}

func (s *RouterTestSuite) TestRegister_OverlongPassword() {
	w, body := s.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "long@sswmb.example.org", "password": strings.Repeat("a", 73), "name": "Long",
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("invalid_request", body["error"])

	// 40 characters but 80 bytes once encoded.
	w, body = s.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "long@sswmb.example.org", "password": strings.Repeat("é", 40), "name": "Long",
	})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("password_too_long", body["error"])

	token := s.login("inspector@sswmb.example.org", "inspect456")
	w, body = s.do(http.MethodPost, "/api/v1/auth/password", token, gin.H{
		"current_password": "inspect456", "new_password": strings.Repeat("é", 40),
	})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("password_too_long", body["error"])
}

func (s *RouterTestSuite) TestChangePasswordAndRefresh() {
	token := s.login("inspector@sswmb.example.org", "inspect456")

	w, body := s.do(http.MethodPost, "/api/v1/auth/password", token, gin.H{"current_password": "wrong", "new_password": "newpass1"})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("incorrect_password", body["error"])

	w, _ = s.do(http.MethodPost, "/api/v1/auth/password", token, gin.H{"current_password": "inspect456", "new_password": "newpass1"})
	s.Equal(http.StatusOK, w.Code)

	w, body = s.do(http.MethodPost, "/api/v1/auth/refresh", token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.NotEmpty(body["access_token"])
}

func (s *RouterTestSuite) TestMonitoringRoutes() {
	for _, path := range []string{"/health", "/ready", "/live", "/metrics"} {
		w, _ := s.do(http.MethodGet, path, "", nil)
		s.Equal(http.StatusOK, w.Code, path)
	}
}

func (s *RouterTestSuite) TestCORSPreflight() {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	s.Equal(http.StatusNoContent, w.Code)
	s.Equal("*", w.Header().Get("Access-Control-Allow-Origin"))
}
