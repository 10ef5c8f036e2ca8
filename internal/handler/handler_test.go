package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/mtlprog/taskpulse/internal/analytics"
	"github.com/mtlprog/taskpulse/internal/clock"
	"github.com/mtlprog/taskpulse/internal/config"
	"github.com/mtlprog/taskpulse/internal/domain"
	"github.com/mtlprog/taskpulse/internal/handler"
	"github.com/mtlprog/taskpulse/internal/handler/dto"
	"github.com/mtlprog/taskpulse/internal/live"
	"github.com/mtlprog/taskpulse/internal/notify"
	"github.com/mtlprog/taskpulse/internal/repository"
	"github.com/mtlprog/taskpulse/internal/scheduler"
)

var now = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type busyChecker struct{}

func (busyChecker) TriggerManualCheck(context.Context) (scheduler.RunReport, error) {
	return scheduler.RunReport{}, domain.ErrRunInProgress
}

func (busyChecker) IsRunning() bool { return true }

type HandlerTestSuite struct {
	suite.Suite
	store  *repository.MemoryStore
	hub    *live.Hub
	pinger *stubPinger
	deps   handler.Deps
	server *httptest.Server

	// Test fixtures
	userID string
	taskID string
}

func (s *HandlerTestSuite) SetupTest() {
	s.store = repository.NewMemoryStore(nil)
	s.hub = live.NewHub()
	s.pinger = &stubPinger{}

	user := s.store.PutUser(domain.User{
		ID:   "00000000-0000-0000-0000-000000000011",
		Name: "Ada",
	})
	s.userID = user.ID

	due := now.Add(23 * time.Hour)
	task := s.store.PutTask(domain.Task{
		Title:          "Board deck",
		GroupID:        "00000000-0000-0000-0000-000000000001",
		Status:         domain.TaskStatusInProgress,
		DueDate:        &due,
		AssignedUserID: &s.userID,
	})
	s.taskID = task.ID

	sched := scheduler.New(
		config.Scheduler{NominalEstimate: config.DefaultNominalEstimate},
		s.store, s.store, s.store, s.hub, clock.NewFake(now), nil,
	)

	s.deps = handler.Deps{
		DB:            s.pinger,
		Checker:       sched,
		Users:         s.store,
		Tasks:         s.store.Tasks(),
		Profiles:      analytics.NewEstimator(s.store, s.store),
		Notifications: s.store,
		Emitter:       notify.NewEmitter(s.store, s.hub),
		Live:          s.hub,
	}
	s.server = s.newServer(s.deps)
}

func (s *HandlerTestSuite) TearDownTest() {
	s.hub.Close()
	s.server.Close()
}

func (s *HandlerTestSuite) newServer(deps handler.Deps) *httptest.Server {
	mux := http.NewServeMux()
	handler.New(deps).RegisterRoutes(mux)
	return httptest.NewServer(mux)
}

func (s *HandlerTestSuite) do(method, path string, body any) *http.Response {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *HandlerTestSuite) decode(resp *http.Response, v any) {
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(v))
}

func (s *HandlerTestSuite) assertError(resp *http.Response, status int, code string) {
	s.Equal(status, resp.StatusCode)
	var errResp dto.ErrorResponse
	s.decode(resp, &errResp)
	s.Equal(code, errResp.Error.Code)
}

func (s *HandlerTestSuite) TestHealthz() {
	resp := s.do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	s.pinger.err = errors.New("down")
	resp = s.do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
}

func (s *HandlerTestSuite) TestTriggerCheck() {
	resp := s.do(http.MethodPost, "/api/v1/notifications/check", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var report dto.CheckResponse
	s.decode(resp, &report)
	s.Equal(1, report.TasksScanned)
	s.Equal(1, report.AlertsEmitted)
	s.NotEmpty(resp.Header.Get("X-Request-ID"))

	resp = s.do(http.MethodPost, "/api/v1/notifications/check", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.decode(resp, &report)
	s.Equal(0, report.AlertsEmitted)
	s.Equal(1, report.AlreadySent)
}

func (s *HandlerTestSuite) TestTriggerCheck_RunInProgress() {
	deps := s.deps
	deps.Checker = busyChecker{}
	srv := s.newServer(deps)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/notifications/check", "application/json", nil)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.assertError(resp, http.StatusConflict, "RUN_IN_PROGRESS")

	resp2, err := http.Get(srv.URL + "/api/v1/scheduler/status")
	s.Require().NoError(err)
	defer resp2.Body.Close()
	var status dto.SchedulerStatusResponse
	s.decode(resp2, &status)
	s.True(status.Running)
}

func (s *HandlerTestSuite) TestGetProfile() {
	resp := s.do(http.MethodGet, "/api/v1/users/"+s.userID+"/profile", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var profile dto.ProfileResponse
	s.decode(resp, &profile)
	s.Equal(s.userID, profile.UserID)
	s.Equal("Ada", profile.Name)
	s.Equal(domain.DefaultProfile, profile.Profile)
}

func (s *HandlerTestSuite) TestGetProfile_Errors() {
	s.assertError(s.do(http.MethodGet, "/api/v1/users/not-a-uuid/profile", nil), http.StatusBadRequest, "INVALID_REQUEST")
	s.assertError(
		s.do(http.MethodGet, "/api/v1/users/00000000-0000-0000-0000-000000000099/profile", nil),
		http.StatusNotFound, "USER_NOT_FOUND",
	)
}

func (s *HandlerTestSuite) TestListNotifications() {
	s.do(http.MethodPost, "/api/v1/notifications/check", nil)

	resp := s.do(http.MethodGet, "/api/v1/users/"+s.userID+"/notifications?limit=10", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var list dto.NotificationsListResponse
	s.decode(resp, &list)
	s.Equal(10, list.Limit)
	s.Require().Len(list.Notifications, 1)

	n := list.Notifications[0]
	s.Equal("24-Hour Deadline Alert", n.Title)
	s.Equal(domain.CategoryDeadlineApproaching, n.Category)
	s.Require().NotNil(n.AlertType)
	s.Equal(domain.AlertDeadlineCritical, *n.AlertType)
	s.Require().NotNil(n.TaskID)
	s.Equal(s.taskID, *n.TaskID)

	s.assertError(
		s.do(http.MethodGet, "/api/v1/users/"+s.userID+"/notifications?limit=-1", nil),
		http.StatusBadRequest, "VALIDATION_ERROR",
	)
}

func (s *HandlerTestSuite) TestCreateNotification() {
	resp := s.do(http.MethodPost, "/api/v1/notifications", dto.CreateNotificationRequest{
		UserID:  s.userID,
		Type:    string(domain.CategoryTaskAssigned),
		Title:   "New assignment",
		Message: "You were assigned to Board deck",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var created notify.Payload
	s.decode(resp, &created)
	s.NotEmpty(created.ID)
	s.Nil(created.AlertType)
	s.Len(s.store.Notifications(), 1)
}

func (s *HandlerTestSuite) TestCreateNotification_ForProject() {
	resp := s.do(http.MethodPost, "/api/v1/notifications", dto.CreateNotificationRequest{
		UserID:    s.userID,
		Type:      string(domain.CategoryStatusChanged),
		Title:     "Status changed",
		Message:   "Board deck moved to review",
		ProjectID: ptr(s.taskID),
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	stored := s.store.Notifications()
	s.Require().Len(stored, 1)
	s.Require().NotNil(stored[0].TaskID)
	s.Equal(s.taskID, *stored[0].TaskID)
	s.Require().NotNil(stored[0].GroupID)
	s.Equal("00000000-0000-0000-0000-000000000001", *stored[0].GroupID)
}

func (s *HandlerTestSuite) TestCreateNotification_Validation() {
	tests := []struct {
		name   string
		req    dto.CreateNotificationRequest
		status int
		code   string
	}{
		{
			name:   "deadline category reserved",
			req:    dto.CreateNotificationRequest{UserID: s.userID, Type: "deadline_approaching", Title: "x"},
			status: http.StatusBadRequest,
			code:   "RESERVED_CATEGORY",
		},
		{
			name:   "bad project id",
			req:    dto.CreateNotificationRequest{UserID: s.userID, Type: "status_changed", Title: "x", ProjectID: ptr("not-a-uuid")},
			status: http.StatusUnprocessableEntity,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "bad group id",
			req:    dto.CreateNotificationRequest{UserID: s.userID, Type: "status_changed", Title: "x", GroupID: ptr("42")},
			status: http.StatusUnprocessableEntity,
			code:   "VALIDATION_ERROR",
		},
		{
			name: "unknown project",
			req: dto.CreateNotificationRequest{
				UserID: s.userID, Type: "status_changed", Title: "x",
				ProjectID: ptr("00000000-0000-0000-0000-0000000000aa"),
			},
			status: http.StatusNotFound,
			code:   "TASK_NOT_FOUND",
		},
		{
			name: "group differs from project",
			req: dto.CreateNotificationRequest{
				UserID: s.userID, Type: "status_changed", Title: "x",
				ProjectID: ptr(s.taskID), GroupID: ptr("00000000-0000-0000-0000-0000000000bb"),
			},
			status: http.StatusUnprocessableEntity,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "unknown category",
			req:    dto.CreateNotificationRequest{UserID: s.userID, Type: "chat_message", Title: "x"},
			status: http.StatusUnprocessableEntity,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "missing title",
			req:    dto.CreateNotificationRequest{UserID: s.userID, Type: "status_changed"},
			status: http.StatusUnprocessableEntity,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "bad user id",
			req:    dto.CreateNotificationRequest{UserID: "nope", Type: "status_changed", Title: "x"},
			status: http.StatusUnprocessableEntity,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "unknown user",
			req:    dto.CreateNotificationRequest{UserID: "00000000-0000-0000-0000-000000000099", Type: "status_changed", Title: "x"},
			status: http.StatusNotFound,
			code:   "USER_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.assertError(s.do(http.MethodPost, "/api/v1/notifications", tt.req), tt.status, tt.code)
		})
	}
	s.Empty(s.store.Notifications())
}

func (s *HandlerTestSuite) TestWebSocketReceivesAlerts() {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?user_id=" + s.userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer conn.Close()

	s.Require().Eventually(func() bool { return s.hub.Connections(s.userID) == 1 }, 2*time.Second, 10*time.Millisecond)

	resp := s.do(http.MethodPost, "/api/v1/notifications/check", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	var frame struct {
		Event string         `json:"event"`
		Data  notify.Payload `json:"data"`
	}
	s.Require().NoError(conn.ReadJSON(&frame))
	s.Equal(notify.EventNotification, frame.Event)
	s.Equal("24-Hour Deadline Alert", frame.Data.Title)
	s.Equal(s.userID, frame.Data.UserID)
}

func (s *HandlerTestSuite) TestWebSocket_RejectsUnknownUser() {
	resp := s.do(http.MethodGet, "/ws?user_id=bad", nil)
	s.assertError(resp, http.StatusBadRequest, "INVALID_REQUEST")

	resp = s.do(http.MethodGet, "/ws?user_id=00000000-0000-0000-0000-000000000099", nil)
	s.assertError(resp, http.StatusNotFound, "USER_NOT_FOUND")
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func ptr[T any](v T) *T { return &v }
