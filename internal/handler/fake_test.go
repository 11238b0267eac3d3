package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/account-gate/internal/auth"
	"github.com/sakif/account-gate/internal/model"
	"github.com/sakif/account-gate/internal/service"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// envelope mirrors handler.Response with Data left raw.
type envelope struct {
	Success bool            `json:"success"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Field   string          `json:"field"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// MockAccounts records the last call and returns canned values.
type MockAccounts struct {
	Outcome      service.Outcome
	Account      *model.Account
	Unban        *service.UnbanResult
	Reactivation *service.ReactivationResult
	Err          error

	GotUsername string
	GotEmail    string
	GotActivity string
	GotReason   string
	LoginCalls  int
	EvalCalls   int
}

func (m *MockAccounts) Signup(_ context.Context, username, email string, _ time.Time) (*model.Account, error) {
	m.GotUsername, m.GotEmail = username, email
	return m.Account, m.Err
}

func (m *MockAccounts) EvaluateLogin(_ context.Context, username, email string, _ time.Time) service.Outcome {
	m.EvalCalls++
	m.GotUsername, m.GotEmail = username, email
	return m.Outcome
}

func (m *MockAccounts) Login(_ context.Context, username, email, activity string, _ time.Time) service.Outcome {
	m.LoginCalls++
	m.GotUsername, m.GotEmail, m.GotActivity = username, email, activity
	return m.Outcome
}

func (m *MockAccounts) RequestUnban(_ context.Context, username string, _ time.Time) (*service.UnbanResult, error) {
	m.GotUsername = username
	return m.Unban, m.Err
}

func (m *MockAccounts) RequestReactivation(_ context.Context, username, email, reason string, _ time.Time) (*service.ReactivationResult, error) {
	m.GotUsername, m.GotEmail, m.GotReason = username, email, reason
	return m.Reactivation, m.Err
}

type MockModerators struct {
	Got     service.ModeratorApplication
	Created *model.ModeratorRequest
	Err     error
}

func (m *MockModerators) RequestModeratorAccount(_ context.Context, app service.ModeratorApplication, _ time.Time) (*model.ModeratorRequest, error) {
	m.Got = app
	return m.Created, m.Err
}

type MockAdmin struct {
	Accounts  []model.Account
	Account   *model.Account
	EventList []model.AuditEvent
	Err       error

	GotUsername string
	GotApprove  bool
	GotStatus   model.Status
	GotReason   string
	GotDuration string
	GotLimit    int
	GotOffset   int
}

func (m *MockAdmin) ListUnbanRequests(_ context.Context, limit, offset int) ([]model.Account, error) {
	m.GotLimit, m.GotOffset = limit, offset
	return m.Accounts, m.Err
}

func (m *MockAdmin) ListReactivationRequests(_ context.Context, limit, offset int) ([]model.Account, error) {
	m.GotLimit, m.GotOffset = limit, offset
	return m.Accounts, m.Err
}

func (m *MockAdmin) ReviewUnban(_ context.Context, username string, approve bool, _ time.Time) (*model.Account, error) {
	m.GotUsername, m.GotApprove = username, approve
	return m.Account, m.Err
}

func (m *MockAdmin) ReviewReactivation(_ context.Context, username string, approve bool, _ time.Time) (*model.Account, error) {
	m.GotUsername, m.GotApprove = username, approve
	return m.Account, m.Err
}

func (m *MockAdmin) SetStatus(_ context.Context, username string, status model.Status, _ time.Time) (*model.Account, error) {
	m.GotUsername, m.GotStatus = username, status
	return m.Account, m.Err
}

func (m *MockAdmin) Ban(_ context.Context, username, reason, duration string, _ time.Time) (*model.Account, error) {
	m.GotUsername, m.GotReason, m.GotDuration = username, reason, duration
	return m.Account, m.Err
}

func (m *MockAdmin) Events(_ context.Context, username string, limit int) ([]model.AuditEvent, error) {
	m.GotUsername, m.GotLimit = username, limit
	return m.EventList, m.Err
}

type MockAuthenticator struct {
	Token *auth.AdminToken
	Err   error
	Got   string
}

func (m *MockAuthenticator) Login(_ context.Context, key string) (*auth.AdminToken, error) {
	m.Got = key
	return m.Token, m.Err
}

type MockPinger struct{ Err error }

func (m MockPinger) Ping(context.Context) error { return m.Err }
