package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lib/pq"
	"github.com/npezzotti/go-messenger/internal/config"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/server"
	"github.com/npezzotti/go-messenger/internal/stats"
	"github.com/npezzotti/go-messenger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// newTestApp wires a MessengerApp against a mock repository. The chat
// server is real but idle; nothing drains its notifier queue.
func newTestApp(t *testing.T, db database.MessengerRepository) *MessengerApp {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return(nil).Times(4)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)
	cs, err := server.NewChatServer(logger, db, su)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}

	cfg := &config.Config{
		ServerAddr:     "localhost:0",
		DatabaseDSN:    "test-dsn",
		SigningKey:     []byte("test-signing-key"),
		AllowedOrigins: []string{"http://localhost"},
		UploadDir:      t.TempDir(),
	}

	return NewMessengerApp(http.NewServeMux(), logger, cs, db, cfg)
}

func uniqueViolation() error {
	return &pq.Error{Code: "23505"}
}

// findCookie is a helper function to find a cookie by name in the response recorder.
// It returns the cookie if found, or nil if not found.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockMessengerRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("Ping").Return(tc.mockErr).Once()

			app := newTestApp(t, mockRepo)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			app.healthCheck(rr, req)

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
				assert.Equal(t, "OK", rr.Body.String(), "expected response body to be 'OK'")
			}
		})
	}
}
