package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func Test_serveWs(t *testing.T) {
	t.Run("successful upgrade", func(t *testing.T) {
		mockRepo := &database.MockMessengerRepository{}
		mockRepo.On("GetAccountById", 1).Return(database.Account{
			Id:           1,
			Username:     "testuser",
			EmailAddress: "testuser@example.com",
		}, nil)
		mockRepo.On("CreateSession", mock.Anything, 1, mock.Anything).Return(nil).Maybe()
		mockRepo.On("SetPresence", 1, true, mock.Anything).Return(nil).Maybe()
		mockRepo.On("DeleteSession", mock.Anything).Return(nil).Maybe()
		mockRepo.On("SetPresence", 1, false, mock.Anything).Return(nil).Maybe()

		app := newTestApp(t, mockRepo)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = r.WithContext(WithUserId(r.Context(), 1))
			app.serveWs(w, r)
		}))
		defer srv.Close()

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		assert.NoError(t, err, "expected no error dialing websocket")
		defer conn.Close()

		assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode,
			"expected status %d, got %d", http.StatusSwitchingProtocols, resp.StatusCode)
	})

	tcases := []struct {
		name         string
		userId       int
		dbErr        error
		expectedCode int
	}{
		{
			name:         "no user in context",
			userId:       0,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "unknown account",
			userId:       1,
			dbErr:        sql.ErrNoRows,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "database error",
			userId:       1,
			dbErr:        assert.AnError,
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockMessengerRepository{}
			if tc.userId != 0 {
				mockRepo.On("GetAccountById", tc.userId).Return(database.Account{}, tc.dbErr)
			}

			app := newTestApp(t, mockRepo)

			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tc.userId != 0 {
				req = req.WithContext(WithUserId(req.Context(), tc.userId))
			}

			rr := httptest.NewRecorder()
			app.serveWs(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code,
				"expected status code %d, got %d", tc.expectedCode, rr.Code)

			var apiErr ApiError
			err := json.NewDecoder(rr.Body).Decode(&apiErr)
			assert.NoError(t, err, "expected no error decoding response body")
			assert.Equal(t, tc.expectedCode, apiErr.StatusCode,
				"expected error status code %d, got %d", tc.expectedCode, apiErr.StatusCode)

			mockRepo.AssertExpectations(t)
		})
	}
}
