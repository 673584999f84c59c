package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("failed to encode request body: %v", err)
	}
	return buf
}

func TestCreateAccountHandler(t *testing.T) {
	expectedUser := database.Account{
		Id:           1,
		Username:     "newuser",
		EmailAddress: "newuser@example.com",
		PasswordHash: "hashedpassword",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	t.Run("successfully creates a new account", func(t *testing.T) {
		mockRepo := &database.MockMessengerRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
			return p.Username == expectedUser.Username &&
				p.EmailAddress == expectedUser.EmailAddress &&
				p.PasswordHash != "password" // never stored in the clear
		})).Return(expectedUser, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, RegisterRequest{
			Username: expectedUser.Username,
			Email:    expectedUser.EmailAddress,
			Password: "password",
		}))
		app.createAccount(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code, "expected status code to be 201")

		var u types.User
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u), "expected valid json response")
		assert.Equal(t, expectedUser.Id, u.Id, "expected user id in response")
		assert.Equal(t, expectedUser.Username, u.Username, "expected username in response")
	})

	t.Run("fails with invalid json body", func(t *testing.T) {
		mockRepo := &database.MockMessengerRepository{}
		defer mockRepo.AssertExpectations(t)

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString("invalid json"))
		app.createAccount(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})

	t.Run("fails with missing fields", func(t *testing.T) {
		mockRepo := &database.MockMessengerRepository{}
		defer mockRepo.AssertExpectations(t)

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, RegisterRequest{
			Email: "nouser@example.com",
		}))
		app.createAccount(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})

	t.Run("fails with conflict on duplicate account", func(t *testing.T) {
		mockRepo := &database.MockMessengerRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("CreateAccount", mock.Anything).Return(database.Account{}, uniqueViolation()).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, RegisterRequest{
			Username: "newuser",
			Email:    "newuser@example.com",
			Password: "password",
		}))
		app.createAccount(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code, "expected status code to be 409")
	})
}

func TestLoginHandler(t *testing.T) {
	passwordHash, err := hashPassword("password")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	dbUser := database.Account{
		Id:           1,
		Username:     "testuser",
		EmailAddress: "testuser@example.com",
		PasswordHash: passwordHash,
	}

	t.Run("successful login sets token cookie", func(t *testing.T) {
		mockRepo := &database.MockMessengerRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountByEmail", dbUser.EmailAddress).Return(dbUser, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, LoginRequest{
			Email:    dbUser.EmailAddress,
			Password: "password",
		}))
		app.login(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		cookie := findCookie(rr, tokenCookieKey)
		assert.NotNil(t, cookie, "expected token cookie to be set")
		assert.NotEmpty(t, cookie.Value, "expected token cookie to carry a token")
		assert.True(t, cookie.HttpOnly, "expected token cookie to be http-only")

		userId, err := app.extractUserIdFromToken(cookie.Value)
		assert.NoError(t, err, "expected token to be verifiable")
		assert.Equal(t, dbUser.Id, userId, "expected token to carry the user id")
	})

	t.Run("fails with wrong password", func(t *testing.T) {
		mockRepo := &database.MockMessengerRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountByEmail", dbUser.EmailAddress).Return(dbUser, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, LoginRequest{
			Email:    dbUser.EmailAddress,
			Password: "wrongpassword",
		}))
		app.login(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected status code to be 401")
		assert.Nil(t, findCookie(rr, tokenCookieKey), "expected no token cookie on failed login")
	})

	t.Run("fails with unknown email", func(t *testing.T) {
		mockRepo := &database.MockMessengerRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountByEmail", "unknown@example.com").Return(database.Account{}, sql.ErrNoRows).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, LoginRequest{
			Email:    "unknown@example.com",
			Password: "password",
		}))
		app.login(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code, "expected status code to be 404")
	})
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("accepts a valid cookie token", func(t *testing.T) {
		mockRepo := &database.MockMessengerRepository{}
		app := newTestApp(t, mockRepo)

		token, err := app.createJwtForSession(types.User{Id: 42}, time.Hour)
		assert.NoError(t, err, "expected token creation to succeed")

		var gotUserId int
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			gotUserId, _ = UserId(r.Context())
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.AddCookie(createJwtCookie(token, time.Hour))
		handler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
		assert.Equal(t, 42, gotUserId, "expected user id in request context")
	})

	t.Run("accepts a bearer token", func(t *testing.T) {
		mockRepo := &database.MockMessengerRepository{}
		app := newTestApp(t, mockRepo)

		token, err := app.createJwtForSession(types.User{Id: 42}, time.Hour)
		assert.NoError(t, err, "expected token creation to succeed")

		var gotUserId int
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			gotUserId, _ = UserId(r.Context())
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
		assert.Equal(t, 42, gotUserId, "expected user id in request context")
	})

	t.Run("rejects a missing token", func(t *testing.T) {
		mockRepo := &database.MockMessengerRepository{}
		app := newTestApp(t, mockRepo)

		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called without a token")
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		handler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected status code to be 401")
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		mockRepo := &database.MockMessengerRepository{}
		app := newTestApp(t, mockRepo)

		token, err := app.createJwtForSession(types.User{Id: 42}, -time.Hour)
		assert.NoError(t, err, "expected token creation to succeed")

		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called with an expired token")
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.AddCookie(createJwtCookie(token, time.Hour))
		handler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected status code to be 401")
	})
}

func TestLogoutHandler(t *testing.T) {
	mockRepo := &database.MockMessengerRepository{}
	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil)
	app.logout(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code, "expected status code to be 204")

	cookie := findCookie(rr, tokenCookieKey)
	assert.NotNil(t, cookie, "expected token cookie to be overwritten")
	assert.Empty(t, cookie.Value, "expected token cookie to be cleared")
}
