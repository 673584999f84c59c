package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-messenger/internal/config"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/server"
	"github.com/teris-io/shortid"
)

type MessengerApp struct {
	log            *log.Logger
	db             database.MessengerRepository
	mux            *http.Server
	cs             *server.ChatServer
	signingKey     []byte
	allowedOrigins []string
	uploadDir      string

	// overridable in tests
	generateShortId func() (string, error)
}

func NewMessengerApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.MessengerRepository, cfg *config.Config) *MessengerApp {
	s := &MessengerApp{
		log:             logger,
		db:              db,
		cs:              cs,
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		uploadDir:       cfg.UploadDir,
		generateShortId: shortid.Generate,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("/api/account", s.authMiddleware(s.account))

	mux.HandleFunc("GET /api/users", s.authMiddleware(s.listUsers))
	mux.HandleFunc("GET /api/users/{id}", s.authMiddleware(s.getUser))

	mux.HandleFunc("GET /api/conversations", s.authMiddleware(s.listConversations))
	mux.HandleFunc("GET /api/conversations/{id}/messages", s.authMiddleware(s.getConversationMessages))
	mux.HandleFunc("POST /api/conversations/{id}/read", s.authMiddleware(s.markConversationRead))
	mux.HandleFunc("DELETE /api/conversations/{id}", s.authMiddleware(s.deleteConversation))
	mux.HandleFunc("POST /api/messages/{id}/read", s.authMiddleware(s.markMessageRead))
	mux.HandleFunc("GET /api/messages/search", s.authMiddleware(s.searchMessages))

	mux.HandleFunc("POST /api/groups", s.authMiddleware(s.createGroup))
	mux.HandleFunc("GET /api/groups", s.authMiddleware(s.listGroups))
	mux.HandleFunc("GET /api/groups/{id}", s.authMiddleware(s.getGroup))
	mux.HandleFunc("DELETE /api/groups/{id}", s.authMiddleware(s.deleteGroup))
	mux.HandleFunc("GET /api/groups/{id}/messages", s.authMiddleware(s.getGroupMessages))
	mux.HandleFunc("POST /api/groups/{id}/members", s.authMiddleware(s.addGroupMember))
	mux.HandleFunc("DELETE /api/groups/{id}/members/{userId}", s.authMiddleware(s.removeGroupMember))

	mux.HandleFunc("POST /api/media", s.authMiddleware(s.uploadMedia))
	mux.HandleFunc("GET /api/media/{id}", s.authMiddleware(s.getMedia))
	mux.HandleFunc("DELETE /api/media/{id}", s.authMiddleware(s.deleteMedia))

	mux.HandleFunc("GET /api/notifications", s.authMiddleware(s.listNotifications))
	mux.HandleFunc("GET /api/notifications/unread-count", s.authMiddleware(s.unreadNotificationCount))
	mux.HandleFunc("POST /api/notifications/{id}/read", s.authMiddleware(s.markNotificationRead))
	mux.HandleFunc("POST /api/notifications/read-all", s.authMiddleware(s.markAllNotificationsRead))
	mux.HandleFunc("DELETE /api/notifications/{id}", s.authMiddleware(s.deleteNotification))

	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *MessengerApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *MessengerApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
