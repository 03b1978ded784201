// Package backend is a reference implementation of the social backend's chat
// surface: the REST endpoints the synchronizer reads and the live channel it
// subscribes to. It backs local development and end-to-end tests.
package backend

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/socialsync/internal/logging"
	"github.com/matheus3301/socialsync/internal/model"
	"github.com/matheus3301/socialsync/internal/session"
	"github.com/matheus3301/socialsync/internal/store"
	"go.uber.org/zap"
)

// Server serves the REST routes and the live channel.
type Server struct {
	db     *store.DB
	hub    *Hub
	logger *zap.Logger
	engine *gin.Engine
	http   *http.Server
}

// New builds the router over db.
func New(db *store.DB, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	logger = logging.OrNop(logger)
	s := &Server{
		db:     db,
		hub:    NewHub(db, logger),
		logger: logger,
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.accessLog())
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/ws", func(c *gin.Context) { s.hub.ServeWS(c.Writer, c.Request) })

	users := r.Group("/users")
	{
		users.GET("", s.listUsers)
		users.PUT("/:uid", s.putUser)
	}
	r.GET("/messages/:a/:b", s.listMessages)

	notes := r.Group("/notifications")
	{
		notes.POST("", s.createNotification)
		notes.GET("/:uid", s.listNotifications)
		notes.PUT("/:uid/read", s.markRead)
		notes.GET("/:uid/unread-count", s.unreadCount)
	}
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Hub returns the live channel hub.
func (s *Server) Hub() *Hub { return s.hub }

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.http = &http.Server{Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	s.logger.Info("backend listening", zap.String("addr", ln.Addr().String()))
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and drops live connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (s *Server) fail(c *gin.Context, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.db.ListUsers()
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) putUser(c *gin.Context) {
	uid := c.Param("uid")
	if err := session.ValidateUserID(uid); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	var u model.Identity
	if err := c.ShouldBindJSON(&u); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	u.ID = uid
	if err := s.db.UpsertUser(u); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) listMessages(c *gin.Context) {
	msgs, err := s.db.ListConversation(c.Param("a"), c.Param("b"))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *Server) createNotification(c *gin.Context) {
	var n model.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	if n.UserID == "" || n.Type == "" {
		s.fail(c, http.StatusBadRequest, errors.New("userId and type are required"))
		return
	}
	n.Read = false
	if err := s.db.InsertNotification(&n); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	s.hub.Notify(n)
	c.JSON(http.StatusCreated, n)
}

func (s *Server) listNotifications(c *gin.Context) {
	items, err := s.db.ListNotifications(c.Param("uid"))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) markRead(c *gin.Context) {
	uid := c.Param("uid")
	changed, err := s.db.MarkNotificationsRead(uid)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	s.hub.NotifyRead(uid)
	c.JSON(http.StatusOK, gin.H{"updated": changed})
}

func (s *Server) unreadCount(c *gin.Context) {
	n, err := s.db.UnreadNotificationCount(c.Param("uid"))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}
