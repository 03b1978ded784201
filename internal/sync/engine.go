package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/matheus3301/socialsync/internal/chat"
	"github.com/matheus3301/socialsync/internal/live"
	"github.com/matheus3301/socialsync/internal/logging"
	"github.com/matheus3301/socialsync/internal/model"
	"github.com/matheus3301/socialsync/internal/notify"
	"github.com/matheus3301/socialsync/internal/session"
	"go.uber.org/zap"
)

// ErrSignedOut is returned by operations that need an identity.
var ErrSignedOut = errors.New("no identity signed in")

// Engine follows the session identity: signing in opens the live channel and
// starts the chat and notification synchronizers for that user, signing out
// (or changing user) tears them down.
type Engine struct {
	live       *live.Manager
	chat       *chat.Synchronizer
	notify     *notify.Stream
	reconciler *Reconciler
	logger     *zap.Logger

	mu       sync.Mutex
	identity *model.Identity
}

// NewEngine creates a new sync engine.
func NewEngine(m *live.Manager, c *chat.Synchronizer, n *notify.Stream, logger *zap.Logger) *Engine {
	logger = logging.OrNop(logger)
	return &Engine{
		live:       m,
		chat:       c,
		notify:     n,
		reconciler: NewReconciler(c, n, m, logger),
		logger:     logger,
	}
}

// Login signs id in. Signing in the current identity again is a no-op; a
// different identity replaces the current one.
func (e *Engine) Login(ctx context.Context, id model.Identity) error {
	if err := session.ValidateUserID(id.ID); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.identity != nil && e.identity.ID == id.ID {
		e.identity = &id
		return nil
	}
	if e.identity != nil {
		e.stopLocked()
	}

	// The chat state subscribes before the channel opens so the presence
	// broadcast that greets a new connection is not missed.
	if err := e.chat.Start(id.ID); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := e.live.SetIdentity(ctx, &id); err != nil {
		e.chat.Stop()
		return fmt.Errorf("login: %w", err)
	}
	if err := e.notify.Start(id.ID); err != nil {
		e.chat.Stop()
		e.live.Disconnect()
		return fmt.Errorf("login: %w", err)
	}
	e.identity = &id
	e.logger.Info("signed in", zap.String("user_id", id.ID), zap.String("name", id.DisplayName()))

	// The peer list and the badge are best effort; failures are logged.
	if _, err := e.chat.LoadPeers(ctx); err != nil {
		e.logger.Warn("initial peer load failed", zap.Error(err))
	}
	e.reconciler.Seed(ctx)
	return nil
}

// Logout signs the current identity out. It is safe to call when signed out.
func (e *Engine) Logout() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// Close releases everything the engine started.
func (e *Engine) Close() {
	e.Logout()
}

func (e *Engine) stopLocked() {
	e.notify.Stop()
	e.chat.Stop()
	_ = e.live.SetIdentity(context.Background(), nil)
	if e.identity != nil {
		e.logger.Info("signed out", zap.String("user_id", e.identity.ID))
	}
	e.identity = nil
}

// Identity returns the signed-in identity, or nil.
func (e *Engine) Identity() *model.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.identity == nil {
		return nil
	}
	id := *e.identity
	return &id
}

// Reconnect re-opens a dropped live channel for the signed-in identity and
// re-joins its notification room. The engine lock is held throughout.
func (e *Engine) Reconnect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.identity == nil {
		return ErrSignedOut
	}
	if e.live.Connected() {
		return nil
	}
	if err := e.live.Connect(ctx, e.identity.ID); err != nil {
		return err
	}
	return e.notify.Rejoin()
}

// Chat returns the chat synchronizer.
func (e *Engine) Chat() *chat.Synchronizer { return e.chat }

// Notifications returns the notification stream.
func (e *Engine) Notifications() *notify.Stream { return e.notify }

// Reads returns the read-state reconciler.
func (e *Engine) Reads() *Reconciler { return e.reconciler }

// Live returns the connection manager.
func (e *Engine) Live() *live.Manager { return e.live }
