package sync

import (
	"context"

	"github.com/matheus3301/socialsync/internal/bus"
	"github.com/matheus3301/socialsync/internal/chat"
	"github.com/matheus3301/socialsync/internal/live"
	"github.com/matheus3301/socialsync/internal/model"
	"github.com/matheus3301/socialsync/internal/notify"
	"go.uber.org/zap"
)

// Reconciler owns the two read paths. Conversation reads stay local to the
// chat state; notification reads are persisted on the backend and then
// reflected in both the notification list and the conversation counters.
type Reconciler struct {
	chat     *chat.Synchronizer
	notify   *notify.Stream
	announce func(bus.Event)
	logger   *zap.Logger
}

// NewReconciler creates a new reconciler. Local acknowledgements are
// announced on the bus the manager publishes to.
func NewReconciler(c *chat.Synchronizer, n *notify.Stream, m *live.Manager, logger *zap.Logger) *Reconciler {
	r := &Reconciler{chat: c, notify: n, logger: logger, announce: func(bus.Event) {}}
	if b := m.Bus(); b != nil {
		r.announce = func(evt bus.Event) { b.Publish(evt) }
	}
	return r
}

// MarkConversationRead resets the unread counter of peer. Nothing is sent.
func (r *Reconciler) MarkConversationRead(ctx context.Context, peer string) error {
	return r.chat.MarkRead(ctx, peer)
}

// MarkNotificationsRead persists the read state of every notification. On
// success the acknowledgement is announced locally so the conversation
// counters clear without waiting for the server's notifications_marked_read.
func (r *Reconciler) MarkNotificationsRead(ctx context.Context) error {
	if err := r.notify.MarkAllRead(ctx); err != nil {
		return err
	}
	r.announce(bus.NewEvent(bus.KindNotificationsRead, r.notify.User()))
	return nil
}

// ViewNotifications loads the notification list, which marks it read on the
// backend, and clears the conversation counters the same way. Counters are
// left alone when the backend did not record the read.
func (r *Reconciler) ViewNotifications(ctx context.Context) ([]model.Notification, error) {
	items, marked, err := r.notify.Load(ctx)
	if err != nil {
		return nil, err
	}
	if marked {
		r.announce(bus.NewEvent(bus.KindNotificationsRead, r.notify.User()))
	}
	return items, nil
}

// Seed adopts the server's unread notification count. Failures are logged
// and otherwise ignored.
func (r *Reconciler) Seed(ctx context.Context) int {
	n, err := r.notify.UnreadCount(ctx)
	if err != nil {
		r.logger.Debug("unread badge unavailable", zap.Error(err))
		return r.notify.Unread()
	}
	return n
}
