package model

import (
	"context"
	"strings"
	"sync"

	"github.com/matheus3301/socialsync/internal/api"
	"github.com/matheus3301/socialsync/internal/bus"
	"github.com/matheus3301/socialsync/internal/chat"
	domain "github.com/matheus3301/socialsync/internal/model"
	"google.golang.org/grpc"
)

// Daemon is the part of the daemon API the TUI uses.
type Daemon interface {
	GetStatus(context.Context, *api.GetStatusRequest, ...grpc.CallOption) (*api.StatusResponse, error)
	Login(context.Context, *api.LoginRequest, ...grpc.CallOption) (*api.LoginResponse, error)
	Logout(context.Context, *api.LogoutRequest, ...grpc.CallOption) (*api.Ack, error)
	Reconnect(context.Context, *api.ReconnectRequest, ...grpc.CallOption) (*api.Ack, error)
	ListPeers(context.Context, *api.ListPeersRequest, ...grpc.CallOption) (*api.ListPeersResponse, error)
	SelectPeer(context.Context, *api.SelectPeerRequest, ...grpc.CallOption) (*api.MessagesResponse, error)
	ListMessages(context.Context, *api.ListMessagesRequest, ...grpc.CallOption) (*api.MessagesResponse, error)
	SendMessage(context.Context, *api.SendMessageRequest, ...grpc.CallOption) (*api.Ack, error)
	MarkRead(context.Context, *api.MarkReadRequest, ...grpc.CallOption) (*api.Ack, error)
	ListNotifications(context.Context, *api.ListNotificationsRequest, ...grpc.CallOption) (*api.NotificationsResponse, error)
	MarkNotificationsRead(context.Context, *api.MarkNotificationsReadRequest, ...grpc.CallOption) (*api.Ack, error)
}

// Pane is a bit set of screen regions needing a reload.
type Pane uint8

const (
	PaneStatus Pane = 1 << iota
	PanePeers
	PaneThread
	PaneNotifications

	PaneAll = PaneStatus | PanePeers | PaneThread | PaneNotifications
)

// Has reports whether p includes q.
func (p Pane) Has(q Pane) bool { return p&q != 0 }

// Affected maps a daemon event to the panes it invalidates.
func Affected(evt *api.Event) Pane {
	switch {
	case strings.HasPrefix(evt.Kind, "connection."):
		return PaneStatus
	case evt.Kind == bus.KindChatState:
		switch evt.Payload.Text("reason") {
		case chat.ReasonPresence, chat.ReasonRead, chat.ReasonPeers:
			return PanePeers | PaneStatus
		case chat.ReasonSelected, chat.ReasonHistory:
			return PanePeers | PaneThread
		case chat.ReasonMessage:
			return PanePeers | PaneThread | PaneStatus
		default:
			return PaneAll
		}
	case strings.HasPrefix(evt.Kind, "notify."):
		return PaneNotifications | PaneStatus
	default:
		return 0
	}
}

// ViewModel caches what the daemon reports and reloads it on demand.
type ViewModel struct {
	mu sync.RWMutex

	client        Daemon
	status        *api.StatusResponse
	peers         []api.Peer
	thread        *api.MessagesResponse
	notifications *api.NotificationsResponse
	Flash         Flash
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(c Daemon) *ViewModel {
	return &ViewModel{
		client:        c,
		thread:        &api.MessagesResponse{},
		notifications: &api.NotificationsResponse{},
	}
}

// Reload refreshes the given panes from the daemon. Every pane is attempted;
// the first error is returned.
func (vm *ViewModel) Reload(ctx context.Context, panes Pane) error {
	var first error
	keep := func(err error) {
		if first == nil {
			first = err
		}
	}
	if panes.Has(PaneStatus) {
		if resp, err := vm.client.GetStatus(ctx, &api.GetStatusRequest{}); err != nil {
			keep(err)
		} else {
			vm.mu.Lock()
			vm.status = resp
			vm.mu.Unlock()
		}
	}
	if panes.Has(PanePeers) {
		if resp, err := vm.client.ListPeers(ctx, &api.ListPeersRequest{}); err != nil {
			keep(err)
		} else {
			vm.mu.Lock()
			vm.peers = resp.Peers
			vm.mu.Unlock()
		}
	}
	if panes.Has(PaneThread) {
		if resp, err := vm.client.ListMessages(ctx, &api.ListMessagesRequest{}); err != nil {
			keep(err)
		} else {
			vm.mu.Lock()
			vm.thread = resp
			vm.mu.Unlock()
		}
	}
	if panes.Has(PaneNotifications) {
		if resp, err := vm.client.ListNotifications(ctx, &api.ListNotificationsRequest{}); err != nil {
			keep(err)
		} else {
			vm.setNotifications(resp)
		}
	}
	return first
}

// Open selects peer and loads the conversation.
func (vm *ViewModel) Open(ctx context.Context, peer string) error {
	resp, err := vm.client.SelectPeer(ctx, &api.SelectPeerRequest{PeerID: peer})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.thread = resp
	vm.mu.Unlock()
	return nil
}

// Send sends text to the open conversation.
func (vm *ViewModel) Send(ctx context.Context, text string) error {
	_, err := vm.client.SendMessage(ctx, &api.SendMessageRequest{PeerID: vm.Thread().PeerID, Text: text})
	return err
}

// ViewNotifications loads the notification list, which marks it read.
func (vm *ViewModel) ViewNotifications(ctx context.Context) error {
	resp, err := vm.client.ListNotifications(ctx, &api.ListNotificationsRequest{Refresh: true})
	if err != nil {
		return err
	}
	vm.setNotifications(resp)
	return nil
}

func (vm *ViewModel) setNotifications(resp *api.NotificationsResponse) {
	vm.mu.Lock()
	vm.notifications = resp
	if vm.status != nil {
		vm.status.UnreadNotifications = resp.Unread
	}
	vm.mu.Unlock()
}

// Status returns the last status, or nil before the first load.
func (vm *ViewModel) Status() *api.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Self returns the signed-in user id, or "".
func (vm *ViewModel) Self() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.status == nil || vm.status.Identity == nil {
		return ""
	}
	return vm.status.Identity.ID
}

// Peers returns the last peer list.
func (vm *ViewModel) Peers() []api.Peer {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.peers
}

// Thread returns the open conversation.
func (vm *ViewModel) Thread() *api.MessagesResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.thread
}

// Notifications returns the held notifications and the unread badge.
func (vm *ViewModel) Notifications() ([]domain.Notification, int) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.notifications.Notifications, vm.notifications.Unread
}

// Client returns the daemon client, for one-off commands.
func (vm *ViewModel) Client() Daemon { return vm.client }
