package model

import (
	"context"
	"errors"
	"testing"

	"github.com/matheus3301/socialsync/internal/api"
	"github.com/matheus3301/socialsync/internal/bus"
	"github.com/matheus3301/socialsync/internal/chat"
	domain "github.com/matheus3301/socialsync/internal/model"
	"google.golang.org/grpc"
)

type fakeDaemon struct {
	Daemon // unimplemented calls panic

	peersErr error
	calls    []string
	sent     *api.SendMessageRequest
}

func (f *fakeDaemon) GetStatus(context.Context, *api.GetStatusRequest, ...grpc.CallOption) (*api.StatusResponse, error) {
	f.calls = append(f.calls, "status")
	return &api.StatusResponse{State: "ONLINE", Identity: &domain.Identity{ID: "a"}, UnreadNotifications: 3}, nil
}

func (f *fakeDaemon) ListPeers(context.Context, *api.ListPeersRequest, ...grpc.CallOption) (*api.ListPeersResponse, error) {
	f.calls = append(f.calls, "peers")
	if f.peersErr != nil {
		return nil, f.peersErr
	}
	return &api.ListPeersResponse{Peers: []api.Peer{{Identity: domain.Identity{ID: "b"}, Online: true}}}, nil
}

func (f *fakeDaemon) ListMessages(context.Context, *api.ListMessagesRequest, ...grpc.CallOption) (*api.MessagesResponse, error) {
	f.calls = append(f.calls, "messages")
	return &api.MessagesResponse{PeerID: "b"}, nil
}

func (f *fakeDaemon) SelectPeer(_ context.Context, in *api.SelectPeerRequest, _ ...grpc.CallOption) (*api.MessagesResponse, error) {
	return &api.MessagesResponse{PeerID: in.PeerID, Messages: []domain.Message{{ID: "m1"}}}, nil
}

func (f *fakeDaemon) SendMessage(_ context.Context, in *api.SendMessageRequest, _ ...grpc.CallOption) (*api.Ack, error) {
	f.sent = in
	return &api.Ack{}, nil
}

func (f *fakeDaemon) ListNotifications(_ context.Context, in *api.ListNotificationsRequest, _ ...grpc.CallOption) (*api.NotificationsResponse, error) {
	f.calls = append(f.calls, "notifications")
	if in.Refresh {
		return &api.NotificationsResponse{Notifications: []domain.Notification{{ID: "n1", Read: true}}}, nil
	}
	return &api.NotificationsResponse{Notifications: []domain.Notification{{ID: "n1"}}, Unread: 1}, nil
}

func event(t *testing.T, kind string, payload any) *api.Event {
	t.Helper()
	p, err := api.NewPayload(payload)
	if err != nil {
		t.Fatal(err)
	}
	return &api.Event{Kind: kind, Payload: p}
}

func TestAffected(t *testing.T) {
	tests := []struct {
		name string
		evt  *api.Event
		want Pane
	}{
		{"connection", event(t, bus.KindConnectionStatus, map[string]string{"to": "ONLINE"}), PaneStatus},
		{"presence", event(t, bus.KindChatState, chat.Change{Reason: chat.ReasonPresence}), PanePeers | PaneStatus},
		{"message", event(t, bus.KindChatState, chat.Change{Reason: chat.ReasonMessage}), PanePeers | PaneThread | PaneStatus},
		{"history", event(t, bus.KindChatState, chat.Change{Reason: chat.ReasonHistory, Peer: "b"}), PanePeers | PaneThread},
		{"reset", event(t, bus.KindChatState, chat.Change{Reason: chat.ReasonReset}), PaneAll},
		{"notify", event(t, bus.KindNotifyState, map[string]int{"unread": 1}), PaneNotifications | PaneStatus},
		{"raw live frame", event(t, bus.KindMessage, domain.Message{ID: "m"}), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Affected(tt.evt); got != tt.want {
				t.Errorf("Affected() = %04b, want %04b", got, tt.want)
			}
		})
	}
}

func TestReloadSelectedPanes(t *testing.T) {
	f := &fakeDaemon{}
	vm := NewViewModel(f)
	if err := vm.Reload(context.Background(), PaneStatus|PanePeers); err != nil {
		t.Fatal(err)
	}
	if len(f.calls) != 2 || f.calls[0] != "status" || f.calls[1] != "peers" {
		t.Errorf("calls = %v", f.calls)
	}
	if vm.Self() != "a" || len(vm.Peers()) != 1 {
		t.Errorf("self = %q peers = %v", vm.Self(), vm.Peers())
	}
}

func TestReloadKeepsGoingAfterError(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeDaemon{peersErr: boom}
	vm := NewViewModel(f)
	if err := vm.Reload(context.Background(), PaneAll); !errors.Is(err, boom) {
		t.Fatalf("Reload() = %v, want boom", err)
	}
	if len(f.calls) != 4 {
		t.Errorf("calls = %v, want all four panes attempted", f.calls)
	}
	if vm.Status() == nil || vm.Thread().PeerID != "b" {
		t.Error("panes after the failing one were not loaded")
	}
}

func TestOpenAndSend(t *testing.T) {
	f := &fakeDaemon{}
	vm := NewViewModel(f)
	if err := vm.Open(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}
	if th := vm.Thread(); th.PeerID != "b" || len(th.Messages) != 1 {
		t.Errorf("thread = %+v", th)
	}
	if err := vm.Send(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	if f.sent == nil || f.sent.PeerID != "b" || f.sent.Text != "hi" {
		t.Errorf("sent = %+v", f.sent)
	}
}

func TestViewNotificationsClearsBadge(t *testing.T) {
	vm := NewViewModel(&fakeDaemon{})
	if err := vm.Reload(context.Background(), PaneStatus|PaneNotifications); err != nil {
		t.Fatal(err)
	}
	if _, unread := vm.Notifications(); unread != 1 {
		t.Fatalf("unread = %d, want 1", unread)
	}
	if err := vm.ViewNotifications(context.Background()); err != nil {
		t.Fatal(err)
	}
	items, unread := vm.Notifications()
	if unread != 0 || len(items) != 1 || !items[0].Read {
		t.Errorf("after view: unread = %d items = %+v", unread, items)
	}
	if vm.Status().UnreadNotifications != 0 {
		t.Errorf("status badge = %d, want 0", vm.Status().UnreadNotifications)
	}
}
