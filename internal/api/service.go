package api

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/socialsync/internal/bus"
	"github.com/matheus3301/socialsync/internal/chat"
	"github.com/matheus3301/socialsync/internal/live"
	"github.com/matheus3301/socialsync/internal/logging"
	"github.com/matheus3301/socialsync/internal/notify"
	"github.com/matheus3301/socialsync/internal/rest"
	"github.com/matheus3301/socialsync/internal/session"
	intsync "github.com/matheus3301/socialsync/internal/sync"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// DefaultWatchPrefixes are streamed when a watcher names none.
var DefaultWatchPrefixes = []string{"connection.", "chat.", "notify.", "live."}

// Service implements SyncServer over the sync engine.
type Service struct {
	engine    *intsync.Engine
	bus       *bus.Bus
	sess      *session.Session
	startedAt time.Time
	logger    *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// NewService creates the daemon API.
func NewService(sess *session.Session, engine *intsync.Engine, b *bus.Bus, logger *zap.Logger) *Service {
	return &Service{
		engine:    engine,
		bus:       b,
		sess:      sess,
		startedAt: time.Now(),
		logger:    logging.OrNop(logger),
		closed:    make(chan struct{}),
	}
}

// Close ends every open event stream. Unary calls are unaffected.
func (s *Service) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *Service) GetStatus(_ context.Context, _ *GetStatusRequest) (*StatusResponse, error) {
	snap := s.engine.Chat().Snapshot()
	resp := &StatusResponse{
		Session:             s.sess.Name,
		State:               string(s.engine.Live().State()),
		BaseURL:             s.sess.BaseURL,
		Identity:            s.engine.Identity(),
		Selected:            snap.Selected,
		Peers:               len(snap.Peers),
		Online:              len(snap.Presence),
		UnreadMessages:      chat.TotalUnread(snap),
		UnreadNotifications: s.engine.Notifications().Unread(),
		UptimeMs:            time.Since(s.startedAt).Milliseconds(),
	}
	return resp, nil
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	id := req.Identity
	if id.ID == "" && s.sess.Identity != nil {
		id = *s.sess.Identity
	}
	if id.ID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "no identity given and none configured")
	}
	if err := s.engine.Login(ctx, id); err != nil {
		return nil, toStatus(err)
	}
	return &LoginResponse{Identity: id, State: string(s.engine.Live().State())}, nil
}

func (s *Service) Logout(_ context.Context, _ *LogoutRequest) (*Ack, error) {
	s.engine.Logout()
	return &Ack{Message: "signed out"}, nil
}

func (s *Service) Reconnect(ctx context.Context, _ *ReconnectRequest) (*Ack, error) {
	if err := s.engine.Reconnect(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &Ack{Message: string(s.engine.Live().State())}, nil
}

func (s *Service) ListPeers(ctx context.Context, req *ListPeersRequest) (*ListPeersResponse, error) {
	c := s.engine.Chat()
	snap := c.Snapshot()
	if req.Refresh || len(snap.Peers) == 0 {
		if _, err := c.LoadPeers(ctx); err != nil {
			return nil, toStatus(err)
		}
		snap = c.Snapshot()
	}
	peers := make([]Peer, 0, len(snap.Peers))
	for _, p := range snap.Peers {
		peers = append(peers, Peer{
			Identity: p,
			Online:   snap.IsOnline(p.ID),
			Unread:   chat.UnreadFor(snap, p.ID),
			Selected: p.ID == snap.Selected,
		})
	}
	return &ListPeersResponse{Peers: peers}, nil
}

func (s *Service) SelectPeer(ctx context.Context, req *SelectPeerRequest) (*MessagesResponse, error) {
	if req.PeerID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "peer id is required")
	}
	msgs, err := s.engine.Chat().Select(ctx, req.PeerID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &MessagesResponse{PeerID: req.PeerID, Messages: msgs}, nil
}

func (s *Service) ListMessages(_ context.Context, _ *ListMessagesRequest) (*MessagesResponse, error) {
	snap := s.engine.Chat().Snapshot()
	return &MessagesResponse{PeerID: snap.Selected, Loading: snap.Loading, Messages: snap.Messages}, nil
}

func (s *Service) SendMessage(ctx context.Context, req *SendMessageRequest) (*Ack, error) {
	c := s.engine.Chat()
	if req.PeerID != "" && req.PeerID != c.Snapshot().Selected {
		if _, err := c.Select(ctx, req.PeerID); err != nil && !errors.Is(err, chat.ErrSuperseded) {
			return nil, toStatus(err)
		}
	}
	if err := c.Send(req.Text, req.Image); err != nil {
		return nil, toStatus(err)
	}
	return &Ack{Message: "sent"}, nil
}

func (s *Service) MarkRead(ctx context.Context, req *MarkReadRequest) (*Ack, error) {
	if req.PeerID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "peer id is required")
	}
	if err := s.engine.Reads().MarkConversationRead(ctx, req.PeerID); err != nil {
		return nil, toStatus(err)
	}
	return &Ack{}, nil
}

func (s *Service) ListNotifications(ctx context.Context, req *ListNotificationsRequest) (*NotificationsResponse, error) {
	n := s.engine.Notifications()
	items := n.List()
	if req.Refresh {
		var err error
		if items, err = s.engine.Reads().ViewNotifications(ctx); err != nil {
			return nil, toStatus(err)
		}
	}
	return &NotificationsResponse{Notifications: items, Unread: n.Unread()}, nil
}

func (s *Service) MarkNotificationsRead(ctx context.Context, _ *MarkNotificationsReadRequest) (*Ack, error) {
	if err := s.engine.Reads().MarkNotificationsRead(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &Ack{}, nil
}

func (s *Service) WatchEvents(req *WatchEventsRequest, stream EventSender) error {
	prefixes := req.Prefixes
	if len(prefixes) == 0 {
		prefixes = DefaultWatchPrefixes
	}
	ch, unsub := s.bus.Subscribe("", 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if !matches(evt.Kind, prefixes) {
				continue
			}
			payload, err := NewPayload(evt.Payload)
			if err != nil {
				s.logger.Warn("drop unencodable event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.Send(&Event{
				ID:               uuid.NewString(),
				Session:          s.sess.Name,
				Kind:             evt.Kind,
				OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
				Payload:          payload,
			}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		case <-s.closed:
			return nil
		}
	}
}

func matches(kind string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(kind, p) {
			return true
		}
	}
	return false
}

// toStatus maps domain errors onto gRPC codes.
func toStatus(err error) error {
	var se *rest.StatusError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return grpcstatus.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrUnknownPeer),
		errors.Is(err, session.ErrEmptyUserID):
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, chat.ErrNoPeerSelected),
		errors.Is(err, chat.ErrStopped),
		errors.Is(err, notify.ErrStopped),
		errors.Is(err, intsync.ErrSignedOut):
		return grpcstatus.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, chat.ErrSuperseded):
		return grpcstatus.Error(codes.Aborted, err.Error())
	case errors.Is(err, live.ErrNotConnected):
		return grpcstatus.Error(codes.Unavailable, err.Error())
	case errors.As(err, &se):
		if se.Code == 404 {
			return grpcstatus.Error(codes.NotFound, err.Error())
		}
		return grpcstatus.Error(codes.Unavailable, err.Error())
	default:
		return grpcstatus.Error(codes.Internal, err.Error())
	}
}

// compile-time check
var _ SyncServer = (*Service)(nil)
