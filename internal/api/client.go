package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is the typed client of SyncService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection. Calls made through it use the JSON codec.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial connects to a daemon listening on socketPath.
func Dial(socketPath string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return conn, nil
}

func invoke[Resp any](ctx context.Context, c *Client, name string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, method(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c, "GetStatus", in, opts)
}

func (c *Client) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c, "Login", in, opts)
}

func (c *Client) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[Ack](ctx, c, "Logout", in, opts)
}

func (c *Client) Reconnect(ctx context.Context, in *ReconnectRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[Ack](ctx, c, "Reconnect", in, opts)
}

func (c *Client) ListPeers(ctx context.Context, in *ListPeersRequest, opts ...grpc.CallOption) (*ListPeersResponse, error) {
	return invoke[ListPeersResponse](ctx, c, "ListPeers", in, opts)
}

func (c *Client) SelectPeer(ctx context.Context, in *SelectPeerRequest, opts ...grpc.CallOption) (*MessagesResponse, error) {
	return invoke[MessagesResponse](ctx, c, "SelectPeer", in, opts)
}

func (c *Client) ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (*MessagesResponse, error) {
	return invoke[MessagesResponse](ctx, c, "ListMessages", in, opts)
}

func (c *Client) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[Ack](ctx, c, "SendMessage", in, opts)
}

func (c *Client) MarkRead(ctx context.Context, in *MarkReadRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[Ack](ctx, c, "MarkRead", in, opts)
}

func (c *Client) ListNotifications(ctx context.Context, in *ListNotificationsRequest, opts ...grpc.CallOption) (*NotificationsResponse, error) {
	return invoke[NotificationsResponse](ctx, c, "ListNotifications", in, opts)
}

func (c *Client) MarkNotificationsRead(ctx context.Context, in *MarkNotificationsReadRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[Ack](ctx, c, "MarkNotificationsRead", in, opts)
}

// WatchEvents opens the server stream of bus events.
func (c *Client) WatchEvents(ctx context.Context, in *WatchEventsRequest, opts ...grpc.CallOption) (EventReceiver, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], method("WatchEvents"), opts...)
	if err != nil {
		return nil, err
	}
	x := &eventReceiver{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type eventReceiver struct {
	grpc.ClientStream
}

func (x *eventReceiver) Recv() (*Event, error) {
	m := new(Event)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
