package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "socialsync.v1.SyncService"

// SyncServer is the daemon API.
type SyncServer interface {
	GetStatus(context.Context, *GetStatusRequest) (*StatusResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Logout(context.Context, *LogoutRequest) (*Ack, error)
	Reconnect(context.Context, *ReconnectRequest) (*Ack, error)
	ListPeers(context.Context, *ListPeersRequest) (*ListPeersResponse, error)
	SelectPeer(context.Context, *SelectPeerRequest) (*MessagesResponse, error)
	ListMessages(context.Context, *ListMessagesRequest) (*MessagesResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*Ack, error)
	MarkRead(context.Context, *MarkReadRequest) (*Ack, error)
	ListNotifications(context.Context, *ListNotificationsRequest) (*NotificationsResponse, error)
	MarkNotificationsRead(context.Context, *MarkNotificationsReadRequest) (*Ack, error)
	WatchEvents(*WatchEventsRequest, EventSender) error
}

// EventSender is the server side of WatchEvents.
type EventSender interface {
	Send(*Event) error
	Context() context.Context
}

// EventReceiver is the client side of WatchEvents.
type EventReceiver interface {
	Recv() (*Event, error)
	grpc.ClientStream
}

func method(name string) string { return "/" + ServiceName + "/" + name }

// unary adapts a SyncServer method to a grpc.MethodDesc.
func unary[Req, Resp any](name string, call func(SyncServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SyncServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SyncServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes SyncService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SyncServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStatus", SyncServer.GetStatus),
		unary("Login", SyncServer.Login),
		unary("Logout", SyncServer.Logout),
		unary("Reconnect", SyncServer.Reconnect),
		unary("ListPeers", SyncServer.ListPeers),
		unary("SelectPeer", SyncServer.SelectPeer),
		unary("ListMessages", SyncServer.ListMessages),
		unary("SendMessage", SyncServer.SendMessage),
		unary("MarkRead", SyncServer.MarkRead),
		unary("ListNotifications", SyncServer.ListNotifications),
		unary("MarkNotificationsRead", SyncServer.MarkNotificationsRead),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "socialsync/v1/sync.proto",
}

// RegisterSyncServiceServer registers srv on s.
func RegisterSyncServiceServer(s grpc.ServiceRegistrar, srv SyncServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchEventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SyncServer).WatchEvents(in, &eventSender{stream})
}

type eventSender struct {
	grpc.ServerStream
}

func (s *eventSender) Send(e *Event) error {
	return s.ServerStream.SendMsg(e)
}
