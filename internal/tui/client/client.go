package client

import (
	"context"
	"time"

	"github.com/matheus3301/socialsync/internal/api"
	"google.golang.org/grpc"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn *grpc.ClientConn
	*api.Client
}

// New dials the daemon's Unix domain socket and returns a typed client.
func New(socketPath string) (*Client, error) {
	conn, err := api.Dial(socketPath)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, Client: api.NewClient(conn)}, nil
}

// Probe reports whether a daemon answers on the socket within timeout.
func Probe(socketPath string, timeout time.Duration) bool {
	c, err := New(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err = c.GetStatus(ctx, &api.GetStatusRequest{})
	return err == nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
