package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/matheus3301/socialsync/internal/api"
	"github.com/matheus3301/socialsync/internal/model"
	"github.com/matheus3301/socialsync/internal/session"
	"github.com/matheus3301/socialsync/internal/tui/client"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "sessions" {
		cmdSessions(*jsonFlag)
		return
	}

	socketPath := session.SocketPath(sessionName)
	c, err := client.New(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	if args[0] == "watch" {
		cmdWatch(c, args[1:], *jsonFlag)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out any
	switch args[0] {
	case "status":
		out, err = cmdStatus(ctx, c, *jsonFlag)
	case "login":
		out, err = cmdLogin(ctx, c, args[1:])
	case "logout":
		out, err = c.Logout(ctx, &api.LogoutRequest{})
	case "reconnect":
		out, err = c.Reconnect(ctx, &api.ReconnectRequest{})
	case "peers":
		out, err = cmdPeers(ctx, c, *jsonFlag)
	case "history":
		if len(args) < 2 {
			usageError("usage: syncctl history <peer-id>")
		}
		out, err = cmdHistory(ctx, c, args[1], *jsonFlag)
	case "send":
		if len(args) < 3 {
			usageError("usage: syncctl send <peer-id> <text...>")
		}
		out, err = c.SendMessage(ctx, &api.SendMessageRequest{PeerID: args[1], Text: strings.Join(args[2:], " ")})
	case "read":
		if len(args) < 2 {
			usageError("usage: syncctl read <peer-id>")
		}
		out, err = c.MarkRead(ctx, &api.MarkReadRequest{PeerID: args[1]})
	case "notifications":
		out, err = cmdNotifications(ctx, c, args[1:], *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if out == nil {
		return
	}
	if *jsonFlag {
		outputJSON(out)
		return
	}
	if ack, ok := out.(*api.Ack); ok {
		if ack.Message == "" {
			ack.Message = "ok"
		}
		fmt.Println(ack.Message)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: syncctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                   Show daemon and connection status")
	fmt.Fprintln(os.Stderr, "  login [uid [name]]       Sign in (defaults to the configured identity)")
	fmt.Fprintln(os.Stderr, "  logout                   Sign out and close the live channel")
	fmt.Fprintln(os.Stderr, "  reconnect                Reopen a dropped live channel")
	fmt.Fprintln(os.Stderr, "  peers                    List peers with presence and unread counts")
	fmt.Fprintln(os.Stderr, "  history <peer>           Open a conversation and print it")
	fmt.Fprintln(os.Stderr, "  send <peer> <text...>    Send a message")
	fmt.Fprintln(os.Stderr, "  read <peer>              Reset a conversation's unread counter")
	fmt.Fprintln(os.Stderr, "  notifications [read]     List notifications, or mark them all read")
	fmt.Fprintln(os.Stderr, "  watch [prefix...]        Stream daemon events")
	fmt.Fprintln(os.Stderr, "  sessions                 List known sessions")
}

func usageError(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

// Commands returning nil have already printed their human-readable output.

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) (any, error) {
	resp, err := c.GetStatus(ctx, &api.GetStatusRequest{})
	if err != nil || jsonOut {
		return resp, err
	}
	user := "-"
	if resp.Identity != nil {
		user = displayName(*resp.Identity)
	}
	fmt.Printf("Session:  %s\n", resp.Session)
	fmt.Printf("Backend:  %s\n", resp.BaseURL)
	fmt.Printf("State:    %s\n", resp.State)
	fmt.Printf("User:     %s\n", user)
	fmt.Printf("Peers:    %d (%d online)\n", resp.Peers, resp.Online)
	fmt.Printf("Unread:   %d messages, %d notifications\n", resp.UnreadMessages, resp.UnreadNotifications)
	fmt.Printf("Uptime:   %s\n", time.Duration(resp.UptimeMs)*time.Millisecond)
	return nil, nil
}

func cmdLogin(ctx context.Context, c *client.Client, args []string) (any, error) {
	var id model.Identity
	if len(args) > 0 {
		id.ID = args[0]
	}
	if len(args) > 1 {
		id.Name = strings.Join(args[1:], " ")
	}
	resp, err := c.Login(ctx, &api.LoginRequest{Identity: id})
	if err != nil {
		return nil, err
	}
	return &api.Ack{Message: fmt.Sprintf("signed in as %s (%s)", displayName(resp.Identity), resp.State)}, nil
}

func cmdPeers(ctx context.Context, c *client.Client, jsonOut bool) (any, error) {
	resp, err := c.ListPeers(ctx, &api.ListPeersRequest{Refresh: true})
	if err != nil || jsonOut {
		return resp, err
	}
	if len(resp.Peers) == 0 {
		fmt.Println("No peers.")
		return nil, nil
	}
	for _, p := range resp.Peers {
		dot := " "
		if p.Online {
			dot = "●"
		}
		unread := ""
		if p.Unread > 0 {
			unread = fmt.Sprintf("(%d)", p.Unread)
		}
		fmt.Printf("%s %-24s %-20s %s\n", dot, p.ID, displayName(p.Identity), unread)
	}
	return nil, nil
}

func cmdHistory(ctx context.Context, c *client.Client, peer string, jsonOut bool) (any, error) {
	resp, err := c.SelectPeer(ctx, &api.SelectPeerRequest{PeerID: peer})
	if err != nil || jsonOut {
		return resp, err
	}
	for _, m := range resp.Messages {
		who := "them"
		if m.SenderID != peer {
			who = "me"
		}
		body := m.Text
		if m.Image != "" {
			body = strings.TrimSpace(body + " [image " + m.Image + "]")
		}
		fmt.Printf("%s %-4s %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), who, body)
	}
	return nil, nil
}

func cmdNotifications(ctx context.Context, c *client.Client, args []string, jsonOut bool) (any, error) {
	if len(args) > 0 && args[0] == "read" {
		return c.MarkNotificationsRead(ctx, &api.MarkNotificationsReadRequest{})
	}
	resp, err := c.ListNotifications(ctx, &api.ListNotificationsRequest{Refresh: true})
	if err != nil || jsonOut {
		return resp, err
	}
	if len(resp.Notifications) == 0 {
		fmt.Println("No notifications.")
		return nil, nil
	}
	for _, n := range resp.Notifications {
		mark := " "
		if !n.Read {
			mark = "*"
		}
		fmt.Printf("%s %s %-10s %s\n", mark, n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Type, n.Message)
	}
	return nil, nil
}

func cmdWatch(c *client.Client, prefixes []string, jsonOut bool) {
	stream, err := c.WatchEvents(context.Background(), &api.WatchEventsRequest{Prefixes: prefixes})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	for {
		evt, err := stream.Recv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "stream closed: %v\n", err)
			os.Exit(1)
		}
		if jsonOut {
			outputJSON(evt)
			continue
		}
		payload := ""
		if evt.Payload != nil {
			if b, err := evt.Payload.MarshalJSON(); err == nil {
				payload = string(b)
			}
		}
		ts := time.UnixMilli(evt.OccurredAtUnixMs).Format("15:04:05.000")
		fmt.Printf("%s %-28s %s\n", ts, evt.Kind, payload)
	}
}

func cmdSessions(jsonOut bool) {
	names, err := session.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	type entry struct {
		Name    string `json:"name"`
		Path    string `json:"path"`
		Running bool   `json:"running"`
	}
	list := make([]entry, 0, len(names))
	for _, n := range names {
		list = append(list, entry{Name: n, Path: session.Dir(n), Running: client.Probe(session.SocketPath(n), time.Second)})
	}
	if jsonOut {
		outputJSON(list)
		return
	}
	if len(list) == 0 {
		fmt.Println("No sessions found.")
		return
	}
	for _, e := range list {
		running := "stopped"
		if e.Running {
			running = "running"
		}
		fmt.Printf("%-20s %s (%s)\n", e.Name, e.Path, running)
	}
}

func displayName(id model.Identity) string {
	if id.Name != "" {
		return id.Name
	}
	return id.ID
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
