package chat

import "github.com/matheus3301/socialsync/internal/model"

// Options tune how incoming messages are folded into the state.
type Options struct {
	// FilterIncoming drops live messages outside the selected conversation.
	// Off by default: every received message is appended.
	FilterIncoming bool
	// CountUnread increments a peer's counter for messages received while
	// another conversation is selected.
	CountUnread bool
}

// DefaultOptions appends everything and counts unread messages.
func DefaultOptions() Options {
	return Options{CountUnread: true}
}

// State is one immutable snapshot of the chat state of a session. Reducers
// never modify their input; callers must treat slices and maps as read-only.
type State struct {
	Self     string
	Peers    []model.Identity
	Selected string
	Messages []model.Message
	Unread   map[string]int
	Presence Presence
	Loading  bool
}

// Peer returns the peer with the given id.
func (s State) Peer(id string) (model.Identity, bool) {
	for _, p := range s.Peers {
		if p.ID == id {
			return p, true
		}
	}
	return model.Identity{}, false
}

// IsOnline reports presence of id in this snapshot.
func (s State) IsOnline(id string) bool {
	return s.Presence.IsOnline(id)
}

// WithSelf starts a fresh state for a signed-in user.
func WithSelf(self string) State {
	return State{Self: self, Unread: map[string]int{}, Presence: Presence{}}
}

// ApplyPeers stores the peer list in server order, without the current user.
func ApplyPeers(s State, users []model.Identity) State {
	peers := make([]model.Identity, 0, len(users))
	for _, u := range users {
		if u.ID == "" || u.ID == s.Self {
			continue
		}
		peers = append(peers, u)
	}
	s.Peers = peers
	return s
}

// ApplySelect switches the active conversation and clears its unread counter.
// The message list is left as is until the history for the new pair lands.
func ApplySelect(s State, peer string) State {
	s.Selected = peer
	s.Loading = true
	return MarkRead(s, peer)
}

// ApplyHistory replaces the message list with a fetched conversation.
func ApplyHistory(s State, msgs []model.Message) State {
	s.Messages = append([]model.Message(nil), msgs...)
	s.Loading = false
	return s
}

// ApplyHistoryFailed ends a load that produced no history.
func ApplyHistoryFailed(s State) State {
	s.Loading = false
	return s
}

// ApplyIncoming folds one live message into the state. By default it is
// appended whatever conversation it belongs to.
func ApplyIncoming(s State, msg model.Message, opts Options) State {
	if opts.CountUnread && countsAsUnread(s, msg) {
		s.Unread = withCount(s.Unread, msg.SenderID, s.Unread[msg.SenderID]+1)
	}
	if opts.FilterIncoming && (s.Selected == "" || !msg.Involves(s.Self, s.Selected)) {
		return s
	}
	msgs := make([]model.Message, len(s.Messages), len(s.Messages)+1)
	copy(msgs, s.Messages)
	s.Messages = append(msgs, msg)
	return s
}

// ApplyPresence replaces the presence set.
func ApplyPresence(s State, ids []string) State {
	s.Presence = s.Presence.Replace(ids)
	return s
}

func countsAsUnread(s State, msg model.Message) bool {
	return msg.SenderID != "" &&
		msg.SenderID != s.Self &&
		msg.SenderID != s.Selected &&
		msg.ReceiverID == s.Self
}
