package chat

// MarkRead resets the unread counter of peer. Other counters are untouched.
// This is a local acknowledgement; nothing is sent to the backend.
func MarkRead(s State, peer string) State {
	if peer == "" {
		return s
	}
	if n, ok := s.Unread[peer]; ok && n == 0 {
		return s
	}
	s.Unread = withCount(s.Unread, peer, 0)
	return s
}

// ClearUnread resets every counter. It is applied when the backend reports
// the user's notifications read, which covers message notifications too.
func ClearUnread(s State) State {
	if TotalUnread(s) == 0 {
		return s
	}
	cleared := make(map[string]int, len(s.Unread))
	for peer := range s.Unread {
		cleared[peer] = 0
	}
	s.Unread = cleared
	return s
}

// UnreadFor returns the counter of peer.
func UnreadFor(s State, peer string) int {
	return s.Unread[peer]
}

// TotalUnread sums all counters.
func TotalUnread(s State) int {
	total := 0
	for _, n := range s.Unread {
		total += n
	}
	return total
}

// withCount returns a copy of m with m[key] = n.
func withCount(m map[string]int, key string, n int) map[string]int {
	out := make(map[string]int, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = n
	return out
}
