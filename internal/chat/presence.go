package chat

import "sort"

// Presence is the set of user ids the server last reported online. Values are
// immutable; Replace builds a new set.
type Presence map[string]struct{}

// NewPresence builds a set from a broadcast. Duplicates collapse and empty
// ids are skipped.
func NewPresence(ids []string) Presence {
	p := make(Presence, len(ids))
	for _, id := range ids {
		if id != "" {
			p[id] = struct{}{}
		}
	}
	return p
}

// Replace returns the set described by the latest broadcast. The previous set
// is discarded entirely: an id missing from ids is offline.
func (p Presence) Replace(ids []string) Presence {
	return NewPresence(ids)
}

// IsOnline reports whether id was in the most recent broadcast.
func (p Presence) IsOnline(id string) bool {
	_, ok := p[id]
	return ok
}

// IDs returns the online ids in lexical order.
func (p Presence) IDs() []string {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
