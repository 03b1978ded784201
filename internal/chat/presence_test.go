package chat

import (
	"reflect"
	"testing"
)

func TestPresenceReplace(t *testing.T) {
	broadcasts := [][]string{
		{"a", "b", "c"},
		{"b"},
		{},
		{"c", "c", "d"},
		nil,
		{"e"},
	}
	all := []string{"a", "b", "c", "d", "e"}

	p := Presence{}
	for i, ids := range broadcasts {
		p = p.Replace(ids)
		want := map[string]bool{}
		for _, id := range ids {
			want[id] = true
		}
		for _, id := range all {
			if got := p.IsOnline(id); got != want[id] {
				t.Errorf("broadcast %d: IsOnline(%q) = %v, want %v", i, id, got, want[id])
			}
		}
	}
}

func TestPresenceReplaceDoesNotAliasPrevious(t *testing.T) {
	before := NewPresence([]string{"a"})
	after := before.Replace([]string{"b"})
	if !before.IsOnline("a") || before.IsOnline("b") {
		t.Error("Replace modified the previous set")
	}
	if after.IsOnline("a") || !after.IsOnline("b") {
		t.Errorf("after = %v", after.IDs())
	}
}

func TestPresenceIDs(t *testing.T) {
	p := NewPresence([]string{"c", "", "a", "b", "a"})
	if got, want := p.IDs(), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
}
