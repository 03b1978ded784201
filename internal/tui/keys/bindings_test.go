package keys

import (
	"reflect"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestHandleEventPrefersPageBinding(t *testing.T) {
	r := NewRegistry()
	var got string
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'n', Handler: func() { got = "global" }})
	r.AddPage("chat", &Action{Key: tcell.KeyRune, Rune: 'n', Handler: func() { got = "page" }})

	tests := []struct {
		page string
		want string
	}{
		{"chat", "page"},
		{"peers", "global"},
	}
	for _, tt := range tests {
		got = ""
		if !r.HandleEvent(tt.page, tcell.NewEventKey(tcell.KeyRune, 'n', tcell.ModNone)) {
			t.Fatalf("%s: no handler matched", tt.page)
		}
		if got != tt.want {
			t.Errorf("%s: ran %q, want %q", tt.page, got, tt.want)
		}
	}
}

func TestHandleEventNoMatch(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Key: tcell.KeyCtrlR, Handler: func() { t.Error("unexpected handler") }})
	if r.HandleEvent("peers", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
		t.Error("HandleEvent() = true for unbound key")
	}
}

func TestHintsOrder(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Description: "q:quit", Visible: true})
	r.AddGlobal(&Action{Description: "hidden"})
	r.AddPage("peers", &Action{Description: "enter:open", Visible: true})
	r.AddPage("peers", &Action{Description: "n:notifications", Visible: true})

	want := []string{"enter:open", "n:notifications", "q:quit"}
	if got := r.Hints("peers"); !reflect.DeepEqual(got, want) {
		t.Errorf("Hints() = %v, want %v", got, want)
	}
}
