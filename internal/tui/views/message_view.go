package views

import (
	"fmt"

	"github.com/matheus3301/socialsync/internal/model"
	"github.com/rivo/tview"
)

// MessageView displays the conversation with the selected peer.
type MessageView struct {
	*tview.TextView
	peerName string
}

// NewMessageView creates a new message view.
func NewMessageView() *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &MessageView{TextView: tv}
}

// SetPeer updates the title with the peer's name and presence.
func (mv *MessageView) SetPeer(name string, online bool) {
	mv.peerName = name
	state := "offline"
	if online {
		state = "[green]online[-]"
	}
	mv.SetTitle(fmt.Sprintf(" %s (%s) ", tview.Escape(sanitizeForTerminal(name)), state))
}

// Update redraws the thread. Messages arrive in server order, oldest first.
func (mv *MessageView) Update(msgs []model.Message, self string, loading bool) {
	mv.Clear()
	if loading && len(msgs) == 0 {
		_, _ = fmt.Fprint(mv, "[::d]loading...[-:-:-]")
		return
	}
	for _, m := range msgs {
		sender := mv.peerName
		if m.SenderID == self {
			sender = "You"
		}
		body := tview.Escape(sanitizeForTerminal(m.Text))
		if m.Image != "" {
			if body != "" {
				body += "\n"
			}
			body += "[::i][image " + tview.Escape(m.Image) + "][-:-:-]"
		}
		_, _ = fmt.Fprintf(mv, "[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n", tview.Escape(sender), formatTimestamp(m.CreatedAt), body)
	}
	if loading {
		_, _ = fmt.Fprint(mv, "[::d]refreshing...[-:-:-]")
	}
	mv.ScrollToEnd()
}
