package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays the session, connection state, signed-in user and badges.
type StatusBar struct {
	*tview.TextView
	session string
	state   string
	user    string
	unread  int
	hints   []string
	flash   string
	isError bool
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetSession updates the session name display.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetConnection updates the connection state and signed-in user.
func (sb *StatusBar) SetConnection(state, user string) {
	sb.state = state
	sb.user = user
	sb.render()
}

// SetNotifications updates the unread notification badge.
func (sb *StatusBar) SetNotifications(unread int) {
	sb.unread = unread
	sb.render()
}

// SetHints updates the key hints shown for the current page.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetFlash sets a temporary message. Errors render in red.
func (sb *StatusBar) SetFlash(msg string, isError bool) {
	sb.flash = msg
	sb.isError = isError
	sb.render()
}

func stateColor(state string) string {
	switch state {
	case "ONLINE":
		return "green"
	case "CONNECTING":
		return "yellow"
	case "DROPPED", "ERROR":
		return "red"
	default:
		return "gray"
	}
}

func (sb *StatusBar) render() {
	sb.Clear()

	user := sb.user
	if user == "" {
		user = "signed out"
	}
	line := fmt.Sprintf(" [::b]%s[-:-:-] | [%s]%s[-] %s", sb.session, stateColor(sb.state), sb.state, tview.Escape(user))
	if sb.unread > 0 {
		line += fmt.Sprintf(" | [yellow]%d new[-]", sb.unread)
	}
	line += " | " + time.Now().Format("15:04")
	switch {
	case sb.flash != "" && sb.isError:
		line += fmt.Sprintf(" | [red]%s[-]", tview.Escape(sb.flash))
	case sb.flash != "":
		line += fmt.Sprintf(" | [yellow]%s[-]", tview.Escape(sb.flash))
	case len(sb.hints) > 0:
		line += " | [::d]" + strings.Join(sb.hints, " ") + "[-:-:-]"
	}

	_, _ = fmt.Fprint(sb, line)
}
