package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const historySize = 50

// Composer is the message input. Up and Down walk back through what was
// sent in this run.
type Composer struct {
	*tview.InputField
	onSend  func(text string)
	history []string
	cursor  int
}

// NewComposer creates a new message composer.
func NewComposer() *Composer {
	c := &Composer{
		InputField: tview.NewInputField().
			SetLabel(" > ").
			SetPlaceholder("i to type, enter to send, esc to leave").
			SetFieldWidth(0),
	}
	c.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			c.submit()
		}
	})
	c.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyUp:
			c.recall(-1)
			return nil
		case tcell.KeyDown:
			c.recall(1)
			return nil
		}
		return ev
	})
	return c
}

// SetOnSend sets the callback when a message is sent.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

func (c *Composer) submit() {
	text := strings.TrimSpace(c.GetText())
	if text == "" || c.onSend == nil {
		return
	}
	c.onSend(text)
	c.history = append(c.history, text)
	if len(c.history) > historySize {
		c.history = c.history[len(c.history)-historySize:]
	}
	c.cursor = len(c.history)
	c.SetText("")
}

// recall moves through the history by step; past the newest entry the
// field is cleared.
func (c *Composer) recall(step int) {
	if len(c.history) == 0 {
		return
	}
	c.cursor = max(0, min(len(c.history), c.cursor+step))
	if c.cursor == len(c.history) {
		c.SetText("")
		return
	}
	c.SetText(c.history[c.cursor])
}
