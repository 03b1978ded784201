package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/socialsync/internal/api"
	"github.com/rivo/tview"
)

// PeerList is the conversation partner table: presence, name, unread.
type PeerList struct {
	*tview.Table
	peers []api.Peer
}

// NewPeerList creates an empty peer table.
func NewPeerList() *PeerList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Peers ")
	return &PeerList{Table: table}
}

// Update redraws the table, keeping the cursor on the same peer when it is
// still listed.
func (pl *PeerList) Update(peers []api.Peer) {
	keep := pl.SelectedPeer()
	pl.peers = peers
	pl.Clear()

	pl.SetCell(0, 0, tview.NewTableCell("").SetSelectable(false))
	pl.SetCell(0, 1, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	pl.SetCell(0, 2, tview.NewTableCell(" Unread").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	cursor := 1
	for i, p := range peers {
		row := i + 1
		dot := tview.NewTableCell(" ○")
		if p.Online {
			dot = tview.NewTableCell(" ●").SetTextColor(tcell.ColorGreen)
		}
		name := p.Name
		if name == "" {
			name = p.ID
		}
		unread := ""
		if p.Unread > 0 {
			unread = fmt.Sprintf(" %d", p.Unread)
		}
		nameCell := tview.NewTableCell(" " + sanitizeForTerminal(name)).SetMaxWidth(30).SetExpansion(1)
		if p.Selected {
			nameCell.SetAttributes(tcell.AttrBold)
		}
		pl.SetCell(row, 0, dot)
		pl.SetCell(row, 1, nameCell)
		pl.SetCell(row, 2, tview.NewTableCell(unread).SetTextColor(tcell.ColorYellow))
		if p.ID == keep {
			cursor = row
		}
	}
	if len(peers) > 0 {
		pl.Select(cursor, 0)
	}
}

// SelectedPeer returns the id of the peer under the cursor.
func (pl *PeerList) SelectedPeer() string {
	row, _ := pl.GetSelection()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(pl.peers) {
		return pl.peers[idx].ID
	}
	return ""
}

// Peer looks a listed peer up by id.
func (pl *PeerList) Peer(id string) (api.Peer, bool) {
	for _, p := range pl.peers {
		if p.ID == id {
			return p, true
		}
	}
	return api.Peer{}, false
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02 15:04")
}
