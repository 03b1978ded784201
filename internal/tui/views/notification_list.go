package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/socialsync/internal/model"
	"github.com/rivo/tview"
)

// NotificationList shows the held notifications, newest first.
type NotificationList struct {
	*tview.Table
	data []model.Notification
}

// NewNotificationList creates an empty notification table.
func NewNotificationList() *NotificationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Notifications ")
	return &NotificationList{Table: table}
}

// Update redraws the table.
func (nl *NotificationList) Update(items []model.Notification, unread int) {
	nl.data = items
	nl.Clear()
	if unread > 0 {
		nl.SetTitle(fmt.Sprintf(" Notifications (%d new) ", unread))
	} else {
		nl.SetTitle(" Notifications ")
	}

	nl.SetCell(0, 0, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	nl.SetCell(0, 1, tview.NewTableCell(" Type").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	nl.SetCell(0, 2, tview.NewTableCell(" Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, n := range items {
		row := i + 1
		msg := tview.NewTableCell(" " + sanitizeForTerminal(n.Message)).SetExpansion(1)
		if !n.Read {
			msg.SetAttributes(tcell.AttrBold)
		}
		nl.SetCell(row, 0, tview.NewTableCell(" "+formatTimestamp(n.CreatedAt)).SetMaxWidth(12))
		nl.SetCell(row, 1, tview.NewTableCell(" "+n.Type).SetMaxWidth(14).SetTextColor(tcell.ColorAqua))
		nl.SetCell(row, 2, msg)
	}
	if len(items) == 0 {
		nl.SetCell(1, 2, tview.NewTableCell(" nothing yet").SetSelectable(false).SetTextColor(tcell.ColorGray))
	}
}
