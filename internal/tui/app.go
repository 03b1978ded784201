package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/socialsync/internal/api"
	"github.com/matheus3301/socialsync/internal/bus"
	"github.com/matheus3301/socialsync/internal/tui/client"
	"github.com/matheus3301/socialsync/internal/tui/keys"
	"github.com/matheus3301/socialsync/internal/tui/model"
	"github.com/matheus3301/socialsync/internal/tui/views"
	domain "github.com/matheus3301/socialsync/internal/model"
	"github.com/rivo/tview"
	grpcstatus "google.golang.org/grpc/status"
)

const (
	pagePeers         = "peers"
	pageChat          = "chat"
	pageNotifications = "notifications"

	flashFor = 5 * time.Second
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	root      *tview.Flex
	pages     *tview.Pages
	vm        *model.ViewModel
	grpc      *client.Client
	registry  *keys.Registry
	statusBar *views.StatusBar
	peerList  *views.PeerList
	msgView   *views.MessageView
	composer  *views.Composer
	notesView *views.NotificationList
	prompt    *tview.InputField
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *client.Client, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        model.NewViewModel(c),
		grpc:      c,
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(),
		peerList:  views.NewPeerList(),
		msgView:   views.NewMessageView(),
		composer:  views.NewComposer(),
		notesView: views.NewNotificationList(),
		prompt:    tview.NewInputField().SetLabel(":").SetFieldWidth(0),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetSession(sessionName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: a.Stop,
	})
	a.registry.AddGlobal(&keys.Action{
		Rune: ':', Key: tcell.KeyRune,
		Description: ":cmd", Visible: true,
		Handler: a.showPrompt,
	})
	a.registry.AddGlobal(&keys.Action{
		Rune: 'n', Key: tcell.KeyRune,
		Description: "n:notifications", Visible: true,
		Handler: a.showNotifications,
	})
	a.registry.AddPage(pagePeers, &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:refresh", Visible: true,
		Handler: func() { a.reload(model.PaneAll) },
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Rune: 'i', Key: tcell.KeyRune,
		Description: "i:compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.composer) },
	})
	a.registry.AddPage(pageNotifications, &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:mark read", Visible: true,
		Handler: func() { a.runCommand(Command{Name: "seen"}) },
	})
}

func (a *App) setupCallbacks() {
	a.peerList.SetSelectedFunc(func(row, col int) {
		if id := a.peerList.SelectedPeer(); id != "" {
			a.openChat(id)
		}
	})

	a.composer.SetOnSend(func(text string) {
		go func() {
			if err := a.vm.Send(a.ctx, text); err != nil {
				a.vm.Flash.Error("Send failed: "+errorText(err), flashFor)
				a.app.QueueUpdateDraw(a.renderFlash)
			}
		}()
	})

	a.prompt.SetDoneFunc(func(key tcell.Key) {
		text := a.prompt.GetText()
		a.hidePrompt()
		if key == tcell.KeyEnter {
			a.runCommand(ParseCommand(text))
		}
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage(pagePeers, a.peerList, true, true)
	a.pages.AddPage(pageChat, chatFlex, true, false)
	a.pages.AddPage(pageNotifications, a.notesView, true, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.statusBar.SetHints(a.registry.Hints(pagePeers))

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		// Let text input widgets handle all keys normally.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			if event.Key() == tcell.KeyEscape && a.app.GetFocus() == a.composer.InputField {
				a.app.SetFocus(a.msgView)
				return nil
			}
			return event
		}

		if event.Key() == tcell.KeyEscape && currentPage != pagePeers {
			a.switchTo(pagePeers, a.peerList)
			return nil
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}
		return event
	})
}

func (a *App) switchTo(page string, focus tview.Primitive) {
	a.pages.SwitchToPage(page)
	a.app.SetFocus(focus)
	a.statusBar.SetHints(a.registry.Hints(page))
}

func (a *App) showPrompt() {
	a.prompt.SetText("")
	a.root.RemoveItem(a.statusBar)
	a.root.AddItem(a.prompt, 1, 0, true)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.RemoveItem(a.prompt)
	a.root.AddItem(a.statusBar, 1, 0, false)
	page, item := a.pages.GetFrontPage()
	if page == pageChat {
		item = a.msgView
	}
	a.app.SetFocus(item)
}

func (a *App) openChat(id string) {
	name := id
	online := false
	if p, ok := a.peerList.Peer(id); ok {
		if p.Name != "" {
			name = p.Name
		}
		online = p.Online
	}
	a.msgView.SetPeer(name, online)
	a.msgView.Update(nil, a.vm.Self(), true)
	a.switchTo(pageChat, a.msgView)

	go func() {
		if err := a.vm.Open(a.ctx, id); err != nil {
			a.vm.Flash.Error("Load failed: "+errorText(err), flashFor)
		}
		a.app.QueueUpdateDraw(func() {
			a.renderThread()
			a.renderFlash()
		})
	}()
}

func (a *App) showNotifications() {
	a.switchTo(pageNotifications, a.notesView)
	go func() {
		if err := a.vm.ViewNotifications(a.ctx); err != nil {
			a.vm.Flash.Error("Notifications: "+errorText(err), flashFor)
		}
		a.app.QueueUpdateDraw(func() {
			a.renderNotifications()
			a.renderStatus()
			a.renderFlash()
		})
	}()
}

// runCommand executes a ':' command. Calls to the daemon run off the UI
// goroutine.
func (a *App) runCommand(cmd Command) {
	c := a.vm.Client()
	var call func(ctx context.Context) (string, error)
	switch cmd.Name {
	case "":
		return
	case "q", "quit":
		a.Stop()
		return
	case "login":
		id := domain.Identity{ID: cmd.Arg(0), Name: strings.Join(cmd.Args[min(1, len(cmd.Args)):], " ")}
		call = func(ctx context.Context) (string, error) {
			resp, err := c.Login(ctx, &api.LoginRequest{Identity: id})
			if err != nil {
				return "", err
			}
			return "Signed in as " + resp.Identity.ID, nil
		}
	case "logout":
		call = func(ctx context.Context) (string, error) {
			_, err := c.Logout(ctx, &api.LogoutRequest{})
			return "Signed out", err
		}
	case "reconnect":
		call = func(ctx context.Context) (string, error) {
			resp, err := c.Reconnect(ctx, &api.ReconnectRequest{})
			if err != nil {
				return "", err
			}
			return "Live channel " + resp.Message, nil
		}
	case "read":
		peer := cmd.Arg(0)
		if peer == "" {
			peer = a.vm.Thread().PeerID
		}
		call = func(ctx context.Context) (string, error) {
			_, err := c.MarkRead(ctx, &api.MarkReadRequest{PeerID: peer})
			return "Marked read", err
		}
	case "seen":
		call = func(ctx context.Context) (string, error) {
			_, err := c.MarkNotificationsRead(ctx, &api.MarkNotificationsReadRequest{})
			return "Notifications marked read", err
		}
	default:
		a.vm.Flash.Error("Unknown command: "+cmd.Name, flashFor)
		a.renderFlash()
		return
	}

	go func() {
		msg, err := call(a.ctx)
		if err != nil {
			a.vm.Flash.Error(cmd.Name+": "+errorText(err), flashFor)
		} else {
			a.vm.Flash.Info(msg, flashFor)
		}
		_ = a.vm.Reload(a.ctx, model.PaneAll)
		a.app.QueueUpdateDraw(a.renderAll)
	}()
}

func (a *App) reload(panes model.Pane) {
	go func() {
		if err := a.vm.Reload(a.ctx, panes); err != nil {
			a.vm.Flash.Error(errorText(err), flashFor)
		}
		a.app.QueueUpdateDraw(func() { a.render(panes) })
	}()
}

func (a *App) render(panes model.Pane) {
	if panes.Has(model.PaneStatus) {
		a.renderStatus()
	}
	if panes.Has(model.PanePeers) {
		a.peerList.Update(a.vm.Peers())
	}
	if panes.Has(model.PaneThread) {
		a.renderThread()
	}
	if panes.Has(model.PaneNotifications) {
		a.renderNotifications()
	}
	a.renderFlash()
}

func (a *App) renderAll() { a.render(model.PaneAll) }

func (a *App) renderStatus() {
	st := a.vm.Status()
	if st == nil {
		return
	}
	user := ""
	if st.Identity != nil {
		user = st.Identity.Name
		if user == "" {
			user = st.Identity.ID
		}
	}
	a.statusBar.SetConnection(st.State, user)
	a.statusBar.SetNotifications(st.UnreadNotifications)
}

func (a *App) renderThread() {
	th := a.vm.Thread()
	if th.PeerID == "" {
		return
	}
	if p, ok := a.peerList.Peer(th.PeerID); ok {
		name := p.Name
		if name == "" {
			name = p.ID
		}
		a.msgView.SetPeer(name, p.Online)
	}
	a.msgView.Update(th.Messages, a.vm.Self(), th.Loading)
}

func (a *App) renderNotifications() {
	items, unread := a.vm.Notifications()
	a.notesView.Update(items, unread)
}

func (a *App) renderFlash() {
	msg, isErr := a.vm.Flash.Get()
	a.statusBar.SetFlash(msg, isErr)
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		err := a.vm.Reload(a.ctx, model.PaneAll)
		if err != nil {
			a.vm.Flash.Error(errorText(err), flashFor)
		} else if a.vm.Self() == "" {
			a.vm.Flash.Info("Not signed in, use :login <uid> [name]", 30*time.Second)
		}
		a.app.QueueUpdateDraw(a.renderAll)

		go a.watchEvents()
		a.startClock()
	}()

	return a.app.Run()
}

// watchEvents reloads the panes each daemon event invalidates.
func (a *App) watchEvents() {
	stream, err := a.grpc.WatchEvents(a.ctx, &api.WatchEventsRequest{})
	if err != nil {
		a.vm.Flash.Error("Event stream: "+errorText(err), flashFor)
		return
	}
	for {
		evt, err := stream.Recv()
		if err != nil {
			if a.ctx.Err() == nil && !errors.Is(err, io.EOF) {
				a.vm.Flash.Error("Event stream closed: "+errorText(err), time.Minute)
				a.app.QueueUpdateDraw(a.renderFlash)
			}
			return
		}
		if evt.Kind == bus.KindSendFailed {
			a.vm.Flash.Error("Send failed: "+evt.Payload.Text("error"), flashFor)
		}
		panes := model.Affected(evt)
		if panes == 0 {
			continue
		}
		_ = a.vm.Reload(a.ctx, panes)
		a.app.QueueUpdateDraw(func() { a.render(panes) })
	}
}

// startClock keeps the status line clock current and expires flashes.
func (a *App) startClock() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.app.QueueUpdateDraw(a.renderFlash)
		case <-a.ctx.Done():
			return
		}
	}
}

func errorText(err error) string {
	if st, ok := grpcstatus.FromError(err); ok {
		return st.Message()
	}
	return fmt.Sprint(err)
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
