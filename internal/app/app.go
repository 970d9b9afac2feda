package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/riptide-proxy/autostart-tui/internal/client"
	"github.com/riptide-proxy/autostart-tui/internal/driver"
	"github.com/riptide-proxy/autostart-tui/internal/progress"
	"github.com/riptide-proxy/autostart-tui/internal/protocol"
	"github.com/riptide-proxy/autostart-tui/internal/theme"
	"github.com/riptide-proxy/autostart-tui/internal/views/debug"
	"github.com/riptide-proxy/autostart-tui/internal/views/help"
	"github.com/riptide-proxy/autostart-tui/internal/views/status"
	"github.com/riptide-proxy/autostart-tui/internal/views/table"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlayHelp
)

// Options configure the root model.
type Options struct {
	Project  string
	Services []string
	// ExitAfterReload quits once the page reload has finished.
	ExitAfterReload bool
	// Headless quits as soon as the session can make no further progress.
	Headless bool
	Animate  bool
	Logger   *slog.Logger
}

// Result is the outcome of a session.
type Result struct {
	Project    string
	Phase      driver.Phase
	Diagnostic string
	Failed     []string
	Reload     *client.ReloadedMsg
}

// OK reports whether every service started and the session completed.
func (r Result) OK() bool {
	return r.Phase == driver.Completed && len(r.Failed) == 0
}

// core is the mutable session state. It is shared by every copy of Model
// and only touched from Update.
type core struct {
	driver  *driver.Driver
	table   *progress.Table
	status  status.Model
	debug   debug.Model
	pending []tea.Cmd
	reload  *client.ReloadedMsg
	log     *slog.Logger
}

// Diagnostic implements driver.Notifier.
func (c *core) Diagnostic(msg string) {
	c.status.Diagnostic(msg)
	c.debug.Add(debug.KindErr, msg)
	c.log.Warn(msg)
}

// sender logs every outbound command before handing it to the socket.
type sender struct {
	ws *client.WSClient
	c  *core
}

func (s sender) Send(cmd protocol.Command) error {
	if data, err := protocol.EncodeCommand(cmd); err == nil {
		s.c.debug.AddFrame(debug.KindOut, data)
	}
	return s.ws.Send(cmd)
}

// reloader queues the page reload as a command for the current Update.
type reloader struct {
	http *client.HTTPClient
	ctx  context.Context
	c    *core
}

func (r reloader) Reload() {
	if r.http == nil {
		r.c.pending = append(r.c.pending, func() tea.Msg { return client.ReloadedMsg{} })
		return
	}
	r.c.debug.Add(debug.KindOut, "GET "+r.http.PageURL())
	r.c.pending = append(r.c.pending, r.http.Reload(r.ctx))
}

// reporter logs row events and applies them to the table.
type reporter struct {
	*progress.Table
	log *slog.Logger
}

// live reports whether the table still accepts events for service.
func (r reporter) live(service string) bool {
	e, ok := r.Entry(service)
	return ok && !e.State.Terminal()
}

func (r reporter) OnProgress(service string, steps, current int, text string) {
	if r.live(service) {
		r.log.Info("service progress", "service", service, "step", current, "steps", steps, "text", text)
	}
	r.Table.OnProgress(service, steps, current, text)
}

func (r reporter) OnFinish(service string) {
	if r.live(service) {
		r.log.Info("service started", "service", service)
	}
	r.Table.OnFinish(service)
}

func (r reporter) OnError(service, message string) {
	if r.live(service) {
		r.log.Error("service failed", "service", service, "error", message)
	}
	r.Table.OnError(service, message)
}

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options

	keys    KeyMap
	width   int
	height  int
	overlay Overlay

	c     *core
	table table.Model
}

// New creates the root model. http may be nil to skip the page reload.
func New(ws *client.WSClient, http *client.HTTPClient, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	c := &core{
		table:  progress.NewTable(opts.Services...),
		status: status.New(opts.Project),
		debug:  debug.New(),
		log:    log,
	}
	c.driver = driver.New(opts.Project, driver.Deps{
		Sender:   sender{ws: ws, c: c},
		Reporter: reporter{Table: c.table, log: log},
		Reloader: reloader{http: http, ctx: ctx, c: c},
		Notifier: c,
		Logger:   log,
	})
	c.driver.OnPhase = func(from, to driver.Phase) {
		c.status.Phase = to.String()
		c.debug.Add(debug.KindPhase, fmt.Sprintf("%s -> %s", from, to))
	}

	m := Model{
		ws:     ws,
		http:   http,
		ctx:    ctx,
		cancel: cancel,
		opts:   opts,
		keys:   DefaultKeyMap(),
		c:      c,
		table:  table.New(opts.Animate),
	}
	c.status.Counts = c.table.Counts()
	m.table.Sync(c.table.Entries())
	return m
}

// Init opens the WebSocket connection.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.ws.Dial(m.ctx), m.c.status.Tick)
}

// Result returns the outcome so far.
func (m Model) Result() Result {
	return Result{
		Project:    m.opts.Project,
		Phase:      m.c.driver.Phase(),
		Diagnostic: m.c.status.LastDiagnostic(),
		Failed:     m.c.table.FailedServices(),
		Reload:     m.c.reload,
	}
}

// Entries returns the table rows.
func (m Model) Entries() []progress.Entry {
	return m.c.table.Entries()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.c.status.Width = msg.Width
		m.table.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.c.status, cmd = m.c.status.Update(msg)
		return m, cmd

	case table.AnimateMsg:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case client.OpenMsg:
		m.c.driver.OnOpen()
		return m, tea.Batch(m.ws.ReadLoop(m.ctx), m.drain())

	case client.FrameMsg:
		m.c.debug.AddFrame(debug.KindIn, msg.Data)
		m.c.driver.OnMessage(msg.Data)
		m.c.status.Counts = m.c.table.Counts()
		anim := m.table.Sync(m.c.table.Entries())
		return m, tea.Batch(m.ws.ReadLoop(m.ctx), anim, m.drain())

	case client.ClosedMsg:
		if msg.Err != nil {
			m.c.debug.Add(debug.KindErr, msg.Err.Error())
		}
		m.c.driver.OnClose(msg.Code, msg.Reason)
		if m.opts.Headless && m.c.driver.Phase() == driver.Closed {
			return m, m.quit()
		}
		return m, nil

	case client.ReloadedMsg:
		m.c.reload = &msg
		m.c.status.Reload = reloadSummary(msg)
		if msg.Err != nil {
			m.c.debug.Add(debug.KindErr, msg.Err.Error())
			m.c.log.Warn("page reload failed", "url", msg.URL, "error", msg.Err)
		} else if msg.URL != "" {
			m.c.debug.Add(debug.KindIn, fmt.Sprintf("%d %s", msg.StatusCode, msg.URL))
			m.c.log.Info("page reloaded", "url", msg.URL, "status", msg.StatusCode)
		}
		if m.opts.ExitAfterReload || m.opts.Headless {
			return m, m.quit()
		}
		return m, nil
	}

	return m, nil
}

// drain returns the commands queued by the driver during this Update.
func (m Model) drain() tea.Cmd {
	cmds := m.c.pending
	m.c.pending = nil
	return tea.Batch(cmds...)
}

func (m Model) quit() tea.Cmd {
	if err := m.ws.Close(); err != nil {
		m.c.log.Debug("ws close failed", "error", err)
	}
	m.cancel()
	return tea.Quit
}

func reloadSummary(msg client.ReloadedMsg) string {
	switch {
	case msg.Err != nil:
		return "reload failed"
	case msg.URL == "":
		return "reload skipped"
	default:
		return fmt.Sprintf("reloaded (%d)", msg.StatusCode)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, m.quit()
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.c.debug.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.c.debug.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
	}
	return m, nil
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	switch m.overlay {
	case OverlayDebug:
		body = m.c.debug.View(m.width, m.height-4)
	case OverlayHelp:
		body = help.View(m.width)
	default:
		body = m.table.View(m.c.table.Entries())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.c.status.View(),
		body,
		theme.StyleDimmed.Render("  d:channel log  ?:help  q:quit"),
	)
}
