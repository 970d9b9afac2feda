package app

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/riptide-proxy/autostart-tui/internal/client"
	"github.com/riptide-proxy/autostart-tui/internal/driver"
	"github.com/riptide-proxy/autostart-tui/internal/mock"
	"github.com/riptide-proxy/autostart-tui/internal/progress"
	"github.com/riptide-proxy/autostart-tui/internal/views/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var leakOpts = []goleak.Option{
	goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
}

// startProxy serves a scripted proxy and returns its WebSocket URL and a
// function that shuts it down.
func startProxy(project string, script mock.Script) (*mock.Server, string, func()) {
	proxy := mock.NewServer(project, script, nil)
	mux := http.NewServeMux()
	proxy.SetupRoutes(mux)
	srv := httptest.NewServer(mux)
	stop := func() {
		proxy.Close()
		srv.Close()
	}
	return proxy, "ws" + strings.TrimPrefix(srv.URL, "http") + mock.Path, stop
}

func newModel(t *testing.T, wsURL string, opts Options) Model {
	t.Helper()
	pageURL, err := client.DerivePageURL(wsURL)
	require.NoError(t, err)
	return New(
		client.NewWSClient(wsURL, client.WSOptions{}),
		client.NewHTTPClient(pageURL, 5*time.Second),
		opts,
	)
}

// runProgram drives m the way tea.Program would, minus the terminal: every
// command runs on its own goroutine and every message goes through Update
// on the calling goroutine. Spinner and animation ticks are dropped.
func runProgram(t *testing.T, m Model) Model {
	t.Helper()
	msgs := make(chan tea.Msg, 64)
	var wg sync.WaitGroup
	exec := func(cmd tea.Cmd) {
		if cmd == nil {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			msgs <- cmd()
		}()
	}
	defer wg.Wait()

	exec(m.Init())
	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			m.quit()
			t.Fatal("session did not finish")
			return m
		case msg := <-msgs:
			switch msg := msg.(type) {
			case nil, spinner.TickMsg, table.AnimateMsg:
				continue
			case tea.BatchMsg:
				for _, cmd := range msg {
					exec(cmd)
				}
				continue
			case tea.QuitMsg:
				return m
			}
			next, cmd := m.Update(msg)
			m = next.(Model)
			exec(cmd)
		}
	}
}

func TestSessionCompletesAndReloads(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	proxy, url, stop := startProxy("shop", mock.Script{Frames: []string{
		mock.ProgressFrame("db", 2, 1, "Pulling image"),
		mock.FinishedFrame("db"),
		mock.ProgressFrame("web", 3, 2, "Starting container"),
		mock.SuccessFrame(),
	}})
	defer stop()

	m := runProgram(t, newModel(t, url, Options{
		Project:         "shop",
		Services:        []string{"db", "web"},
		ExitAfterReload: true,
	}))

	res := m.Result()
	assert.Equal(t, driver.Completed, res.Phase)
	assert.True(t, res.OK())
	assert.Empty(t, res.Diagnostic)
	require.NotNil(t, res.Reload)
	assert.NoError(t, res.Reload.Err)
	assert.Equal(t, http.StatusOK, res.Reload.StatusCode)
	assert.Equal(t, []string{"register", "start"}, proxy.Received())

	for _, e := range m.Entries() {
		assert.Equal(t, progress.Finished, e.State, e.ID)
		assert.Equal(t, 100, e.Percent, e.ID)
	}
	web := m.Entries()[1]
	assert.Equal(t, "3", web.CurrentLabel())
	assert.Equal(t, "Starting container", web.StatusText)
}

func TestReloadFailureIsReported(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	proxy, url, stop := startProxy("shop", mock.Script{Frames: []string{mock.SuccessFrame()}})
	defer stop()
	proxy.SetPageStatus(http.StatusBadGateway)

	m := runProgram(t, newModel(t, url, Options{
		Project:         "shop",
		Services:        []string{"db"},
		ExitAfterReload: true,
	}))

	res := m.Result()
	assert.Equal(t, driver.Completed, res.Phase)
	require.NotNil(t, res.Reload)
	assert.Error(t, res.Reload.Err)
	assert.Equal(t, http.StatusBadGateway, res.Reload.StatusCode)
}

func TestUnknownProjectClosesWithDiagnostic(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	proxy, url, stop := startProxy("shop", mock.Script{})
	defer stop()

	m := runProgram(t, newModel(t, url, Options{
		Project:  "other",
		Services: []string{"db"},
		Headless: true,
	}))

	res := m.Result()
	assert.Equal(t, driver.Closed, res.Phase)
	assert.Equal(t, "Connection to proxy closed. Reason: Project not found. (Code: 4403)", res.Diagnostic)
	assert.Nil(t, res.Reload)
	assert.False(t, res.OK())
	assert.Equal(t, []string{"register"}, proxy.Received())
}

func TestDialFailureClosesWithDiagnostic(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	m := runProgram(t, newModel(t, "ws://"+addr+mock.Path, Options{
		Project:  "shop",
		Services: []string{"db"},
		Headless: true,
	}))

	res := m.Result()
	assert.Equal(t, driver.Closed, res.Phase)
	assert.Contains(t, res.Diagnostic, "Connection to proxy closed. Reason: ")
	assert.True(t, strings.HasSuffix(res.Diagnostic, "(Code: 1006)"), res.Diagnostic)
}

func TestFailedServiceFailsSession(t *testing.T) {
	defer goleak.VerifyNone(t, leakOpts...)

	services := []string{"db", "web"}
	_, url, stop := startProxy("shop", mock.DemoScript(services, 0, "web"))
	defer stop()

	m := runProgram(t, newModel(t, url, Options{
		Project:  "shop",
		Services: services,
		Headless: true,
	}))

	res := m.Result()
	assert.Equal(t, driver.Closed, res.Phase)
	assert.Equal(t, []string{"web"}, res.Failed)
	assert.Equal(t, "Connection to proxy closed. Reason: Autostart failed. (Code: 1000)", res.Diagnostic)
	assert.False(t, res.OK())

	db, ok := m.c.table.Entry("db")
	require.True(t, ok)
	assert.Equal(t, progress.Finished, db.State)
}

func offlineModel() Model {
	return New(client.NewWSClient("ws://127.0.0.1:1/ws", client.WSOptions{}), nil, Options{
		Project:  "shop",
		Services: []string{"db", "web"},
	})
}

func keyMsg(k string) tea.KeyMsg {
	if k == "esc" {
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func TestOverlays(t *testing.T) {
	var tm tea.Model = offlineModel()
	tm, _ = tm.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	assert.Contains(t, tm.View(), "Autostart")
	assert.Contains(t, tm.View(), "db")

	tm, _ = tm.Update(keyMsg("d"))
	assert.Equal(t, OverlayDebug, tm.(Model).overlay)
	assert.Contains(t, tm.View(), "CHANNEL LOG")

	tm, _ = tm.Update(keyMsg("?"))
	assert.Equal(t, OverlayDebug, tm.(Model).overlay, "overlays do not stack")

	tm, _ = tm.Update(keyMsg("esc"))
	assert.Equal(t, OverlayNone, tm.(Model).overlay)

	tm, _ = tm.Update(keyMsg("?"))
	assert.Equal(t, OverlayHelp, tm.(Model).overlay)
	assert.Contains(t, tm.View(), "quit")
}

func TestQuitKey(t *testing.T) {
	m := offlineModel()
	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestViewBeforeResize(t *testing.T) {
	assert.Equal(t, "Initializing...", offlineModel().View())
}

func TestUpdateBeforeReadyIsIgnored(t *testing.T) {
	m := offlineModel()
	next, _ := m.Update(client.FrameMsg{Data: []byte(mock.ProgressFrame("db", 4, 2, "x"))})
	m = next.(Model)

	db, _ := m.c.table.Entry("db")
	assert.Equal(t, progress.Pending, db.State)
	assert.Equal(t, driver.Connecting, m.Result().Phase)
	assert.Len(t, m.c.debug.Entries, 1, "the frame is still logged")
}

func TestClosedDuringCompletionIsSilent(t *testing.T) {
	m := offlineModel()
	m.c.driver.OnOpen()
	m.c.driver.OnMessage([]byte(mock.SuccessFrame()))
	m.c.pending = nil

	next, cmd := m.Update(client.ClosedMsg{Code: 1006})
	m = next.(Model)

	assert.Nil(t, cmd)
	assert.Equal(t, driver.Completed, m.Result().Phase)
	assert.Empty(t, m.Result().Diagnostic)
}
