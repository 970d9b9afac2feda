package driver

import (
	"errors"
	"testing"

	"github.com/riptide-proxy/autostart-tui/internal/progress"
	"github.com/riptide-proxy/autostart-tui/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []protocol.Command
	err  error
}

func (s *recordingSender) Send(cmd protocol.Command) error {
	s.sent = append(s.sent, cmd)
	return s.err
}

func (s *recordingSender) count(m protocol.Method) int {
	n := 0
	for _, c := range s.sent {
		if c.Method() == m {
			n++
		}
	}
	return n
}

type countingReloader struct{ n int }

func (r *countingReloader) Reload() { r.n++ }

type recordingNotifier struct{ messages []string }

func (n *recordingNotifier) Diagnostic(msg string) { n.messages = append(n.messages, msg) }

type harness struct {
	d        *Driver
	sender   *recordingSender
	table    *progress.Table
	reloader *countingReloader
	notifier *recordingNotifier
}

func newHarness(services ...string) *harness {
	h := &harness{
		sender:   &recordingSender{},
		table:    progress.NewTable(services...),
		reloader: &countingReloader{},
		notifier: &recordingNotifier{},
	}
	h.d = New("demo", Deps{
		Sender:   h.sender,
		Reporter: h.table,
		Reloader: h.reloader,
		Notifier: h.notifier,
	})
	return h
}

func (h *harness) recv(frames ...string) {
	for _, f := range frames {
		h.d.OnMessage([]byte(f))
	}
}

func (h *harness) entry(t *testing.T, id string) progress.Entry {
	t.Helper()
	e, ok := h.table.Entry(id)
	require.True(t, ok, "no row for %q", id)
	return e
}

const (
	frameReady   = `{"status":"ready"}`
	frameSuccess = `{"status":"success"}`
)

func TestOpenSendsRegister(t *testing.T) {
	h := newHarness("db")
	assert.Equal(t, Connecting, h.d.Phase())

	h.d.OnOpen()

	assert.Equal(t, AwaitingReady, h.d.Phase())
	require.Len(t, h.sender.sent, 1)
	assert.Equal(t, protocol.Register{Project: "demo"}, h.sender.sent[0])

	h.d.OnOpen()
	assert.Len(t, h.sender.sent, 1, "register must be sent once")
}

func TestReadySendsStartOnce(t *testing.T) {
	h := newHarness("db")
	h.d.OnOpen()

	h.recv(frameReady, frameReady, frameReady)

	assert.Equal(t, Running, h.d.Phase())
	assert.Equal(t, 1, h.sender.count(protocol.MethodStart))
	assert.Equal(t, 1, h.sender.count(protocol.MethodRegister))
}

func TestReadyBeforeOpenIsIgnored(t *testing.T) {
	h := newHarness("db")
	h.recv(frameReady)

	assert.Equal(t, Connecting, h.d.Phase())
	assert.Empty(t, h.sender.sent)
}

func TestSendFailureDoesNotStopTransition(t *testing.T) {
	h := newHarness("db")
	h.sender.err = errors.New("broken pipe")

	h.d.OnOpen()
	h.recv(frameReady)

	assert.Equal(t, Running, h.d.Phase())
}

func TestUpdatesAreDispatched(t *testing.T) {
	h := newHarness("db", "web", "cache")
	h.d.OnOpen()
	h.recv(frameReady,
		`{"status":"update","update":{"service":"db","status":{"steps":7,"current_step":3,"text":"pulling"}}}`,
		`{"status":"update","update":{"service":"web","error":"port in use"}}`,
		`{"status":"update","update":{"service":"cache","finished":true}}`,
	)

	db := h.entry(t, "db")
	assert.Equal(t, progress.InProgress, db.State)
	assert.Equal(t, 43, db.Percent)
	assert.Equal(t, "pulling", db.StatusText)

	web := h.entry(t, "web")
	assert.Equal(t, progress.Failed, web.State)
	assert.Equal(t, "port in use", web.StatusText)

	assert.Equal(t, progress.Finished, h.entry(t, "cache").State)
	assert.Equal(t, Running, h.d.Phase())
}

func TestLargeStepCounts(t *testing.T) {
	h := newHarness("db")
	h.d.OnOpen()
	h.recv(frameReady,
		`{"status":"update","update":{"service":"db","status":{"steps":100000000000000000,"current_step":50000000000000000,"text":"copying"}}}`,
	)

	db := h.entry(t, "db")
	assert.Equal(t, progress.InProgress, db.State)
	assert.Equal(t, 50, db.Percent)
}

func TestUpdateBeforeRunningIsDiscarded(t *testing.T) {
	h := newHarness("db")
	h.d.OnOpen()
	h.recv(`{"status":"update","update":{"service":"db","finished":true}}`)

	assert.Equal(t, progress.Pending, h.entry(t, "db").State)
}

func TestMalformedFramesChangeNothing(t *testing.T) {
	h := newHarness("db")
	h.d.OnOpen()
	h.recv(frameReady, `{"status":"update","update":{"service":"db","status":{"steps":2,"current_step":1,"text":"a"}}}`)
	before := h.table.Entries()
	sent := len(h.sender.sent)

	h.recv(
		`not json`,
		`{"status":"update","update":{"service":"db"}}`,
		`{"status":"update"}`,
		`{"status":"bogus"}`,
		`{"status":"update","update":{"service":"db","status":{"steps":0,"current_step":0,"text":"x"}}}`,
		`{"status":"failed"}`,
		`{"status":"error","msg":"engine down"}`,
	)

	assert.Equal(t, before, h.table.Entries())
	assert.Len(t, h.sender.sent, sent)
	assert.Equal(t, Running, h.d.Phase())
	assert.Empty(t, h.notifier.messages)
}

func TestSuccessFinishesAllAndReloadsOnce(t *testing.T) {
	h := newHarness("db", "web", "cache")
	h.d.OnOpen()
	h.recv(frameReady,
		`{"status":"update","update":{"service":"db","status":{"steps":4,"current_step":1,"text":"x"}}}`,
		`{"status":"update","update":{"service":"web","error":"crashed"}}`,
		frameSuccess,
	)

	assert.Equal(t, Completed, h.d.Phase())
	assert.Equal(t, progress.Finished, h.entry(t, "db").State)
	assert.Equal(t, 100, h.entry(t, "db").Percent)
	assert.Equal(t, progress.Finished, h.entry(t, "cache").State, "rows without updates are finished too")
	assert.Equal(t, progress.Failed, h.entry(t, "web").State, "failed is sticky")
	assert.Equal(t, 1, h.reloader.n)

	h.recv(frameSuccess, frameReady)
	assert.Equal(t, 1, h.reloader.n, "reload must only happen once")
	assert.Equal(t, 1, h.sender.count(protocol.MethodStart))
	assert.Equal(t, Completed, h.d.Phase())
}

func TestSuccessWhileAwaitingReadyCompletes(t *testing.T) {
	h := newHarness("db")
	h.d.OnOpen()
	h.recv(frameSuccess)

	assert.Equal(t, Completed, h.d.Phase())
	assert.Equal(t, progress.Finished, h.entry(t, "db").State)
	assert.Equal(t, 1, h.reloader.n)
}

func TestSuccessBeforeOpenIsIgnored(t *testing.T) {
	h := newHarness("db")
	h.recv(frameSuccess)

	assert.Equal(t, Connecting, h.d.Phase())
	assert.Equal(t, progress.Pending, h.entry(t, "db").State)
	assert.Zero(t, h.reloader.n)
}

func TestCloseSurfacesOneDiagnostic(t *testing.T) {
	h := newHarness("db")
	h.d.OnOpen()
	h.recv(frameReady)

	h.d.OnClose(1006, "")
	h.d.OnClose(1000, "again")

	assert.Equal(t, Closed, h.d.Phase())
	require.Len(t, h.notifier.messages, 1)
	assert.Equal(t, "Connection to proxy closed. Reason: Unknown (Code: 1006)", h.notifier.messages[0])
}

func TestCloseWithReason(t *testing.T) {
	h := newHarness("db")
	h.d.OnOpen()
	h.d.OnClose(403, "Project not found.")

	require.Len(t, h.notifier.messages, 1)
	assert.Equal(t, "Connection to proxy closed. Reason: Project not found. (Code: 403)", h.notifier.messages[0])
}

func TestCloseDuringConnecting(t *testing.T) {
	h := newHarness("db")
	h.d.OnClose(1006, "dial tcp: connection refused")

	assert.Equal(t, Closed, h.d.Phase())
	assert.Len(t, h.notifier.messages, 1)
}

func TestCloseAfterCompletionIsSilent(t *testing.T) {
	h := newHarness("db")
	h.d.OnOpen()
	h.recv(frameReady, frameSuccess)
	h.d.OnClose(1000, "bye")

	assert.Equal(t, Completed, h.d.Phase())
	assert.Empty(t, h.notifier.messages)
}

func TestNothingHappensAfterClose(t *testing.T) {
	h := newHarness("db")
	h.d.OnOpen()
	h.recv(frameReady)
	h.d.OnClose(1001, "going away")
	sent := len(h.sender.sent)

	h.d.OnOpen()
	h.recv(frameReady,
		`{"status":"update","update":{"service":"db","finished":true}}`,
		frameSuccess,
	)

	assert.Equal(t, Closed, h.d.Phase())
	assert.Len(t, h.sender.sent, sent)
	assert.Equal(t, progress.Pending, h.entry(t, "db").State)
	assert.Zero(t, h.reloader.n)
}

func TestOnPhaseObservesTransitions(t *testing.T) {
	h := newHarness("db")
	var seen []Phase
	h.d.OnPhase = func(_, to Phase) { seen = append(seen, to) }

	h.d.OnOpen()
	h.recv(frameReady, frameSuccess)

	assert.Equal(t, []Phase{AwaitingReady, Running, Completed}, seen)
}

// The end-to-end scenario from the protocol description.
func TestScenario(t *testing.T) {
	h := newHarness("db", "web")

	h.d.OnOpen()
	require.Equal(t, []protocol.Command{protocol.Register{Project: "demo"}}, h.sender.sent)

	h.recv(frameReady)
	require.Equal(t, protocol.Start{}, h.sender.sent[1])

	h.recv(`{"status":"update","update":{"service":"db","status":{"steps":4,"current_step":2,"text":"migrating"}}}`)
	db := h.entry(t, "db")
	assert.Equal(t, 50, db.Percent)
	assert.Equal(t, "migrating", db.StatusText)
	assert.Equal(t, progress.StyleInProgress, db.State.Style())

	h.recv(`{"status":"update","update":{"service":"db","finished":true}}`)
	db = h.entry(t, "db")
	assert.Equal(t, 100, db.Percent)
	assert.Equal(t, progress.StyleSuccess, db.State.Style())

	h.recv(frameSuccess)
	for _, e := range h.table.Entries() {
		assert.Equal(t, progress.Finished, e.State, e.ID)
	}
	assert.Equal(t, 1, h.reloader.n)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "awaiting ready", AwaitingReady.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
