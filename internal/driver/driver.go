// Package driver implements the autostart session state machine. It turns
// channel events (open, text frame, close) into outbound commands and
// progress events, and never fails: malformed or out-of-phase input is
// dropped, and only channel closure is surfaced to the user.
package driver

import (
	"fmt"
	"log/slog"

	"github.com/riptide-proxy/autostart-tui/internal/protocol"
)

// Phase is the session's position in the autostart protocol.
type Phase int

const (
	Connecting Phase = iota
	AwaitingReady
	Running
	Completed
	Closed
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case Connecting:
		return "connecting"
	case AwaitingReady:
		return "awaiting ready"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// UnknownReason is shown when the transport gives no close reason.
const UnknownReason = "Unknown"

// Sender delivers a command over the channel.
type Sender interface {
	Send(protocol.Command) error
}

// Reporter receives per-service events.
type Reporter interface {
	OnProgress(service string, steps, current int, text string)
	OnFinish(service string)
	OnError(service, message string)
	Services() []string
}

// Reloader performs the reload that follows a successful start.
type Reloader interface {
	Reload()
}

// Notifier shows the connection-closed diagnostic to the user.
type Notifier interface {
	Diagnostic(message string)
}

// Deps are the driver's collaborators. Reporter is required; the rest may
// be nil.
type Deps struct {
	Sender   Sender
	Reporter Reporter
	Reloader Reloader
	Notifier Notifier
	Logger   *slog.Logger
}

// Session is the process-wide autostart state.
type Session struct {
	Project string
	Phase   Phase
}

// Driver owns the Session and reacts to channel events. It is not safe for
// concurrent use; all calls must come from a single dispatch loop.
type Driver struct {
	session  Session
	deps     Deps
	log      *slog.Logger
	reloaded bool
	// OnPhase, if set, observes every phase transition.
	OnPhase func(from, to Phase)
}

// New creates a driver in the Connecting phase.
func New(project string, deps Deps) *Driver {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		session: Session{Project: project, Phase: Connecting},
		deps:    deps,
		log:     log,
	}
}

// Session returns a copy of the session state.
func (d *Driver) Session() Session {
	return d.session
}

// Phase returns the current phase.
func (d *Driver) Phase() Phase {
	return d.session.Phase
}

// OnOpen handles the channel becoming writable.
func (d *Driver) OnOpen() {
	if d.session.Phase != Connecting {
		d.log.Debug("ignoring open", "phase", d.session.Phase)
		return
	}
	d.send(protocol.Register{Project: d.session.Project})
	d.transition(AwaitingReady)
}

// OnMessage handles one inbound text frame.
func (d *Driver) OnMessage(data []byte) {
	if d.session.Phase == Closed {
		return
	}

	msg, err := protocol.DecodeInbound(data)
	if err != nil {
		d.log.Debug("discarding frame", "error", err)
		return
	}

	switch m := msg.(type) {
	case protocol.Ready:
		d.onReady()
	case protocol.Update:
		d.onUpdate(m)
	case protocol.Success:
		d.onSuccess()
	case protocol.Failed:
		d.log.Warn("proxy reported a failed start", "project", d.session.Project)
	case protocol.ServerError:
		d.log.Warn("proxy reported an error", "project", d.session.Project, "msg", m.Msg)
	default:
		d.log.Debug("discarding frame", "status", msg.Status())
	}
}

// OnClose handles the end of the channel. code and reason come from the
// transport; reason may be empty.
func (d *Driver) OnClose(code int, reason string) {
	switch d.session.Phase {
	case Completed:
		d.log.Debug("channel closed after completion", "code", code)
		return
	case Closed:
		return
	}

	d.transition(Closed)
	if d.deps.Notifier != nil {
		d.deps.Notifier.Diagnostic(CloseDiagnostic(code, reason))
	}
}

// CloseDiagnostic formats the message shown when the channel closes.
func CloseDiagnostic(code int, reason string) string {
	if reason == "" {
		reason = UnknownReason
	}
	return fmt.Sprintf("Connection to proxy closed. Reason: %s (Code: %d)", reason, code)
}

func (d *Driver) onReady() {
	if d.session.Phase != AwaitingReady {
		d.log.Debug("ignoring ready", "phase", d.session.Phase)
		return
	}
	d.send(protocol.Start{})
	d.transition(Running)
}

func (d *Driver) onUpdate(u protocol.Update) {
	if d.session.Phase != Running {
		d.log.Debug("ignoring update", "phase", d.session.Phase, "service", u.Service)
		return
	}

	r := d.deps.Reporter
	switch c := u.Change.(type) {
	case protocol.Finished:
		r.OnFinish(u.Service)
	case protocol.Errored:
		r.OnError(u.Service, c.Message)
	case protocol.Progress:
		r.OnProgress(u.Service, c.Steps, c.CurrentStep, c.Text)
	default:
		d.log.Debug("ignoring update", "service", u.Service)
	}
}

func (d *Driver) onSuccess() {
	switch d.session.Phase {
	case AwaitingReady, Running, Completed:
	default:
		d.log.Debug("ignoring success", "phase", d.session.Phase)
		return
	}

	for _, id := range d.deps.Reporter.Services() {
		d.deps.Reporter.OnFinish(id)
	}

	if d.session.Phase != Completed {
		d.transition(Completed)
	}
	if !d.reloaded && d.deps.Reloader != nil {
		d.reloaded = true
		d.deps.Reloader.Reload()
	}
}

func (d *Driver) send(cmd protocol.Command) {
	if d.deps.Sender == nil {
		return
	}
	if err := d.deps.Sender.Send(cmd); err != nil {
		d.log.Warn("send failed", "method", cmd.Method(), "error", err)
	}
}

func (d *Driver) transition(to Phase) {
	from := d.session.Phase
	d.session.Phase = to
	d.log.Info("phase changed", "from", from, "to", to, "project", d.session.Project)
	if d.OnPhase != nil {
		d.OnPhase(from, to)
	}
}
