// Package client provides the WebSocket and HTTP transports used by the
// autostart TUI. Results are delivered as Bubble Tea messages so that all
// state changes happen in the program's single update loop.
package client

// OpenMsg is sent when the WebSocket handshake succeeds.
type OpenMsg struct{}

// FrameMsg carries one inbound text frame, undecoded.
type FrameMsg struct {
	Data []byte
}

// ClosedMsg is sent once when the connection ends, or when it could not be
// opened. Code and Reason follow the WebSocket close frame; connections
// that drop without a close frame report 1006 and an empty reason.
type ClosedMsg struct {
	Code   int
	Reason string
	Err    error
}

// ReloadedMsg reports the outcome of the page reload.
type ReloadedMsg struct {
	URL        string
	StatusCode int
	Err        error
}
