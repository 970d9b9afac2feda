// Package protocol defines the autostart wire format spoken between the
// client and the proxy's autostart WebSocket endpoint.
package protocol

import (
	"encoding/json"
	"errors"
)

// Status discriminates inbound messages.
type Status string

const (
	StatusReady   Status = "ready"
	StatusUpdate  Status = "update"
	StatusSuccess Status = "success"
	// The proxy also emits these when a start attempt as a whole goes wrong.
	// They carry no per-service information.
	StatusFailed Status = "failed"
	StatusError  Status = "error"
)

// Method discriminates outbound commands.
type Method string

const (
	MethodRegister Method = "register"
	MethodStart    Method = "start"
)

var (
	// ErrMalformed is returned for frames that are not valid JSON or whose
	// payload matches none of the known shapes.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownStatus is returned for frames with a missing or unrecognised status.
	ErrUnknownStatus = errors.New("unknown status")
)

// Inbound is a decoded server message. It is one of Ready, Success, Update,
// Failed or ServerError.
type Inbound interface {
	Status() Status
	inbound()
}

// Ready tells the client the project is registered and may be started.
type Ready struct{}

// Success tells the client every service has started.
type Success struct{}

// Update carries a change for a single service.
type Update struct {
	Service string
	Change  Change
}

// Failed reports that at least one service failed to start.
type Failed struct{}

// ServerError reports an error raised by the proxy while starting the project.
type ServerError struct {
	Msg string
}

func (Ready) Status() Status       { return StatusReady }
func (Success) Status() Status     { return StatusSuccess }
func (Update) Status() Status      { return StatusUpdate }
func (Failed) Status() Status      { return StatusFailed }
func (ServerError) Status() Status { return StatusError }

func (Ready) inbound()       {}
func (Success) inbound()     {}
func (Update) inbound()      {}
func (Failed) inbound()      {}
func (ServerError) inbound() {}

// Change is the per-service payload of an Update. It is one of Finished,
// Errored or Progress.
type Change interface {
	change()
}

// Finished marks the service as started.
type Finished struct{}

// Errored marks the service as failed with a message.
type Errored struct {
	Message string
}

// Progress reports an intermediate step.
type Progress struct {
	Steps       int
	CurrentStep int
	Text        string
}

func (Finished) change() {}
func (Errored) change()  {}
func (Progress) change() {}

// Command is an outbound client message. It is one of Register or Start.
type Command interface {
	Method() Method
	command()
}

// Register subscribes the connection to a project's autostart.
type Register struct {
	Project string
}

// Start asks the proxy to start the registered project.
type Start struct{}

func (Register) Method() Method { return MethodRegister }
func (Start) Method() Method    { return MethodStart }

func (Register) command() {}
func (Start) command()    {}

type registerFrame struct {
	Method  Method `json:"method"`
	Project string `json:"project"`
}

type startFrame struct {
	Method Method `json:"method"`
}

// EncodeCommand serialises a command to its JSON text frame.
func EncodeCommand(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case Register:
		return json.Marshal(registerFrame{Method: MethodRegister, Project: c.Project})
	case Start:
		return json.Marshal(startFrame{Method: MethodStart})
	default:
		return nil, errors.New("unknown command")
	}
}
