package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type envelope struct {
	Status Status          `json:"status"`
	Update json.RawMessage `json:"update"`
	Msg    string          `json:"msg"`
}

// Each shape is kept raw so that a mistyped field only disqualifies that
// shape instead of failing the whole frame.
type updateFrame struct {
	Service  string          `json:"service"`
	Finished json.RawMessage `json:"finished"`
	Error    json.RawMessage `json:"error"`
	Status   json.RawMessage `json:"status"`
}

type statusFrame struct {
	Steps       int    `json:"steps"`
	CurrentStep int    `json:"current_step"`
	Text        string `json:"text"`
}

// DecodeInbound parses a text frame received from the proxy.
func DecodeInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Status {
	case StatusReady:
		return Ready{}, nil
	case StatusSuccess:
		return Success{}, nil
	case StatusFailed:
		return Failed{}, nil
	case StatusError:
		return ServerError{Msg: env.Msg}, nil
	case StatusUpdate:
		u, err := decodeUpdate(env.Update)
		if err != nil {
			return nil, err
		}
		return u, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, env.Status)
	}
}

func decodeUpdate(raw json.RawMessage) (Update, error) {
	if isAbsent(raw) {
		return Update{}, fmt.Errorf("%w: update without payload", ErrMalformed)
	}

	var f updateFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Update{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Service == "" {
		return Update{}, fmt.Errorf("%w: update without service", ErrMalformed)
	}

	// finished > error > status, first match wins.
	if bytes.Equal(bytes.TrimSpace(f.Finished), []byte("true")) {
		return Update{Service: f.Service, Change: Finished{}}, nil
	}

	if !isAbsent(f.Error) {
		var msg string
		if json.Unmarshal(f.Error, &msg) == nil && msg != "" {
			return Update{Service: f.Service, Change: Errored{Message: msg}}, nil
		}
	}

	if !isAbsent(f.Status) {
		var s statusFrame
		if json.Unmarshal(f.Status, &s) == nil {
			if s.Steps < 1 {
				return Update{}, fmt.Errorf("%w: service %q reported %d steps", ErrMalformed, f.Service, s.Steps)
			}
			return Update{Service: f.Service, Change: Progress{
				Steps:       s.Steps,
				CurrentStep: min(max(s.CurrentStep, 0), s.Steps),
				Text:        s.Text,
			}}, nil
		}
	}

	return Update{}, fmt.Errorf("%w: update for %q has no finished, error or status", ErrMalformed, f.Service)
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
