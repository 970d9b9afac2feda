package mock

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

type statusFrame struct {
	Steps       int    `json:"steps"`
	CurrentStep int    `json:"current_step"`
	Text        string `json:"text"`
}

type updateFrame struct {
	Service  string       `json:"service"`
	Finished bool         `json:"finished,omitempty"`
	Error    string       `json:"error,omitempty"`
	Status   *statusFrame `json:"status,omitempty"`
}

type frame struct {
	Status string       `json:"status"`
	Update *updateFrame `json:"update,omitempty"`
}

func encode(f frame) string {
	data, _ := json.Marshal(f)
	return string(data)
}

// ProgressFrame builds an update frame carrying a step.
func ProgressFrame(service string, steps, current int, text string) string {
	return encode(frame{Status: "update", Update: &updateFrame{
		Service: service,
		Status:  &statusFrame{Steps: steps, CurrentStep: current, Text: text},
	}})
}

// FinishedFrame builds an update frame marking a service as started.
func FinishedFrame(service string) string {
	return encode(frame{Status: "update", Update: &updateFrame{Service: service, Finished: true}})
}

// ErrorFrame builds an update frame marking a service as failed.
func ErrorFrame(service, msg string) string {
	return encode(frame{Status: "update", Update: &updateFrame{Service: service, Error: msg}})
}

// SuccessFrame builds the frame that ends a successful start.
func SuccessFrame() string {
	return encode(frame{Status: "success"})
}

// FailedFrame builds the frame the proxy sends when any service failed.
func FailedFrame() string {
	return encode(frame{Status: "failed"})
}

var demoSteps = []string{
	"Pulling image",
	"Creating container",
	"Running pre-start commands",
	"Starting container",
	"Waiting for port",
}

// DemoScript plays a plausible start of services. Services advance in
// round-robin; each has between three and five steps. A service named in
// fail stops with an error and the run ends with the failed status instead
// of success.
func DemoScript(services []string, interval time.Duration, fail string) Script {
	steps := make(map[string]int, len(services))
	for i, svc := range services {
		steps[svc] = 3 + i%3
	}

	var frames []string
	for step := 1; ; step++ {
		advanced := false
		for _, svc := range services {
			total := steps[svc]
			if step > total {
				continue
			}
			advanced = true
			if svc == fail && step == total {
				frames = append(frames, ErrorFrame(svc, fmt.Sprintf("%s: exited with code 1", demoSteps[step-1])))
				continue
			}
			frames = append(frames, ProgressFrame(svc, total, step, demoSteps[step-1]))
			if step == total {
				frames = append(frames, FinishedFrame(svc))
			}
		}
		if !advanced {
			break
		}
	}

	if fail == "" {
		frames = append(frames, SuccessFrame())
		return Script{Frames: frames, Interval: interval}
	}
	return Script{
		Frames:      append(frames, FailedFrame()),
		Interval:    interval,
		CloseCode:   websocket.CloseNormalClosure,
		CloseReason: "Autostart failed.",
	}
}
