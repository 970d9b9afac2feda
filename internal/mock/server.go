// Package mock provides a scripted stand-in for the proxy's autostart
// endpoint. It is used by tests and by the demo command.
package mock

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Path is where the proxy serves the autostart WebSocket.
const Path = "/___riptide_proxy_ws"

// CloseProjectNotFound is the close code sent when register names a
// project the server does not know.
const CloseProjectNotFound = 4403

// Script is what the server plays back after receiving start.
type Script struct {
	Frames   []string
	Interval time.Duration
	// CloseCode, if non-zero, closes the connection after the last frame.
	CloseCode   int
	CloseReason string
}

// Server is a scripted autostart endpoint.
type Server struct {
	project    string
	script     Script
	pageStatus int
	log        *slog.Logger

	mu       sync.Mutex
	received []string
	peers    map[*peer]bool
	wg       sync.WaitGroup
}

// NewServer creates a server accepting registrations for project. An
// empty project accepts any name.
func NewServer(project string, script Script, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		project:    project,
		script:     script,
		pageStatus: http.StatusOK,
		log:        logger,
		peers:      make(map[*peer]bool),
	}
}

// SetPageStatus sets the status code returned for the project page.
func (s *Server) SetPageStatus(code int) {
	s.mu.Lock()
	s.pageStatus = code
	s.mu.Unlock()
}

// SetupRoutes registers the WebSocket endpoint and the project page.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc(Path, s.handleWS)
	mux.HandleFunc("/", s.handlePage)
}

// Received returns the methods received from clients, in arrival order.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.received))
	copy(out, s.received)
	return out
}

// Close disconnects every client and waits for their goroutines.
func (s *Server) Close() {
	s.mu.Lock()
	for p := range s.peers {
		p.stop()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "error", err)
		return
	}

	p := newPeer(conn)
	s.mu.Lock()
	s.peers[p] = true
	s.mu.Unlock()

	s.log.Debug("client connected", "remote", r.RemoteAddr)
	s.wg.Add(1)
	go s.serve(p)
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	code := s.pageStatus
	s.mu.Unlock()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	fmt.Fprintf(w, "%s is running\n", s.project)
}

type command struct {
	Method  string `json:"method"`
	Project string `json:"project"`
}

func (s *Server) serve(p *peer) {
	defer s.wg.Done()
	defer s.remove(p)

	registered, started := false, false
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd command
		if json.Unmarshal(data, &cmd) != nil {
			continue
		}
		s.record(cmd.Method)

		switch cmd.Method {
		case "register":
			if s.project != "" && cmd.Project != s.project {
				p.closeWith(CloseProjectNotFound, "Project not found.")
				continue
			}
			registered = true
			p.write([]byte(`{"status":"ready"}`))
		case "start":
			if !registered || started {
				continue
			}
			started = true
			s.wg.Add(1)
			go s.play(p)
		}
	}
}

func (s *Server) play(p *peer) {
	defer s.wg.Done()
	for _, f := range s.script.Frames {
		if s.script.Interval > 0 {
			select {
			case <-p.done:
				return
			case <-time.After(s.script.Interval):
			}
		}
		if !p.write([]byte(f)) {
			return
		}
	}
	if s.script.CloseCode != 0 {
		p.closeWith(s.script.CloseCode, s.script.CloseReason)
	}
}

func (s *Server) record(method string) {
	s.mu.Lock()
	s.received = append(s.received, method)
	s.mu.Unlock()
}

func (s *Server) remove(p *peer) {
	p.stop()
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
}

// ListenAndServe serves the mock on addr until the listener fails.
func ListenAndServe(addr string, s *Server) (net.Addr, func() error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go srv.Serve(ln)

	shutdown := func() error {
		s.Close()
		return srv.Close()
	}
	return ln.Addr(), shutdown, nil
}
