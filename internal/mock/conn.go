package mock

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// outFrame is a queued write: either a text frame or a close frame.
type outFrame struct {
	data  []byte
	close bool
	code  int
	text  string
}

// peer is one connected client. All writes go through writePump so the
// script goroutine and the read loop never write concurrently.
type peer struct {
	conn *websocket.Conn
	send chan outFrame
	once sync.Once
	done chan struct{}
}

func newPeer(conn *websocket.Conn) *peer {
	p := &peer{
		conn: conn,
		send: make(chan outFrame, 64),
		done: make(chan struct{}),
	}
	go p.writePump()
	return p
}

func (p *peer) writePump() {
	defer p.conn.Close()
	for {
		select {
		case <-p.done:
			return
		case f := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if f.close {
				msg := websocket.FormatCloseMessage(f.code, f.text)
				p.conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, f.data); err != nil {
				return
			}
		}
	}
}

// write queues a text frame; it reports false once the peer is gone.
func (p *peer) write(data []byte) bool {
	select {
	case <-p.done:
		return false
	case p.send <- outFrame{data: data}:
		return true
	}
}

// closeWith queues a close frame.
func (p *peer) closeWith(code int, text string) {
	select {
	case <-p.done:
	case p.send <- outFrame{close: true, code: code, text: text}:
	}
}

func (p *peer) stop() {
	p.once.Do(func() { close(p.done) })
}
