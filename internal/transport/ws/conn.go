package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn — живое соединение. Писать в сокет может только writeLoop,
// остальные кладут кадры в ограниченную очередь send.
type wsConn struct {
	id     string
	userID int64
	conn   *websocket.Conn
	send   chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newWsConn(c *websocket.Conn, id string, userID int64, buffer int) *wsConn {
	return &wsConn{
		id:     id,
		userID: userID,
		conn:   c,
		send:   make(chan []byte, buffer),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) ID() string    { return c.id }
func (c *wsConn) UserID() int64 { return c.userID }

// Send не блокирует: при переполненной очереди или закрытом соединении кадр теряется.
func (c *wsConn) Send(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close идемпотентен; безопасен из любой горутины.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) writeLoop(pingEvery, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}
