// network/connection.go
package network

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is the wire envelope for every frame in both directions.
// Ack carries the request/response correlation id; zero means none.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
	Ack  uint32          `json:"ack,omitempty"`
}

type Connection interface {
	Send(event string, data interface{}) error
	SendAck(id uint32, data interface{}) error
	ReadEvent() (*Event, error)
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
}

type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	heartbeat time.Duration
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

func (c *WSConnection) Send(event string, data interface{}) error {
	return c.write(&Event{Name: event}, data)
}

// SendAck replies to a request that carried a correlation id.
func (c *WSConnection) SendAck(id uint32, data interface{}) error {
	return c.write(&Event{Name: EventAck, Ack: id}, data)
}

func (c *WSConnection) write(ev *Event, data interface{}) error {
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		ev.Data = raw
	}

	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	return c.conn.WriteJSON(ev)
}

func (c *WSConnection) ReadEvent() (*Event, error) {
	var ev Event
	if err := c.conn.ReadJSON(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	c.heartbeat = interval
	c.conn.SetReadDeadline(time.Now().Add(interval * 2))
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
