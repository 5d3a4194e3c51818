package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"shooterarena/protocol"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ClientConn WebSocket 连接：json 使用文本帧，msgpack 使用二进制帧
type ClientConn struct {
	outbox
	id    string
	ws    *websocket.Conn
	codec protocol.Codec
}

// NewClientConn 包装 WebSocket 连接并启动写协程
func NewClientConn(ws *websocket.Conn, codec protocol.Codec) *ClientConn {
	c := &ClientConn{
		outbox: newOutbox(),
		id:     uuid.NewString(),
		ws:     ws,
		codec:  codec,
	}
	ws.SetReadLimit(protocol.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(pongWait)) })
	go c.writePump()
	return c
}

func (c *ClientConn) ID() string            { return c.id }
func (c *ClientConn) Codec() protocol.Codec { return c.codec }
func (c *ClientConn) RemoteAddr() string    { return c.ws.RemoteAddr().String() }

// Receive 读取下一条 WebSocket 消息（文本或二进制）
func (c *ClientConn) Receive() ([]byte, error) {
	for {
		msgType, payload, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			return payload, nil
		}
	}
}

// Close 关闭发送队列与底层连接，可重复调用
func (c *ClientConn) Close() error {
	if !c.shut() {
		return nil
	}
	return c.ws.Close()
}

func (c *ClientConn) frameType() int {
	if c.codec.Name() == protocol.Msgpack.Name() {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()
	frame := c.frameType()
	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(frame, msg); err != nil {
				Log.Debugw("ws write failed", "conn", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：/ws?codec=json|msgpack
func (g *Game) HandleWS(w http.ResponseWriter, r *http.Request) {
	codec := g.codec
	if name := r.URL.Query().Get("codec"); name != "" {
		c, err := protocol.ByName(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		codec = c
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("upgrade error", "error", err)
		return
	}

	conn := NewClientConn(ws, codec)
	g.serve(conn)
}
