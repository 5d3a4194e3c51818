package server

import (
	"bufio"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"shooterarena/protocol"
)

const writeWait = 5 * time.Second

var lineFeed = []byte{'\n'}

// TCPConn 原始 TCP 连接：入站/出站均以换行分帧，单帧不超过 4096 字节
type TCPConn struct {
	outbox
	id      string
	conn    net.Conn
	scanner *bufio.Scanner
}

// NewTCPConn 包装 net.Conn 并启动写协程
func NewTCPConn(c net.Conn) *TCPConn {
	sc := bufio.NewScanner(c)
	sc.Buffer(make([]byte, 0, protocol.MaxMessageSize), protocol.MaxMessageSize)
	tc := &TCPConn{
		outbox:  newOutbox(),
		id:      uuid.NewString(),
		conn:    c,
		scanner: sc,
	}
	go tc.writePump()
	return tc
}

func (c *TCPConn) ID() string            { return c.id }
func (c *TCPConn) Codec() protocol.Codec { return protocol.JSON }
func (c *TCPConn) RemoteAddr() string    { return c.conn.RemoteAddr().String() }

// Receive 读取下一帧；空行被跳过
func (c *TCPConn) Receive() ([]byte, error) {
	for c.scanner.Scan() {
		line := c.scanner.Bytes()
		if len(line) == 0 || (len(line) == 1 && line[0] == '\r') {
			continue
		}
		msg := make([]byte, len(line))
		copy(msg, line)
		return msg, nil
	}
	if err := c.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close 关闭发送队列与底层连接，可重复调用
func (c *TCPConn) Close() error {
	if !c.shut() {
		return nil
	}
	return c.conn.Close()
}

// writePump 独立协程，负责从 send 队列写出到 TCP；写失败即关闭连接
func (c *TCPConn) writePump() {
	defer c.Close()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			// 载荷在多个连接间共享，不能 append 到原切片上
			frame := net.Buffers{msg, lineFeed}
			if _, err := frame.WriteTo(c.conn); err != nil {
				Log.Debugw("tcp write failed", "conn", c.id, "error", err)
				return
			}
		}
	}
}
