package server

import (
	"errors"
	"sync"

	"shooterarena/protocol"
)

var (
	ErrConnClosed = errors.New("connection closed")
	ErrQueueFull  = errors.New("send queue full")
)

const (
	sendBufSize = 64
)

// Outbound 广播器看到的连接：只负责把已编码的载荷压入发送队列
type Outbound interface {
	ID() string
	Codec() protocol.Codec
	Enqueue(b []byte) error
	Close() error
}

// Conn 一个客户端的双工连接
type Conn interface {
	Outbound
	// Receive 阻塞直到收到一条消息、连接关闭或出错
	Receive() ([]byte, error)
	RemoteAddr() string
}

// outbox 每个连接独立的有界发送队列，由写协程消费，慢客户端不会阻塞 Tick
type outbox struct {
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newOutbox() outbox {
	return outbox{
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
	}
}

// Enqueue 非阻塞入队：已关闭返回 ErrConnClosed，队列满时丢弃并返回 ErrQueueFull
func (o *outbox) Enqueue(b []byte) error {
	select {
	case <-o.done:
		return ErrConnClosed
	default:
	}
	select {
	case o.send <- b:
		return nil
	case <-o.done:
		return ErrConnClosed
	default:
		return ErrQueueFull
	}
}

// shut 标记关闭，返回是否为第一次调用
func (o *outbox) shut() bool {
	first := false
	o.closeOnce.Do(func() {
		close(o.done)
		first = true
	})
	return first
}
