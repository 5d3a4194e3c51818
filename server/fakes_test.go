package server

import (
	"io"
	"math/rand"
	"sync"
	"sync/atomic"

	"shooterarena/protocol"
)

// fakeConn 内存连接：in 为客户端消息，Enqueue 的内容记录在 sent 中
type fakeConn struct {
	id      string
	codec   protocol.Codec
	in      chan []byte
	sendErr error

	mu     sync.Mutex
	sent   [][]byte
	closed chan struct{}
	once   sync.Once
	closes atomic.Int32
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{
		id:     id,
		codec:  protocol.JSON,
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ID() string            { return f.id }
func (f *fakeConn) Codec() protocol.Codec { return f.codec }
func (f *fakeConn) RemoteAddr() string    { return "fake:" + f.id }

func (f *fakeConn) Enqueue(b []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	select {
	case <-f.closed:
		return ErrConnClosed
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, b)
	return nil
}

func (f *fakeConn) Receive() ([]byte, error) {
	select {
	case msg, ok := <-f.in:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-f.closed:
		return nil, ErrConnClosed
	}
}

func (f *fakeConn) Close() error {
	f.closes.Add(1)
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// countingNotifier 只计数广播次数
type countingNotifier struct {
	n atomic.Int32
}

func (c *countingNotifier) Broadcast() { c.n.Add(1) }
func (c *countingNotifier) Count() int { return int(c.n.Load()) }

func newTestStore() *Store {
	return NewStore(1280, 720, rand.New(rand.NewSource(1)))
}
