package server

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shooterarena/protocol"
)

type handlerFixture struct {
	store    *Store
	registry *Registry
	notifier *countingNotifier
	metrics  *Metrics
	handler  *Handler
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		store:    newTestStore(),
		registry: NewRegistry(),
		notifier: &countingNotifier{},
		metrics:  &Metrics{},
	}
	f.handler = NewHandler(f.store, f.registry, f.notifier, f.metrics)
	return f
}

// serve 在后台运行 Serve，返回其结束信号
func (f *handlerFixture) serve(ctx context.Context, c Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.handler.Serve(ctx, c)
	}()
	return done
}

func TestHandlerLifecycle(t *testing.T) {
	f := newHandlerFixture()
	c := newFakeConn("c1")
	done := f.serve(context.Background(), c)

	require.Eventually(t, func() bool { return f.registry.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.store.PlayerCount())
	_, ok := f.store.Player(1)
	assert.True(t, ok)

	close(c.in)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after EOF")
	}

	assert.Zero(t, f.store.PlayerCount())
	assert.Zero(t, f.registry.Len())
	assert.True(t, c.isClosed())
	// 连接与断开各广播一次
	assert.Equal(t, 2, f.notifier.Count())
}

func TestHandlerAppliesUpdatesAndShoots(t *testing.T) {
	f := newHandlerFixture()
	c := newFakeConn("c1")
	done := f.serve(context.Background(), c)

	c.in <- []byte(`{"type":"player_update","data":{"x":300,"direction":"right"}}`)
	c.in <- []byte(`{"type":"player_update","data":{"y":320,"color":"red"}}`)
	c.in <- []byte(`{"type":"shoot"}`)

	require.Eventually(t, func() bool { return len(f.store.Bullets()) == 1 }, time.Second, 5*time.Millisecond)
	p, ok := f.store.Player(1)
	require.True(t, ok)
	assert.Equal(t, 300, p.X)
	assert.Equal(t, 320, p.Y)
	assert.Equal(t, DirRight, p.Direction)

	b := f.store.Bullets()[0]
	assert.Equal(t, 300, b.X)
	assert.Equal(t, 320, b.Y)
	assert.Equal(t, 10, b.DX)
	assert.Equal(t, PlayerID(1), b.OwnerID)
	assert.Eventually(t, func() bool { return atomic.LoadInt64(&f.metrics.BulletsFired) == 1 }, time.Second, 5*time.Millisecond)
	// 连接 + 三条消息
	assert.Eventually(t, func() bool { return f.notifier.Count() == 4 }, time.Second, 5*time.Millisecond)

	close(c.in)
	<-done
}

func TestHandlerSkipsMalformedMessages(t *testing.T) {
	f := newHandlerFixture()
	c := newFakeConn("c1")
	done := f.serve(context.Background(), c)

	c.in <- []byte(`{not json`)
	c.in <- []byte(`{"data":{"x":1}}`)
	c.in <- []byte(`{"type":"dance"}`)
	c.in <- []byte(`{"type":"player_update","data":{"x":"left"}}`)
	c.in <- []byte(`{"type":"player_update","data":{"health":40}}`)

	require.Eventually(t, func() bool {
		p, ok := f.store.Player(1)
		return ok && p.Health == 40
	}, time.Second, 5*time.Millisecond)
	assert.False(t, c.isClosed())
	assert.EqualValues(t, 3, f.metrics.DecodeErrors)
	// 连接 + 一条有效消息
	assert.Eventually(t, func() bool { return f.notifier.Count() == 2 }, time.Second, 5*time.Millisecond)

	close(c.in)
	<-done
}

func TestHandlerContextCancelCleansUp(t *testing.T) {
	f := newHandlerFixture()
	c := newFakeConn("c1")
	ctx, cancel := context.WithCancel(context.Background())
	done := f.serve(ctx, c)

	require.Eventually(t, func() bool { return f.registry.Len() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Zero(t, f.store.PlayerCount())
	assert.Zero(t, f.registry.Len())
}

func TestHandlerDistinctPlayerIDs(t *testing.T) {
	f := newHandlerFixture()
	a, b := newFakeConn("a"), newFakeConn("b")
	doneA := f.serve(context.Background(), a)
	doneB := f.serve(context.Background(), b)

	require.Eventually(t, func() bool { return f.registry.Len() == 2 }, time.Second, 5*time.Millisecond)
	ids := []PlayerID{}
	for _, p := range f.store.Players() {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []PlayerID{1, 2}, ids)

	close(a.in)
	<-doneA
	assert.Equal(t, 1, f.store.PlayerCount())
	close(b.in)
	<-doneB
	assert.Zero(t, f.store.PlayerCount())
}

func TestHandlerWithBroadcasterDeliversState(t *testing.T) {
	s := newTestStore()
	r := NewRegistry()
	m := &Metrics{}
	h := NewHandler(s, r, NewBroadcaster(s, r, m), m)

	a, b := newFakeConn("a"), newFakeConn("b")
	doneA := make(chan struct{})
	go func() { defer close(doneA); h.Serve(context.Background(), a) }()
	require.Eventually(t, func() bool { return r.Len() == 1 }, time.Second, 5*time.Millisecond)
	doneB := make(chan struct{})
	go func() { defer close(doneB); h.Serve(context.Background(), b) }()
	require.Eventually(t, func() bool { return r.Len() == 2 }, time.Second, 5*time.Millisecond)

	// a 应看到 b 加入
	require.Eventually(t, func() bool {
		sent := a.Sent()
		if len(sent) == 0 {
			return false
		}
		var st protocol.State
		return json.Unmarshal(sent[len(sent)-1], &st) == nil && len(st.Players) == 2
	}, time.Second, 5*time.Millisecond)

	// b 断开后 a 收到只剩自己的快照
	close(b.in)
	<-doneB
	sent := a.Sent()
	var st protocol.State
	require.NoError(t, json.Unmarshal(sent[len(sent)-1], &st))
	assert.Len(t, st.Players, 1)
	assert.Contains(t, st.Players, 1)

	close(a.in)
	<-doneA
}

func TestFieldsFromPatch(t *testing.T) {
	x, dir := 7, "up"
	f := fieldsFromPatch(protocol.PlayerPatch{X: &x, Direction: &dir})
	require.NotNil(t, f.X)
	assert.Equal(t, 7, *f.X)
	require.NotNil(t, f.Direction)
	assert.Equal(t, DirUp, *f.Direction)
	assert.Nil(t, f.Y)
	assert.Nil(t, f.Health)
}
