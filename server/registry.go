package server

import "sync"

// Registry 当前存活连接的集合，顺序无关
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Outbound
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Outbound)}
}

// Add 注册连接
func (r *Registry) Add(c Outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = c
}

// Remove 移除连接，返回连接此前是否存在；重复移除是安全的
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

// List 返回当前连接的拷贝，调用方可在锁外发送
func (r *Registry) List() []Outbound {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Outbound, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
