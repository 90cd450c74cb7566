// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"container/list"
	"context"
	"sync"
	"time"

	"context-chatbot/pkg/metrics"
)

// SessionStore 存储抽象；Get 未找到时返回 (nil, nil)
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Close(ctx context.Context) error
}

// TurnAppender 由能在存储端原子追加一轮对话的 SessionStore 实现；
// 多实例共享同一存储时，进程内的会话锁无法串行其他实例的写入
type TurnAppender interface {
	AppendTurn(ctx context.Context, id, user, assistant string) error
}

// MemoryStore 有界内存实现：LRU 淘汰 + 空闲 TTL 过期
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	lru      *list.List
	now      func() time.Time
}

type memoryEntry struct {
	sess      *Session
	expiresAt time.Time
}

// NewMemoryStore 创建内存 Session 存储；capacity<=0 表示不限，ttl<=0 表示不过期
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Get 实现 SessionStore
func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	ent := elem.Value.(*memoryEntry)
	if m.expired(ent) {
		m.removeElement(elem)
		return nil, nil
	}
	m.lru.MoveToFront(elem)
	m.touch(ent)
	return ent.sess, nil
}

// Put 实现 SessionStore
func (m *MemoryStore) Put(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[s.ID]; ok {
		ent := elem.Value.(*memoryEntry)
		ent.sess = s
		m.touch(ent)
		m.lru.MoveToFront(elem)
		return nil
	}

	ent := &memoryEntry{sess: s}
	m.touch(ent)
	m.items[s.ID] = m.lru.PushFront(ent)
	for m.capacity > 0 && m.lru.Len() > m.capacity {
		m.removeElement(m.lru.Back())
	}
	metrics.SessionsActive.Set(float64(m.lru.Len()))
	return nil
}

// Delete 实现 SessionStore
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.items[id]; ok {
		m.removeElement(elem)
	}
	return nil
}

// Len 当前会话数（含尚未清理的过期项）
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Sweep 清理全部过期会话，返回清理数量
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for elem := m.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if m.expired(elem.Value.(*memoryEntry)) {
			m.removeElement(elem)
			n++
		}
		elem = prev
	}
	return n
}

// RunSweeper 按 interval 周期清理过期会话，直到 ctx 结束
func (m *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Close 清空存储（进程停止时调用）
func (m *MemoryStore) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*list.Element)
	m.lru.Init()
	metrics.SessionsActive.Set(0)
	return nil
}

func (m *MemoryStore) touch(ent *memoryEntry) {
	if m.ttl > 0 {
		ent.expiresAt = m.now().Add(m.ttl)
	}
}

func (m *MemoryStore) expired(ent *memoryEntry) bool {
	return m.ttl > 0 && m.now().After(ent.expiresAt)
}

func (m *MemoryStore) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	m.lru.Remove(elem)
	delete(m.items, elem.Value.(*memoryEntry).sess.ID)
	metrics.SessionsActive.Set(float64(m.lru.Len()))
}
